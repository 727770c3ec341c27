package app

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

const menuPage = `<html><head><title>Bistro</title></head><body>
<section class="menu">
  <div class="menu-section">
    <h2>Salads</h2>
    <div class="menu-item"><h3 class="item-name">Chicken Caesar</h3><p class="item-desc">grilled chicken, romaine</p></div>
    <div class="menu-item"><h3 class="item-name">Garden Salad</h3><p class="item-desc">greens, vinaigrette</p></div>
  </div>
  <div class="menu-section">
    <h2>Seafood</h2>
    <div class="menu-item"><h3 class="item-name">Grilled Salmon</h3><p class="item-desc">seared, lemon butter, with rice and broccoli</p></div>
  </div>
</section>
</body></html>`

const sparsePage = `<html><body><main>
<p>Welcome! Our full menu is available as a <a href="/files/dinner.pdf">PDF</a>.</p>
</main></body></html>`

func menuPDF(t *testing.T) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	for _, l := range []string{
		"BURGERS",
		"Classic Burger - beef patty, cheese, fries",
		"Turkey Burger - grilled turkey, lettuce, bun",
		"SALADS",
		"Cobb Salad - chicken, egg, bacon, ranch",
		"Grilled Chicken Salad - greens, vinaigrette",
		"Steak Salad - seared steak, greens, salsa",
	} {
		pdf.CellFormat(0, 8, l, "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

// scannedMenuPDF has one page holding only a JPEG, so reading it needs OCR.
func scannedMenuPDF(t *testing.T) []byte {
	t.Helper()
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 16, 16)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	opt := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("scan", opt, &jpg)
	pdf.AddPage()
	pdf.ImageOptions("scan", 10, 10, 100, 0, false, opt, 0, "")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

type menuSite struct {
	*httptest.Server
	hits atomic.Int32
}

// newMenuSite serves a structured menu at /menu, a sparse page linking a PDF
// at /sparse and the PDF itself. robots.txt disallows /private.
func newMenuSite(t *testing.T) *menuSite {
	t.Helper()
	pdf := menuPDF(t)
	s := &menuSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/menu", func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(menuPage))
	})
	mux.HandleFunc("/sparse", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(sparsePage))
	})
	mux.HandleFunc("/files/dinner.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	})
	mux.HandleFunc("/private/menu", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(menuPage))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.StorePath = ":memory:"
	cfg.AllowPrivateHosts = true
	cfg.FetchAttempts = 1
	return cfg
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}
