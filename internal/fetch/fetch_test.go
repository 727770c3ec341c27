package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/dinecoach/internal/cache"
	"github.com/hyperifyio/dinecoach/internal/robots"
)

func testClient() *Client {
	return &Client{UserAgent: "dinecoach-test", MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, AllowPrivateHosts: true}
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "dinecoach-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>menu</body></html>"))
	}))
	defer srv.Close()

	resp, err := testClient().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ContentType == "" || string(resp.Body) == "" || resp.IsPDF() {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestFetch_RetryOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	c := testClient()
	c.MaxAttempts = 2
	if _, _, err := c.Get(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}

	c.MaxAttempts = 1
	atomic.StoreInt32(&calls, 0)
	_, _, err := c.Get(context.Background(), srv.URL)
	var fe *Error
	if !errors.As(err, &fe) || fe.Status != http.StatusBadGateway {
		t.Fatalf("expected typed 502 error, got %v", err)
	}
}

func TestFetch_NoRetryOn404(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()
	c := testClient()
	c.MaxAttempts = 3
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for 404")
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestFetch_Conditional304_UsesCache(t *testing.T) {
	var calls int32
	etag := `"abc123"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("ETag", etag)
			_, _ = w.Write([]byte("first"))
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		fmt.Fprintln(w, "unexpected")
	}))
	defer srv.Close()

	c := testClient()
	c.Cache = &cache.HTTPCache{Dir: t.TempDir()}
	b1, _, err := c.Get(context.Background(), srv.URL)
	if err != nil || string(b1) != "first" {
		t.Fatalf("first get: %q %v", b1, err)
	}
	resp, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(resp.Body) != "first" || !resp.FromCache || resp.ContentType != "text/html" {
		t.Fatalf("expected cached body, got %+v", resp)
	}
}

func TestFetch_RejectsUnsafeURLs(t *testing.T) {
	c := &Client{MaxAttempts: 1}
	for _, u := range []string{
		"file:///etc/hosts",
		"ftp://example.com/menu",
		"http://127.0.0.1/menu",
		"http://localhost:8080/",
		"http://192.168.1.10/menu.pdf",
		"http://[::1]/",
		"http://169.254.169.254/latest/meta-data",
	} {
		_, err := c.Fetch(context.Background(), u)
		if !errors.Is(err, ErrUnsafeURL) {
			t.Fatalf("%s: expected ErrUnsafeURL, got %v", u, err)
		}
	}
	if err := CheckPublicURL("https://example.com/menu"); err != nil {
		t.Fatalf("expected public URL accepted: %v", err)
	}
}

func TestFetch_ContentTypeGating(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/menu.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	mux.HandleFunc("/doc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})
	mux.HandleFunc("/img", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient()
	for _, p := range []string{"/menu.pdf", "/doc"} {
		resp, err := c.Fetch(context.Background(), srv.URL+p)
		if err != nil || !resp.IsPDF() {
			t.Fatalf("%s: expected PDF accepted, got %+v %v", p, resp, err)
		}
	}
	if _, err := c.Fetch(context.Background(), srv.URL+"/img"); err == nil {
		t.Fatalf("expected error for image content type")
	}
}

func TestFetch_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()
	c := testClient()
	c.MaxBodyBytes = 32
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size cap error, got %v", err)
	}
	c.MaxBodyBytes = 64
	if _, err := c.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("expected body at the cap accepted: %v", err)
	}
}

func TestFetch_RobotsGate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>menu</p>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient()
	c.Robots = &robots.Manager{HTTPClient: srv.Client(), UserAgent: c.UserAgent, AllowPrivateHosts: true}
	if _, err := c.Fetch(context.Background(), srv.URL+"/menu"); err != nil {
		t.Fatalf("expected /menu allowed: %v", err)
	}
	if _, err := c.Fetch(context.Background(), srv.URL+"/private/menu"); !errors.Is(err, ErrBlockedByRobots) {
		t.Fatalf("expected ErrBlockedByRobots, got %v", err)
	}
}

func TestFetch_RedirectLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient()
	c.RedirectMaxHops = 1
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected redirect limit error")
	}
	c.RedirectMaxHops = 0
	resp, err := c.Fetch(context.Background(), srv.URL)
	if err != nil || !strings.HasSuffix(resp.URL, "/next") {
		t.Fatalf("expected final URL after redirect, got %+v %v", resp, err)
	}
}

func TestFetch_MaxConcurrent(t *testing.T) {
	var inFlight, maxObserved int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		curr := atomic.AddInt32(&inFlight, 1)
		for {
			prev := atomic.LoadInt32(&maxObserved)
			if curr <= prev || atomic.CompareAndSwapInt32(&maxObserved, prev, curr) {
				break
			}
		}
		time.Sleep(150 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("ok"))
		atomic.AddInt32(&inFlight, -1)
	}))
	defer srv.Close()

	c := testClient()
	c.MaxConcurrent = 2
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, _ = c.Get(context.Background(), srv.URL)
		}()
	}
	close(start)
	wg.Wait()
	if maxObserved > 2 {
		t.Fatalf("expected max concurrency <= 2, got %d", maxObserved)
	}
}
