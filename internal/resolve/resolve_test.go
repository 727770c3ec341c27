package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/robots"
	"github.com/hyperifyio/dinecoach/internal/store"
)

func client() *fetch.Client {
	return &fetch.Client{MaxAttempts: 1, PerRequestTimeout: 2 * time.Second, AllowPrivateHosts: true}
}

func html(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func TestMenuURL_CommonPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/food", func(w http.ResponseWriter, r *http.Request) {
		html(w, "<h1>Our Menu</h1>")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		html(w, "<p>welcome</p>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := &Resolver{Fetcher: client(), AllowPrivateHosts: true}
	got, err := r.MenuURL(context.Background(), srv.URL)
	if err != nil || got != srv.URL+"/food" {
		t.Fatalf("expected %s/food, got %q (%v)", srv.URL, got, err)
	}
}

func TestMenuURL_HomepageAnchorAndStoreCaching(t *testing.T) {
	var homeHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&homeHits, 1)
		html(w, `<nav><a href="/about">About</a><a href="/eat/dinner?utm_source=x#top">See our Menu</a></nav>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	r := &Resolver{Fetcher: client(), Store: st, AllowPrivateHosts: true}

	for i := 0; i < 2; i++ {
		got, err := r.MenuURL(context.Background(), srv.URL+"/")
		if err != nil || got != srv.URL+"/eat/dinner" {
			t.Fatalf("run %d: expected anchor URL, got %q (%v)", i, got, err)
		}
	}
	if homeHits != 1 {
		t.Fatalf("expected second lookup served from store, got %d homepage hits", homeHits)
	}
}

func TestMenuURL_NegativeResultCached(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		html(w, "<p>hello</p>")
	}))
	defer srv.Close()
	st, _ := store.Open(":memory:")
	defer st.Close()
	r := &Resolver{Fetcher: client(), Store: st, AllowPrivateHosts: true}

	got, err := r.MenuURL(context.Background(), srv.URL)
	if err != nil || got != "" {
		t.Fatalf("expected no menu, got %q (%v)", got, err)
	}
	before := atomic.LoadInt32(&hits)
	if got, _ = r.MenuURL(context.Background(), srv.URL); got != "" || atomic.LoadInt32(&hits) != before {
		t.Fatalf("expected cached negative result")
	}
}

func TestMenuURL_BlockedByRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
			return
		}
		html(w, "<a href='/menu'>menu</a>")
	}))
	defer srv.Close()
	c := client()
	c.Robots = &robots.Manager{HTTPClient: srv.Client(), AllowPrivateHosts: true}
	r := &Resolver{Fetcher: c, AllowPrivateHosts: true}
	if _, err := r.MenuURL(context.Background(), srv.URL); !errors.Is(err, fetch.ErrBlockedByRobots) {
		t.Fatalf("expected robots denial, got %v", err)
	}
}

func TestMenuURL_RejectsUnsafeWebsite(t *testing.T) {
	r := &Resolver{Fetcher: client()}
	if _, err := r.MenuURL(context.Background(), "http://127.0.0.1:9/"); !errors.Is(err, fetch.ErrUnsafeURL) {
		t.Fatalf("expected ErrUnsafeURL, got %v", err)
	}
}

func TestLinks(t *testing.T) {
	page := []byte(`<a href="#menu">Menu</a><a href="mailto:x@y.z">menu</a>
<a href="Docs/Dinner.PDF?v=3">Dinner</a><a href="https://cdn.example/lunch.pdf">Lunch</a>
<a href="/menus/">Food</a><a href="/menus/#x">Again</a>`)
	pdf, ok := PDFLink(page, "https://r.example/home/")
	if !ok || pdf != "https://r.example/home/Docs/Dinner.PDF?v=3" {
		t.Fatalf("unexpected pdf link %q", pdf)
	}
	got := MenuLinks(page, "https://R.example/")
	if len(got) != 1 || got[0] != "https://r.example/menus/" {
		t.Fatalf("unexpected menu links %v", got)
	}
	if _, ok := PDFLink([]byte("<p>none</p>"), "https://r.example/"); ok {
		t.Fatalf("expected no pdf link")
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := NormalizeURL(" https://EXAMPLE.com/menu?utm_source=a&b=1#top "); got != "https://example.com/menu?b=1" {
		t.Fatalf("unexpected %q", got)
	}
}
