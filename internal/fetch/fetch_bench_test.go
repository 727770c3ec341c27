package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperifyio/dinecoach/internal/robots"
)

// BenchmarkClient_Fetch measures the client with and without the robots
// gate at different concurrency limits.
func BenchmarkClient_Fetch(b *testing.B) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	})
	mux.HandleFunc("/menu", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div class="menu"><h2>Mains</h2><p>Grilled Salmon - rice</p></div></body></html>`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	run := func(name string, maxConc int, useRobots bool) {
		b.Run(name, func(b *testing.B) {
			cli := &Client{
				HTTPClient:        ts.Client(),
				UserAgent:         "bench/1",
				MaxAttempts:       1,
				PerRequestTimeout: 2 * time.Second,
				MaxConcurrent:     maxConc,
				AllowPrivateHosts: true,
			}
			if useRobots {
				cli.Robots = &robots.Manager{HTTPClient: ts.Client(), UserAgent: "bench/1", EntryExpiry: time.Hour, AllowPrivateHosts: true}
			}
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := cli.Fetch(context.Background(), ts.URL+"/menu"); err != nil {
						b.Errorf("fetch failed: %v", err)
						return
					}
				}
			})
		})
	}
	run("conc=1,no-robots", 1, false)
	run("conc=8,no-robots", 8, false)
	run("conc=8,robots", 8, true)
}
