// Package app composes the menu pipeline for the CLI, HTTP and MCP surfaces:
// fetching with robots and cache, extraction, ranking, restaurant discovery
// and the playbook fallback.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dinecoach/internal/cache"
	"github.com/hyperifyio/dinecoach/internal/discovery"
	"github.com/hyperifyio/dinecoach/internal/document"
	"github.com/hyperifyio/dinecoach/internal/extract"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/foodfacts"
	"github.com/hyperifyio/dinecoach/internal/llm"
	"github.com/hyperifyio/dinecoach/internal/ocr"
	"github.com/hyperifyio/dinecoach/internal/playbook"
	"github.com/hyperifyio/dinecoach/internal/resolve"
	"github.com/hyperifyio/dinecoach/internal/robots"
	"github.com/hyperifyio/dinecoach/internal/store"
)

// resolvePause spaces the menu path requests sent to one restaurant site.
const resolvePause = 400 * time.Millisecond

// App holds the long-lived collaborators shared by every request.
type App struct {
	cfg Config

	fetcher    *fetch.Client
	renderer   fetch.Renderer
	candidates cache.Candidates
	store      *store.Store
	resolver   *resolve.Resolver
	discovery  *discovery.Client
	foodfacts  *foodfacts.Client
	recognizer document.Recognizer
	extractor  extract.MenuExtractor
	playbooks  *playbook.Book

	closers []func() error
}

// New validates cfg and wires the pipeline. Cache maintenance runs here, once
// per process.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, extractor: extract.StructuredExtractor{}, playbooks: playbook.Default()}

	var httpCache *cache.HTTPCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			n, _ := cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge)
			m, _ := cache.PurgeCandidatesByAge(cfg.CacheDir, cfg.CacheMaxAge)
			log.Debug().Int("http", n).Int("candidates", m).Msg("purged stale cache entries")
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxEntries > 0 {
			if n, err := cache.EnforceHTTPCacheLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries); err == nil && n > 0 {
				log.Debug().Int("evicted", n).Msg("cache limits enforced")
			}
		}
		httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	httpClient := newHTTPClient(0)
	rm := &robots.Manager{
		HTTPClient:        httpClient,
		Cache:             httpCache,
		UserAgent:         cfg.UserAgent,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
	}
	a.fetcher = &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.FetchAttempts,
		PerRequestTimeout: cfg.FetchTimeout,
		Cache:             httpCache,
		MaxConcurrent:     cfg.FetchMaxConcurrent,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
		Robots:            rm,
	}
	if cfg.RenderBrowser {
		a.renderer = &fetch.Browser{AllowPrivateHosts: cfg.AllowPrivateHosts}
	}

	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCandidates(ctx, cfg.RedisAddr, cache.DefaultCandidateTTL)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; using disk candidate cache")
		} else {
			a.candidates = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	if a.candidates == nil && cfg.CacheDir != "" {
		a.candidates = &cache.DiskCandidates{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	if cfg.StorePath != "" {
		if cfg.StorePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
				return nil, fmt.Errorf("store dir: %w", err)
			}
		}
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		if n, err := st.Purge(ctx); err == nil && n > 0 {
			log.Debug().Int64("rows", n).Msg("purged expired store entries")
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
	}

	a.resolver = &resolve.Resolver{
		Fetcher:           a.fetcher,
		Store:             a.store,
		Pause:             resolvePause,
		AllowPrivateHosts: cfg.AllowPrivateHosts,
	}

	a.discovery = discovery.New(cfg.UserAgent, cfg.FetchTimeout)
	a.discovery.Store = a.store
	if cfg.NominatimURL != "" {
		a.discovery.NominatimURL = cfg.NominatimURL
	}
	if cfg.OverpassURL != "" {
		a.discovery.OverpassURL = cfg.OverpassURL
	}
	a.foodfacts = foodfacts.New(cfg.UserAgent, cfg.FetchTimeout)
	if cfg.FoodFactsURL != "" {
		a.foodfacts.SearchURL = cfg.FoodFactsURL
	}

	if cfg.OCR {
		a.recognizer = &ocr.Recognizer{
			Client:      llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, newHTTPClient(2*time.Minute)),
			Model:       cfg.LLMModel,
			PageTimeout: time.Minute,
		}
	}
	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() Config { return a.cfg }

// Close releases the store and cache connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
	a.closers = nil
}
