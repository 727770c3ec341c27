// Package resolve finds a restaurant's menu page from its website and the
// PDF a menu page links to.
package resolve

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/store"
)

// CommonMenuPaths are tried in order before scanning the homepage.
var CommonMenuPaths = []string{"/menu", "/menus", "/food", "/dinner", "/lunch", "/our-menu", "/ourmenu", "/food-menu"}

// DefaultTTL is how long a resolution, including "no menu", is remembered.
const DefaultTTL = 24 * time.Hour

// Fetcher is the page-fetch capability. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, error)
}

// Resolver resolves menu URLs, remembering results in Store when set.
type Resolver struct {
	Fetcher Fetcher
	Store   *store.Store
	TTL     time.Duration
	// Pause separates requests to the same site.
	Pause time.Duration
	// AllowPrivateHosts disables the public-URL guard.
	AllowPrivateHosts bool
}

type resolution struct {
	URL string `json:"url"`
}

// MenuURL returns the menu page for website, or "" when none is found. A
// robots denial of the website itself is reported as ErrBlockedByRobots.
func (r *Resolver) MenuURL(ctx context.Context, website string) (string, error) {
	website = NormalizeURL(website)
	if !r.AllowPrivateHosts {
		if err := fetch.CheckPublicURL(website); err != nil {
			return "", err
		}
	}
	if r.Store != nil {
		var cached resolution
		if err := r.Store.Get(ctx, store.NamespaceMenuURL, website, &cached); err == nil {
			log.Debug().Str("url", website).Str("menu", cached.URL).Msg("menu url from store")
			return cached.URL, nil
		}
	}
	found, err := r.resolve(ctx, website)
	if err != nil {
		return "", err
	}
	if r.Store != nil {
		ttl := r.TTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		if err := r.Store.Put(ctx, store.NamespaceMenuURL, website, resolution{URL: found}, ttl); err != nil {
			log.Warn().Err(err).Str("url", website).Msg("store menu url")
		}
	}
	return found, nil
}

func (r *Resolver) resolve(ctx context.Context, website string) (string, error) {
	root := strings.TrimRight(website, "/")
	for i, path := range CommonMenuPaths {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i > 0 && r.Pause > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.Pause):
			}
		}
		candidate := root + path
		resp, err := r.Fetcher.Fetch(ctx, candidate)
		if err != nil {
			log.Debug().Err(err).Str("url", candidate).Msg("menu path check failed")
			continue
		}
		if mentionsMenu(resp) {
			return NormalizeURL(resp.URL), nil
		}
	}

	resp, err := r.Fetcher.Fetch(ctx, website)
	if errors.Is(err, fetch.ErrBlockedByRobots) {
		return "", err
	}
	if err != nil || resp.IsPDF() {
		return "", nil
	}
	if links := MenuLinks(resp.Body, resp.URL); len(links) > 0 {
		return links[0], nil
	}
	return "", nil
}

func mentionsMenu(resp *fetch.Response) bool {
	if strings.Contains(strings.ToLower(resp.URL), "menu") {
		return true
	}
	return !resp.IsPDF() && strings.Contains(strings.ToLower(string(resp.Body)), "menu")
}
