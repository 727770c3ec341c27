package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dinecoach/internal/cache"
	"github.com/hyperifyio/dinecoach/internal/document"
	"github.com/hyperifyio/dinecoach/internal/extract"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/rank"
	"github.com/hyperifyio/dinecoach/internal/resolve"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// Context sources.
const (
	SourceURL    = "url"
	SourcePDF    = "pdf"
	SourceHTML   = "html"
	SourceRank   = "rank"
	SourceZIP    = "zip"
	SourceMenu   = "menu"
	SourcePlay   = "playbook"
	pdfLinkBelow = 5
)

// Context echoes what was analyzed and with which preferences.
type Context struct {
	Source            string       `json:"source"`
	RestaurantName    *string      `json:"restaurant_name"`
	URL               string       `json:"url,omitempty"`
	ZIP               string       `json:"zip,omitempty"`
	RadiusMiles       float64      `json:"radius_miles,omitempty"`
	CalorieTarget     int          `json:"calorie_target"`
	Flags             []score.Flag `json:"flags"`
	PrioritizeProtein bool         `json:"prioritize_protein"`
}

// RestaurantPicks is one restaurant with its top picks. Nearby fills the
// location fields.
type RestaurantPicks struct {
	Name       string            `json:"name"`
	DistanceMi *float64          `json:"distance_mi,omitempty"`
	Cuisine    []string          `json:"cuisine,omitempty"`
	Website    string            `json:"website,omitempty"`
	MenuURL    string            `json:"menu_url,omitempty"`
	Source     string            `json:"source,omitempty"`
	Picks      []rank.ScoredPick `json:"picks"`
}

// Analysis is the result of one analyze or rank call.
type Analysis struct {
	Context     Context           `json:"context"`
	Restaurants []RestaurantPicks `json:"restaurants,omitempty"`
	Candidates  int               `json:"candidates"`
	rank.Result
}

func newContext(source string, p score.Preferences) Context {
	flags := p.Flags
	if flags == nil {
		flags = []score.Flag{}
	}
	return Context{
		Source:            source,
		CalorieTarget:     p.CalorieTarget,
		Flags:             flags,
		PrioritizeProtein: p.PrioritizeProtein,
	}
}

func normalizePrefs(p score.Preferences) score.Preferences {
	p.Flags = score.ParseFlags(flagStrings(p.Flags))
	return p
}

func flagStrings(fs []score.Flag) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

// Rank cleans and ranks a caller-supplied candidate list.
func (a *App) Rank(cands []menu.Candidate, p score.Preferences) (Analysis, error) {
	p = normalizePrefs(p)
	clean := make([]menu.Candidate, 0, len(cands))
	for _, c := range cands {
		if c, ok := menu.Clean(c); ok {
			clean = append(clean, c)
		}
	}
	clean = menu.Dedupe(clean, menu.BySectionName)
	res, err := rank.Rank(clean, p, rank.DefaultOptions())
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Context: newContext(SourceRank, p), Candidates: len(clean), Result: res}, nil
}

// AnalyzeMarkup extracts and ranks a menu page supplied by the caller.
func (a *App) AnalyzeMarkup(ctx context.Context, markup []byte, p score.Preferences) (Analysis, error) {
	p = normalizePrefs(p)
	if err := p.Validate(); err != nil {
		return Analysis{}, err
	}
	cands := a.markupCandidates(ctx, markup)
	return a.finish(newContext(SourceHTML, p), "Menu", cands, p)
}

// AnalyzePDF extracts and ranks a menu document. OCR applies only when the app
// has a recognizer configured.
func (a *App) AnalyzePDF(ctx context.Context, data []byte, useOCR bool, p score.Preferences) (Analysis, error) {
	p = normalizePrefs(p)
	if err := p.Validate(); err != nil {
		return Analysis{}, err
	}
	cands := a.pdfCandidates(ctx, data, useOCR)
	return a.finish(newContext(SourcePDF, p), "PDF Menu", cands, p)
}

// AnalyzeURL fetches a menu page or document and ranks it. Unsafe URLs and
// robots denials are returned as errors wrapping fetch.ErrUnsafeURL and
// fetch.ErrBlockedByRobots.
func (a *App) AnalyzeURL(ctx context.Context, rawURL string, p score.Preferences) (Analysis, error) {
	p = normalizePrefs(p)
	if err := p.Validate(); err != nil {
		return Analysis{}, err
	}
	cands, finalURL, err := a.URLCandidates(ctx, rawURL)
	if err != nil {
		return Analysis{}, err
	}
	c := newContext(SourceURL, p)
	c.URL = finalURL
	name := "Menu"
	if u, err := url.Parse(finalURL); err == nil && u.Host != "" {
		name = u.Host
		c.RestaurantName = &name
	}
	return a.finish(c, name, cands, p)
}

func (a *App) finish(c Context, name string, cands []menu.Candidate, p score.Preferences) (Analysis, error) {
	res, err := rank.Rank(cands, p, rank.DefaultOptions())
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Context:     c,
		Restaurants: []RestaurantPicks{{Name: name, Picks: res.Picks}},
		Candidates:  len(cands),
		Result:      res,
	}, nil
}

// URLCandidates fetches rawURL and extracts its candidates. It returns the URL
// the content was finally served from.
func (a *App) URLCandidates(ctx context.Context, rawURL string) ([]menu.Candidate, string, error) {
	resp, err := a.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	if resp.IsPDF() {
		return a.pdfCandidates(ctx, resp.Body, a.cfg.OCR), resp.URL, nil
	}
	cands := a.markupCandidates(ctx, resp.Body)
	if len(cands) < pdfLinkBelow {
		if pdfURL, ok := resolve.PDFLink(resp.Body, resp.URL); ok {
			if more := a.linkedPDF(ctx, pdfURL); len(more) > len(cands) {
				cands = more
			}
		}
	}
	if len(cands) < fetch.MinMenuCandidates && a.renderer != nil {
		html, err := a.renderer.Render(ctx, resp.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", resp.URL).Msg("browser render failed")
		} else if more := a.markupCandidates(ctx, []byte(html)); len(more) > len(cands) {
			log.Debug().Str("url", resp.URL).Int("items", len(more)).Msg("using rendered page")
			cands = more
		}
	}
	return cands, resp.URL, nil
}

func (a *App) linkedPDF(ctx context.Context, pdfURL string) []menu.Candidate {
	resp, err := a.fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		log.Debug().Err(err).Str("url", pdfURL).Msg("linked pdf skipped")
		return nil
	}
	if !resp.IsPDF() {
		return nil
	}
	log.Debug().Str("url", pdfURL).Msg("reading linked pdf menu")
	return a.pdfCandidates(ctx, resp.Body, a.cfg.OCR)
}

// markupCandidates runs the markup extractor, segmenting the readable page
// text when no structured items are found.
func (a *App) markupCandidates(ctx context.Context, markup []byte) []menu.Candidate {
	return a.cached(ctx, cache.ContentKey("html", markup), func() ([]menu.Candidate, bool) {
		cands := a.extractor.Candidates(markup)
		if len(cands) == 0 {
			cands = document.Segment(extract.FromHTML(markup).Text)
		}
		return cands, true
	})
}

// pdfCandidates never caches a failed or empty recognition, so a later call
// with a working recognizer is not served the empty result.
func (a *App) pdfCandidates(ctx context.Context, data []byte, useOCR bool) []menu.Candidate {
	useOCR = useOCR && a.recognizer != nil
	kind := "pdf"
	if useOCR {
		kind = "pdf+ocr"
	}
	return a.cached(ctx, cache.ContentKey(kind, data), func() ([]menu.Candidate, bool) {
		cands, err := document.Candidates(ctx, data, document.Options{
			OCR:        useOCR,
			PageCap:    a.cfg.PDFPageCap,
			Recognizer: a.recognizer,
		})
		if err != nil {
			log.Warn().Err(err).Msg("pdf text recognition failed")
			return cands, false
		}
		return cands, true
	})
}

// cached memoizes preference-independent extraction results by content key.
// extractFn reports whether its result may be stored.
func (a *App) cached(ctx context.Context, key string, extractFn func() ([]menu.Candidate, bool)) []menu.Candidate {
	if a.candidates != nil {
		cands, err := a.candidates.Get(ctx, key)
		if err == nil {
			log.Debug().Str("key", key).Int("items", len(cands)).Msg("candidate cache hit")
			return cands
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Msg("candidate cache read failed")
		}
	}
	cands, keep := extractFn()
	if keep && a.candidates != nil && ctx.Err() == nil {
		if err := a.candidates.Put(ctx, key, cands); err != nil {
			log.Warn().Err(err).Msg("candidate cache write failed")
		}
	}
	return cands
}

// Describe summarizes an analysis for logs.
func (an Analysis) Describe() string {
	return fmt.Sprintf("%s: %d candidates, %d picks, %d alternates", an.Context.Source, an.Candidates, len(an.Picks), len(an.Alternates))
}
