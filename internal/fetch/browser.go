package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// MinMenuCandidates is the candidate count below which a statically fetched
// page is re-rendered in a browser when rendering is enabled.
const MinMenuCandidates = 3

// DefaultRenderTimeout bounds one browser render.
const DefaultRenderTimeout = 30 * time.Second

// Renderer returns the DOM of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Browser renders pages with a headless Chrome. It needs Chrome or Chromium
// installed on the host.
type Browser struct {
	Timeout time.Duration
	// Settle is the pause after the body is ready, for menus injected by
	// scripts.
	Settle time.Duration
	// AllowPrivateHosts disables the public-URL guard.
	AllowPrivateHosts bool
}

func (b *Browser) Render(ctx context.Context, pageURL string) (string, error) {
	if !b.AllowPrivateHosts {
		if err := CheckPublicURL(pageURL); err != nil {
			return "", &Error{URL: pageURL, Message: "refused", Cause: err}
		}
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	settle := b.Settle
	if settle <= 0 {
		settle = 2 * time.Second
	}
	log.Debug().Str("url", pageURL).Msg("rendering page in headless browser")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settle),
		// Cookie walls often hide the menu; a missing button is not an error.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"], button[id*="consent"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{URL: pageURL, Message: "browser render", Cause: fmt.Errorf("chromedp: %w", err)}
	}
	log.Debug().Str("url", pageURL).Int("bytes", len(html)).Msg("rendered page")
	return html, nil
}
