// Package fetch retrieves menu pages and documents: a retrying GET with a
// public-URL guard, a robots gate, conditional revalidation through the disk
// cache and a body size cap. Browser rendering lives in browser.go.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hyperifyio/dinecoach/internal/cache"
	"github.com/hyperifyio/dinecoach/internal/robots"
)

const (
	// DefaultMaxBodyBytes caps a downloaded page or document.
	DefaultMaxBodyBytes = 10 << 20
	// DefaultUserAgent identifies the client to menu sites.
	DefaultUserAgent = "dinecoach/1.0 (+menu ranking)"
)

var (
	// ErrUnsafeURL rejects non-HTTP schemes and loopback, private or
	// link-local hosts.
	ErrUnsafeURL = errors.New("unsafe url")
	// ErrBlockedByRobots reports a robots.txt denial.
	ErrBlockedByRobots = errors.New("blocked by robots.txt")
)

// Error wraps a failed fetch with its URL.
type Error struct {
	URL     string
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Gate decides whether a URL may be fetched. *robots.Manager implements it.
type Gate interface {
	Allowed(ctx context.Context, pageURL string) (bool, error)
}

var _ Gate = (*robots.Manager)(nil)

// Response is a fetched body with the URL it was finally served from.
type Response struct {
	URL         string
	ContentType string
	Body        []byte
	Status      int
	FromCache   bool
}

// IsPDF reports a PDF by content type, URL extension or magic bytes.
func (r *Response) IsPDF() bool {
	ct := strings.ToLower(r.ContentType)
	return strings.HasPrefix(ct, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(pathOf(r.URL)), ".pdf") ||
		strings.HasPrefix(string(r.Body), "%PDF-")
}

// Client wraps http.Client with timeouts, bounded retry on transient errors
// and a per-client concurrency limit.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts       int
	PerRequestTimeout time.Duration
	// Cache enables conditional revalidation with ETag/Last-Modified.
	Cache *cache.HTTPCache
	// BypassCache skips conditional headers but still stores the response.
	BypassCache bool
	// RedirectMaxHops caps redirects; zero means 5.
	RedirectMaxHops int
	// MaxConcurrent limits in-flight requests; zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes caps the body; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// AllowPrivateHosts disables the public-URL guard (tests, intranets).
	AllowPrivateHosts bool
	// Robots, when set, is consulted before every request.
	Robots Gate

	limiter     chan struct{}
	limiterOnce sync.Once
}

// Get returns the body and content type of url.
func (c *Client) Get(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.ContentType, nil
}

// Fetch issues a guarded GET and retries 5xx and timeouts with linear
// backoff. Only HTML, XHTML and PDF bodies are accepted.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if !c.AllowPrivateHosts {
		if err := CheckPublicURL(rawURL); err != nil {
			return nil, &Error{URL: rawURL, Message: "refused", Cause: err}
		}
	} else if u, err := url.Parse(rawURL); err != nil || !isHTTPScheme(u) {
		return nil, &Error{URL: rawURL, Message: "refused", Cause: ErrUnsafeURL}
	}
	if c.Robots != nil {
		ok, err := c.Robots.Allowed(ctx, rawURL)
		if err != nil {
			return nil, &Error{URL: rawURL, Message: "robots check", Cause: err}
		}
		if !ok {
			return nil, &Error{URL: rawURL, Message: "refused", Cause: ErrBlockedByRobots}
		}
	}

	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	attempts := max(c.MaxAttempts, 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := c.tryOnce(ctx, rawURL, etag, lastMod)
		if err == nil {
			return c.finish(ctx, rawURL, resp)
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &Error{URL: rawURL, Message: "cancelled", Cause: ctx.Err()}
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	return nil, lastErr
}

func (c *Client) finish(ctx context.Context, rawURL string, r *responseWithHeader) (*Response, error) {
	resp := &r.Response
	if resp.Status == http.StatusNotModified && c.Cache != nil {
		body, err := c.Cache.LoadBody(ctx, rawURL)
		if err != nil {
			return nil, &Error{URL: rawURL, Message: "revalidated entry missing", Status: resp.Status, Cause: err}
		}
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && resp.ContentType == "" {
			resp.ContentType = meta.ContentType
		}
		resp.Body = body
		resp.FromCache = true
		return resp, nil
	}
	if c.Cache != nil && resp.Status == http.StatusOK {
		_ = c.Cache.Save(ctx, rawURL, resp.ContentType, r.header.Get("ETag"), r.header.Get("Last-Modified"), resp.Body)
	}
	return resp, nil
}

type responseWithHeader struct {
	Response
	header http.Header
}

func (c *Client) tryOnce(ctx context.Context, rawURL, etag, lastMod string) (*responseWithHeader, error) {
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "new request", Cause: err}
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.5")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "request", Cause: err}
	}
	defer resp.Body.Close()

	out := &responseWithHeader{
		Response: Response{URL: resp.Request.URL.String(), ContentType: resp.Header.Get("Content-Type"), Status: resp.StatusCode},
		header:   resp.Header,
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, &Error{URL: rawURL, Message: "server error", Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotModified:
		return out, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{URL: rawURL, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode), Status: resp.StatusCode}
	}
	if !isAllowedContentType(out.ContentType, out.URL) {
		return nil, &Error{URL: rawURL, Message: "unsupported content type " + out.ContentType, Status: resp.StatusCode}
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "read body", Status: resp.StatusCode, Cause: err}
	}
	if int64(len(b)) > limit {
		return nil, &Error{URL: rawURL, Message: fmt.Sprintf("body exceeds %d bytes", limit), Status: resp.StatusCode}
	}
	out.Body = b
	return out, nil
}

func (c *Client) httpClient() *http.Client {
	base := http.Client{Timeout: c.PerRequestTimeout}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	base.CheckRedirect = c.checkRedirect
	return &base
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	hops := c.RedirectMaxHops
	if hops <= 0 {
		hops = 5
	}
	if len(via) >= hops {
		return errors.New("too many redirects")
	}
	if !isHTTPScheme(req.URL) {
		return fmt.Errorf("redirect to %s: %w", req.URL.Scheme, ErrUnsafeURL)
	}
	if !c.AllowPrivateHosts && robots.IsLocalOrPrivateHost(req.URL.Hostname()) {
		return fmt.Errorf("redirect to %s: %w", req.URL.Hostname(), ErrUnsafeURL)
	}
	return nil
}

// isTransient treats 5xx responses and timeouts as retryable.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var fe *Error
	return errors.As(err, &fe) && fe.Status >= 500
}

// CheckPublicURL accepts absolute http(s) URLs whose host is not loopback,
// private, link-local or a localhost name.
func CheckPublicURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if !isHTTPScheme(u) {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	}
	if robots.IsLocalOrPrivateHost(u.Hostname()) {
		return fmt.Errorf("%w: host %q", ErrUnsafeURL, u.Hostname())
	}
	return nil
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// isAllowedContentType accepts HTML, XHTML and PDF, plus octet-stream or a
// missing type when the URL names a .pdf.
func isAllowedContentType(ct, finalURL string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	switch {
	case strings.HasPrefix(ct, "text/html"),
		strings.HasPrefix(ct, "application/xhtml+xml"),
		strings.HasPrefix(ct, "application/pdf"):
		return true
	case ct == "" || strings.HasPrefix(ct, "application/octet-stream"):
		return strings.HasSuffix(strings.ToLower(pathOf(finalURL)), ".pdf")
	}
	return false
}

func pathOf(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	return raw
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}
