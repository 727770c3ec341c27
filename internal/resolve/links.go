package resolve

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"}

// NormalizeURL drops the fragment and tracking parameters and lowercases the
// host. Unparseable input is returned trimmed.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	normalize(u)
	return u.String()
}

func normalize(u *url.URL) {
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}

// MenuLinks returns absolute http(s) links on the page whose text or href
// mentions "menu", in document order without duplicates.
func MenuLinks(markup []byte, baseURL string) []string {
	return links(markup, baseURL, func(s *goquery.Selection, href string) bool {
		return strings.Contains(strings.ToLower(s.Text()), "menu") || strings.Contains(strings.ToLower(href), "menu")
	})
}

// PDFLink returns the first link to a .pdf document on the page.
func PDFLink(markup []byte, baseURL string) (string, bool) {
	found := links(markup, baseURL, func(_ *goquery.Selection, href string) bool {
		u, err := url.Parse(href)
		return err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
	})
	if len(found) == 0 {
		return "", false
	}
	return found[0], true
}

func links(markup []byte, baseURL string, keep func(s *goquery.Selection, href string) bool) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || !keep(s, href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		normalize(abs)
		key := abs.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	})
	return out
}
