// Package extract reads restaurant markup. Candidates finds structured menu
// items; FromHTML produces line-oriented readable text for the document
// segmenter when no structure is present.
package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Document is the readable text of a page.
type Document struct {
	Title string
	Text  string
}

// FromHTML extracts readable text from HTML, preferring a menu container,
// then <main> or <article>, falling back to <body>. Headings, paragraphs and
// list items each land on their own line and table cells of one row are
// joined with " - " so that name and description stay together. Navigation,
// footers and consent banners are skipped.
func FromHTML(input []byte) Document {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}
	}

	title := strings.TrimSpace(findTitle(node))
	content := findFirstFunc(node, isMenuElement)
	for _, tag := range []string{"main", "article", "body"} {
		if content != nil {
			break
		}
		content = findFirst(node, tag)
	}
	var b strings.Builder
	if content != nil {
		collectText(&b, content, false)
	}
	return Document{Title: title, Text: normalizeWhitespace(b.String())}
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	return findFirstFunc(n, func(cur *html.Node) bool {
		return cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag)
	})
}

func findFirstFunc(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirstFunc(c, match); res != nil {
			return res
		}
	}
	return nil
}

// isMenuElement matches a non-navigation block whose class or id mentions a
// menu and which holds more than a handful of text.
func isMenuElement(n *html.Node) bool {
	if n.Type != html.ElementNode || isBoilerplateContainer(n) {
		return false
	}
	switch strings.ToLower(n.Data) {
	case "nav", "header", "footer", "a", "button", "li", "ul":
		return false
	}
	v := attrValues(n)
	return strings.Contains(v, "menu") && !containsAny(v, navHints)
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		if isBoilerplateContainer(n) {
			return
		}
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe", "svg", "template":
			return
		case "pre":
			inPre = true
		case "br", "hr", "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol", "tr", "dt":
			b.WriteString("\n")
		case "td", "th", "dd":
			if n.Parent != nil && firstElementChild(n.Parent) != n {
				b.WriteString(" - ")
			}
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if !inPre {
			data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
		}
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		case "div", "pre", "dd":
			b.WriteString("\n")
		}
	}
}

func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// isBoilerplateContainer returns true if the element looks like a cookie/consent banner.
func isBoilerplateContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && !strings.HasPrefix(key, "data-") && key != "aria-label" && key != "role" {
			continue
		}
		val := strings.ToLower(attr.Val)
		if containsAny(val, []string{"cookie", "consent", "gdpr", "newsletter", "age-gate"}) {
			return true
		}
		if key == "role" && (val == "navigation" || val == "banner" || val == "dialog") {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// normalizeWhitespace trims every line, collapses runs of spaces and keeps
// at most one blank line in a row.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Trim(strings.Join(strings.Fields(line), " "), " -")
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
