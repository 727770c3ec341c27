package extract

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hyperifyio/dinecoach/internal/menu"
)

// minStructuredItems is the structured-item count below which the
// heading-anchored scan also runs.
const minStructuredItems = 8

// headingWindow bounds how many siblings after a heading are inspected.
const headingWindow = 12

const headingSelector = "h1,h2,h3,h4,h5,h6"

var (
	itemHints = []string{"item", "dish", "product", "entree", "food"}
	nameHints = []string{"name", "title", "heading"}
	descHints = []string{"desc", "ingredient", "detail", "summary"}
	navHints  = []string{"nav", "toggle", "dropdown", "hamburger", "breadcrumb", "social"}
	dashSplit = []string{" - ", " – ", " — "}
)

// fieldHints mark parts of an item rather than the item itself.
var fieldHints = []string{"name", "title", "desc", "detail", "ingredient", "summary", "price", "image", "img", "photo", "icon", "badge", "tag", "cost"}

// sectionHints maps a keyword found in ancestor class names or ids to a section
// label.
var sectionHints = []struct{ key, label string }{
	{"appetizer", "Appetizers"},
	{"starter", "Appetizers"},
	{"main", "Mains"},
	{"entree", "Mains"},
	{"salad", "Salads"},
	{"pasta", "Pasta"},
	{"pizza", "Pizza"},
	{"sandwich", "Sandwiches"},
	{"bowl", "Bowls"},
	{"taco", "Tacos"},
	{"seafood", "Seafood"},
	{"steak", "Steak"},
	{"side", "Sides"},
}

// MenuExtractor turns restaurant markup into menu candidates.
type MenuExtractor interface {
	Candidates(markup []byte) []menu.Candidate
}

// StructuredExtractor reads class-annotated menu blocks and falls back to a
// heading-anchored scan on sparse pages.
type StructuredExtractor struct{}

func (StructuredExtractor) Candidates(markup []byte) []menu.Candidate {
	return Candidates(markup)
}

// Candidates extracts section, name and description triples from markup. It
// never fails: unparseable input yields an empty list.
func Candidates(markup []byte) []menu.Candidate {
	out := []menu.Candidate{}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return out
	}
	doc.Find("script,style,noscript,template,iframe,svg").Remove()

	roots := menuContainers(doc)
	var raw []menu.Candidate
	roots.Each(func(_ int, root *goquery.Selection) {
		raw = append(raw, structuredItems(root)...)
	})
	if len(raw) < minStructuredItems {
		roots.Each(func(_ int, root *goquery.Selection) {
			raw = append(raw, headingScan(root)...)
		})
	}

	for _, c := range raw {
		if cleaned, ok := menu.Clean(c); ok {
			out = append(out, cleaned)
		}
	}
	return menu.Dedupe(out, menu.BySectionName)
}

// menuContainers returns the outermost elements whose class or id mentions a
// menu, skipping navigation and consent banners. When none exist the whole
// body is used.
func menuContainers(doc *goquery.Document) *goquery.Selection {
	marked := doc.Find("[class],[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if !attrHas(n, "menu") || attrHas(n, navHints...) || isBoilerplateContainer(n) || isItemBlock(n) {
			return false
		}
		if s.Is("nav,header,footer,a,button,ul.menu,li") || s.Closest("nav,header,footer").Length() > 0 {
			return false
		}
		return true
	})
	outer := marked.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Parents().FilterNodes(marked.Nodes...).Length() == 0
	})
	if outer.Length() > 0 {
		return outer
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func structuredItems(root *goquery.Selection) []menu.Candidate {
	blocks := root.Find("[class]").AddSelection(root).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isItemBlock(s.Get(0))
	})
	// innermost blocks only; wrappers like "menu-items" hold the real items
	blocks = blocks.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("*").FilterNodes(blocks.Nodes...).Length() == 0
	})

	var out []menu.Candidate
	blocks.Each(func(_ int, b *goquery.Selection) {
		name := menu.StripPrice(hintedText(b, nameHints, "h2,h3,h4,h5,h6,strong,b"))
		desc := menu.StripPrice(hintedText(b, descHints, "p"))
		if name == "" {
			name, desc = splitLine(b)
		}
		if desc == name {
			desc = ""
		}
		out = append(out, menu.Candidate{Section: sectionFor(b), Name: name, Description: desc})
	})
	return out
}

func isItemBlock(n *html.Node) bool {
	return attrHas(n, itemHints...) && !attrHas(n, fieldHints...) && !attrHas(n, "menu-items", "items-list")
}

// hintedText returns the text of the first descendant whose class hints at
// the field, else the first descendant matching fallback.
func hintedText(b *goquery.Selection, hints []string, fallback string) string {
	hinted := b.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attrHas(s.Get(0), hints...)
	})
	if hinted.Length() > 0 {
		return menu.CollapseSpaces(hinted.First().Text())
	}
	return menu.CollapseSpaces(b.Find(fallback).First().Text())
}

// sectionFor walks up from s and returns the nearest heading that precedes
// it, then falls back to section keywords in ancestor classes and ids.
func sectionFor(s *goquery.Selection) string {
	for cur := s; cur.Length() > 0 && !cur.Is("html"); cur = cur.Parent() {
		for prev := cur.Prev(); prev.Length() > 0; prev = prev.Prev() {
			// sibling items carry their own name headings
			if isItemBlock(prev.Get(0)) {
				continue
			}
			if prev.Is(headingSelector) {
				return menu.CollapseSpaces(prev.Text())
			}
			if h := prev.Find(headingSelector); h.Length() > 0 {
				return menu.CollapseSpaces(h.Last().Text())
			}
		}
	}
	for cur := s; cur.Length() > 0 && !cur.Is("html"); cur = cur.Parent() {
		if label := sectionHint(attrValues(cur.Get(0))); label != "" {
			return label
		}
	}
	return ""
}

func sectionHint(s string) string {
	for _, h := range sectionHints {
		if strings.Contains(s, h.key) {
			return h.label
		}
	}
	return ""
}

// headingScan inspects a bounded window of siblings after each heading and
// splits list items and paragraphs into name and description.
func headingScan(root *goquery.Selection) []menu.Candidate {
	var out []menu.Candidate
	root.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		section := menu.CollapseSpaces(h.Text())
		sib := h.Next()
		for i := 0; i < headingWindow && sib.Length() > 0; i++ {
			if sib.Is(headingSelector) || sib.Find(headingSelector).Length() > 0 {
				break
			}
			if isItemBlock(sib.Get(0)) {
				sib = sib.Next()
				continue
			}
			lines := sib.Find("li,p").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Find("li,p").Length() == 0
			})
			if lines.Length() == 0 && sib.Is("p,li,div") {
				lines = sib
			}
			lines.Each(func(_ int, l *goquery.Selection) {
				name, desc := splitLine(l)
				if name != "" {
					out = append(out, menu.Candidate{Section: section, Name: name, Description: desc})
				}
			})
			sib = sib.Next()
		}
	})
	return out
}

// splitLine divides a text block into name and description using a bold
// lead, else a dash separator, else the first words of a capitalized line.
func splitLine(s *goquery.Selection) (string, string) {
	text := menu.StripPrice(menu.CollapseSpaces(s.Text()))
	if len(text) < 5 {
		return "", ""
	}
	if lead := menu.CollapseSpaces(s.Find("strong,b").First().Text()); lead != "" && strings.HasPrefix(text, lead) {
		return menu.StripPrice(lead), strings.TrimSpace(text[len(lead):])
	}
	for _, sep := range dashSplit {
		if name, desc, ok := strings.Cut(text, sep); ok && len(name) <= 60 {
			return name, desc
		}
	}
	words := strings.Fields(text)
	if first := []rune(words[0]); len(first) > 0 && unicode.IsUpper(first[0]) {
		n := min(5, len(words))
		return strings.Join(words[:n], " "), strings.Join(words[n:], " ")
	}
	return "", ""
}

func attrValues(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for _, a := range n.Attr {
		if a.Key == "class" || a.Key == "id" {
			b.WriteString(strings.ToLower(a.Val))
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func attrHas(n *html.Node, needles ...string) bool {
	return containsAny(attrValues(n), needles)
}
