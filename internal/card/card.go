// Package card renders a one-page printable order card: the top picks with
// their estimates, the modifiers to ask for and the sentence to say.
package card

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/dinecoach/internal/rank"
)

// Card is the content of one order card.
type Card struct {
	Restaurant string
	// Subtitle is free text under the title, such as the calorie target.
	Subtitle string
	Result   rank.Result
	// Alternates includes the alternates after the picks.
	Alternates bool
}

// Write renders c as a PDF to w.
func Write(w io.Writer, c Card) error {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	title := "Order card"
	if strings.TrimSpace(c.Restaurant) != "" {
		title = c.Restaurant
	}
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(title), "", "L", false)
	if c.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr(c.Subtitle), "", "L", false)
	}
	pdf.Ln(3)

	picks := c.Result.Picks
	if len(picks) == 0 {
		heading(pdf, tr, "No menu items found. General rules:")
		bullets(pdf, tr, c.Result.FallbackRules)
	}
	for i, p := range picks {
		writePick(pdf, tr, i+1, p)
	}
	if c.Alternates && len(c.Result.Alternates) > 0 {
		heading(pdf, tr, "Also good")
		var lines []string
		for _, a := range c.Result.Alternates {
			lines = append(lines, fmt.Sprintf("%s (~%d kcal, ~%d g protein)", a.Name, a.Kcal, a.ProteinG))
		}
		bullets(pdf, tr, lines)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render card: %w", err)
	}
	return pdf.Output(w)
}

func writePick(pdf *gofpdf.Fpdf, tr func(string) string, n int, p rank.ScoredPick) {
	heading(pdf, tr, fmt.Sprintf("%d. %s", n, p.Name))
	pdf.SetFont("Helvetica", "", 9)
	meta := fmt.Sprintf("~%d kcal, ~%d g protein, %s confidence", p.Kcal, p.ProteinG, p.Confidence)
	if p.Section != "" {
		meta = p.Section + " | " + meta
	}
	pdf.MultiCell(0, 5, tr(meta), "", "L", false)
	if len(p.Modifiers) > 0 {
		bullets(pdf, tr, p.Modifiers)
	}
	pdf.SetFont("Helvetica", "I", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.MultiCell(0, 6, tr("Say: "+p.ServerScript), "1", "L", true)
	pdf.Ln(4)
}

func heading(pdf *gofpdf.Fpdf, tr func(string) string, s string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.MultiCell(0, 7, tr(s), "", "L", false)
}

func bullets(pdf *gofpdf.Fpdf, tr func(string) string, lines []string) {
	pdf.SetFont("Helvetica", "", 10)
	for _, l := range lines {
		pdf.MultiCell(0, 5, tr("- "+l), "", "L", false)
	}
	pdf.Ln(2)
}
