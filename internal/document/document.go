// Package document turns menu documents (PDF) into text and text into menu
// candidates. Embedded text is read through the document's fonts; scanned
// pages go through an injected Recognizer when OCR is enabled.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperifyio/dinecoach/internal/menu"
)

// DefaultPageCap bounds the pages read from one document.
const DefaultPageCap = 20

// ErrRecognition reports that OCR ran over a document without embedded text
// and produced no text.
var ErrRecognition = errors.New("document: text recognition produced no text")

// Options configures text extraction.
type Options struct {
	// OCR enables recognition of scanned pages when no embedded text exists.
	OCR bool
	// PageCap limits the pages read; zero means DefaultPageCap.
	PageCap    int
	Recognizer Recognizer
	// Rasterizer defaults to EmbeddedImages.
	Rasterizer Rasterizer
}

// Read returns the document's text with one newline between pages, in page
// order. Malformed input yields an empty string and no error. The error is
// non-nil only when OCR was attempted and recognized nothing; it wraps
// ErrRecognition and the last recognizer failure.
func Read(ctx context.Context, data []byte, opt Options) (string, error) {
	pageCap := opt.PageCap
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	if text := embeddedText(data, pageCap); text != "" {
		return text, nil
	}
	if !opt.OCR || opt.Recognizer == nil {
		return "", nil
	}
	return recognize(ctx, data, pageCap, opt)
}

// Text is Read without the recognition error.
func Text(ctx context.Context, data []byte, opt Options) string {
	text, _ := Read(ctx, data, opt)
	return text
}

// Candidates extracts text and segments it into menu candidates. The error is
// the one Read reports; the candidate list is always usable.
func Candidates(ctx context.Context, data []byte, opt Options) ([]menu.Candidate, error) {
	text, err := Read(ctx, data, opt)
	return Segment(text), err
}

func openPDF(data []byte) (*pdf.Reader, error) {
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func embeddedText(data []byte, pageCap int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	r, err := openPDF(data)
	if err != nil {
		return ""
	}
	var parts []string
	for i := 1; i <= r.NumPage() && i <= pageCap; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			continue
		}
		if t := pageText(rows); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// pageText joins rows top to bottom. Pieces sharing an x position come from
// one TJ array and are concatenated; separate pieces get a space.
func pageText(rows pdf.Rows) string {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position > rows[j].Position })
	var lines []string
	for _, row := range rows {
		var b strings.Builder
		prevX := 0.0
		for i, piece := range row.Content {
			if i > 0 && piece.X != prevX && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(piece.S, " ") {
				b.WriteByte(' ')
			}
			b.WriteString(piece.S)
			prevX = piece.X
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func recognize(ctx context.Context, data []byte, pageCap int, opt Options) (string, error) {
	r := opt.Rasterizer
	if r == nil {
		r = EmbeddedImages{}
	}
	images, err := r.Rasterize(ctx, data, pageCap)
	if len(images) == 0 {
		if err != nil {
			return "", fmt.Errorf("%w: rasterize: %w", ErrRecognition, err)
		}
		return "", fmt.Errorf("%w: no page images", ErrRecognition)
	}
	var parts []string
	var lastErr error
	for i, img := range images {
		if i >= pageCap {
			break
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		t, err := opt.Recognizer.Recognize(ctx, img)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", img.Page, err)
			continue
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("%w: %w", ErrRecognition, lastErr)
		}
		return "", ErrRecognition
	}
	return strings.Join(parts, "\n"), nil
}
