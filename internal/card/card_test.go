package card

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hyperifyio/dinecoach/internal/document"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/rank"
	"github.com/hyperifyio/dinecoach/internal/score"
)

func TestWrite_PicksAreReadableText(t *testing.T) {
	res, err := rank.Rank([]menu.Candidate{
		{Section: "Seafood", Name: "Grilled Salmon", Description: "seared, lemon butter, with rice and broccoli"},
		{Section: "Salads", Name: "Cobb", Description: "chicken, egg, ranch"},
		{Section: "Pasta", Name: "Alfredo", Description: "creamy"},
	}, score.DefaultPreferences(), rank.Options{})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, Card{Restaurant: "Café Uno", Subtitle: "Target 600 kcal", Result: res, Alternates: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF")
	}
	text := document.Text(context.Background(), buf.Bytes(), document.Options{})
	for _, want := range []string{"Café Uno", "1. Grilled Salmon", "sauce on the side", "Also good"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in card text:\n%s", want, text)
		}
	}
}

func TestWrite_EmptyResultShowsFallbackRules(t *testing.T) {
	res, _ := rank.Rank(nil, score.DefaultPreferences(), rank.Options{})
	var buf bytes.Buffer
	if err := Write(&buf, Card{Result: res}); err != nil {
		t.Fatalf("write: %v", err)
	}
	text := document.Text(context.Background(), buf.Bytes(), document.Options{})
	if !strings.Contains(text, "Order card") || !strings.Contains(text, "General rules") {
		t.Fatalf("unexpected card text:\n%s", text)
	}
}
