package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/dinecoach/internal/document"
)

type capturingClient struct {
	req   openai.ChatCompletionRequest
	reply string
	err   error
}

func (c *capturingClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.req = req
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: c.reply}}}}, nil
}

func TestRecognizer_SendsImageAsDataURI(t *testing.T) {
	client := &capturingClient{reply: "```text\nMAINS\nGrilled Salmon - rice\n```"}
	r := &Recognizer{Client: client, Model: "vision-model"}
	text, err := r.Recognize(context.Background(), document.Image{Page: 2, MIME: "image/jpeg", Data: []byte("JPEG")})
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if text != "MAINS\nGrilled Salmon - rice" {
		t.Fatalf("unexpected text %q", text)
	}
	if client.req.Model != "vision-model" || len(client.req.Messages) != 2 {
		t.Fatalf("unexpected request %+v", client.req)
	}
	parts := client.req.Messages[1].MultiContent
	if len(parts) != 2 || parts[1].ImageURL == nil {
		t.Fatalf("expected text and image parts, got %+v", parts)
	}
	if want := "data:image/jpeg;base64,SlBFRw=="; parts[1].ImageURL.URL != want {
		t.Fatalf("expected %s, got %s", want, parts[1].ImageURL.URL)
	}
	if !strings.Contains(parts[0].Text, "page 2") {
		t.Fatalf("expected page number in prompt, got %q", parts[0].Text)
	}
}

func TestRecognizer_Errors(t *testing.T) {
	if _, err := (&Recognizer{}).Recognize(context.Background(), document.Image{Data: []byte("x")}); err == nil {
		t.Fatalf("expected error for unconfigured recognizer")
	}
	r := &Recognizer{Client: &capturingClient{reply: "  "}, Model: "m"}
	if _, err := r.Recognize(context.Background(), document.Image{Data: []byte("x")}); !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
	boom := errors.New("unavailable")
	r.Client = &capturingClient{err: boom}
	if _, err := r.Recognize(context.Background(), document.Image{Data: []byte("x")}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

type pageImages []document.Image

func (p pageImages) Rasterize(context.Context, []byte, int) ([]document.Image, error) {
	return p, nil
}

func TestRecognizer_FeedsDocumentPipeline(t *testing.T) {
	r := &Recognizer{Client: &capturingClient{reply: "SALADS\nGarden Salad - greens, vinaigrette"}, Model: "m"}
	cands, err := document.Candidates(context.Background(), []byte("%PDF-1.4 scanned"), document.Options{
		OCR:        true,
		Recognizer: r,
		Rasterizer: pageImages{{Page: 1, MIME: "image/jpeg", Data: []byte("JPEG")}},
	})
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(cands) != 1 || cands[0].Section != "Salads" || cands[0].Name != "Garden Salad" {
		t.Fatalf("unexpected candidates %+v", cands)
	}
}
