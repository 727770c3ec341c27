// Package ocr reads scanned menu pages with a vision-capable chat model.
package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/dinecoach/internal/document"
	"github.com/hyperifyio/dinecoach/internal/llm"
)

// ErrNoText reports an empty transcription.
var ErrNoText = errors.New("no text recognized")

const defaultSystemPrompt = "You transcribe restaurant menu pages. Output only the text printed on the page, " +
	"one menu line per line, keeping section headings on their own lines and each dish with its description " +
	"on one line as \"Name - description\". Do not add commentary, prices you cannot read, or markdown."

// Recognizer implements document.Recognizer with an OpenAI-compatible chat
// endpoint that accepts image_url parts.
type Recognizer struct {
	Client llm.Client
	Model  string
	// SystemPrompt overrides the default transcription instructions.
	SystemPrompt string
	// PageTimeout bounds one page; zero means no extra bound.
	PageTimeout time.Duration
	MaxTokens   int
}

var _ document.Recognizer = (*Recognizer)(nil)

func (r *Recognizer) Recognize(ctx context.Context, img document.Image) (string, error) {
	if r.Client == nil || strings.TrimSpace(r.Model) == "" {
		return "", errors.New("recognizer not configured")
	}
	if len(img.Data) == 0 {
		return "", ErrNoText
	}
	if r.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.PageTimeout)
		defer cancel()
	}
	system := defaultSystemPrompt
	if strings.TrimSpace(r.SystemPrompt) != "" {
		system = r.SystemPrompt
	}
	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	req := openai.ChatCompletionRequest{
		Model: r.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: fmt.Sprintf("Transcribe menu page %d.", img.Page)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    DataURI(img.MIME, img.Data),
					Detail: openai.ImageURLDetailHigh,
				}},
			}},
		},
		Temperature: 0,
		MaxTokens:   maxTokens,
		N:           1,
	}
	resp, err := r.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("recognize page %d: %w", img.Page, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoText
	}
	text := stripFences(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// DataURI encodes data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// stripFences removes a surrounding ``` block some models add anyway.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
