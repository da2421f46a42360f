package interpret

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend implements Backend against the Google GenAI API. One client
// serves every model in the fallback chain.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend creates the backend. Credentials come from the
// environment (GEMINI_API_KEY or application default credentials).
func NewGeminiBackend(ctx context.Context) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{client: client}, nil
}

// Generate sends the prompt, with the image inlined when present, to the
// named model and returns the raw response text.
func (b *GeminiBackend) Generate(ctx context.Context, model string, req Request) (string, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: mime,
				Data:     req.Image,
			},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from %s", model)
	}
	return text, nil
}
