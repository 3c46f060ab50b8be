package llm

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/1323216010/exam/internal/domain"
)

// Gemini streams completions from the Google Gemini API.
type Gemini struct {
	client          *genai.Client
	model           string
	includeThoughts bool
	timeout         time.Duration
}

// NewGemini creates a Gemini streamer.
func NewGemini(ctx context.Context, apiKey, model string, includeThoughts bool, timeout time.Duration) (*Gemini, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, domain.APIError("failed to create Gemini client", err)
	}
	return &Gemini{client: c, model: model, includeThoughts: includeThoughts, timeout: timeout}, nil
}

// Stream sends req and forwards tagged chunks to chunkCh. It does not close chunkCh.
func (g *Gemini) Stream(ctx context.Context, req domain.Request, chunkCh chan<- domain.Chunk) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, geminiContents(req), g.config(req)) {
		if err != nil {
			return domain.APIError("stream failed", err)
		}
		for _, chunk := range geminiChunks(resp) {
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				return domain.APIError("stream failed", ctx.Err())
			}
		}
	}
	return nil
}

func (g *Gemini) config(req domain.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}
	if g.includeThoughts {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return cfg
}

func geminiContents(req domain.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	parts = append(parts, &genai.Part{Text: req.Instruction})
	for _, img := range req.Images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: img.Data}})
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

// geminiChunks tags each text part; thought parts are reasoning.
func geminiChunks(resp *genai.GenerateContentResponse) []domain.Chunk {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}

	var out []domain.Chunk
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		kind := domain.ChunkContent
		if part.Thought {
			kind = domain.ChunkReasoning
		}
		out = append(out, domain.Chunk{Kind: kind, Text: part.Text})
	}
	return out
}
