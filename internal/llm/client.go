// Package llm adapts remote AI completion services to domain.Streamer.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/1323216010/exam/internal/domain"
)

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	enableThinking bool
	httpClient     *http.Client
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// ResponseFormat asks the model for a particular output shape
type ResponseFormat struct {
	Type string `json:"type"`
}

// Request represents the API request structure
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	EnableThinking *bool           `json:"enable_thinking,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Response represents one streamed completion chunk
type Response struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Error   *APIFault `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message delta in streaming response
type Delta struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

// APIFault is an error object delivered inside the stream
type APIFault struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithThinking enables the provider's reasoning mode.
func WithThinking(enabled bool) ClientOption {
	return func(c *Client) { c.enableThinking = enabled }
}

// WithTimeout bounds a whole request including the stream body.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new LLM client
func NewClient(apiKey, baseURL, model string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream sends req and forwards every tagged chunk to chunkCh. It does not close chunkCh.
func (c *Client) Stream(ctx context.Context, req domain.Request, chunkCh chan<- domain.Chunk) error {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return domain.APIError("failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.APIError("failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.APIError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.APIError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))), nil)
	}

	if err := NewStreamParser(resp.Body).ParseAll(ctx, chunkCh); err != nil {
		return domain.APIError("stream failed", err)
	}
	return nil
}

// buildRequest constructs the API request with text first, then images
func (c *Client) buildRequest(req domain.Request) *Request {
	parts := make([]ContentPart, 0, len(req.Images)+1)
	parts = append(parts, ContentPart{Type: "text", Text: req.Instruction})
	for _, img := range req.Images {
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: DataURL(img)},
		})
	}

	out := &Request{
		Model:    c.model,
		Messages: []Message{{Role: "user", Content: parts}},
		Stream:   true,
	}
	if c.enableThinking {
		enabled := true
		out.EnableThinking = &enabled
	}
	if req.JSONOutput {
		out.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	return out
}

// DataURL encodes an image as a base64 data URL.
func DataURL(img domain.ImagePart) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
