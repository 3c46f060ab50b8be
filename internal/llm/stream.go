package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/1323216010/exam/internal/domain"
)

// maxLineSize bounds one SSE line; page transcriptions can arrive in large deltas.
const maxLineSize = 1 << 20

// StreamParser handles parsing of Server-Sent Events (SSE) streams
type StreamParser struct {
	scanner *bufio.Scanner
}

// NewStreamParser creates a new stream parser
func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamParser{scanner: scanner}
}

// StreamChunk represents a single decoded event from the stream
type StreamChunk struct {
	Chunks []domain.Chunk
	Done   bool
}

// Next reads the next event from the stream.
// Events without choices and malformed JSON lines are skipped.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			continue
		}

		if resp.Error != nil {
			return nil, fmt.Errorf("provider error: %s", resp.Error.Message)
		}

		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		out := &StreamChunk{}
		if delta.ReasoningContent != "" {
			out.Chunks = append(out.Chunks, domain.Chunk{Kind: domain.ChunkReasoning, Text: delta.ReasoningContent})
		}
		if delta.Content != "" {
			out.Chunks = append(out.Chunks, domain.Chunk{Kind: domain.ChunkContent, Text: delta.Content})
		}
		return out, nil
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	return &StreamChunk{Done: true}, nil
}

// ParseAll reads all events and sends their chunks to chunkCh in arrival order.
func (p *StreamParser) ParseAll(ctx context.Context, chunkCh chan<- domain.Chunk) error {
	for {
		ev, err := p.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		for _, chunk := range ev.Chunks {
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if ev.Done {
			return nil
		}
	}
}
