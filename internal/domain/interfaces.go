package domain

import "context"

// Rasterizer turns a document into an ordered sequence of page images
type Rasterizer interface {
	// Convert returns N pages in page order, or an error
	Convert(ctx context.Context, docPath string) ([]PageImage, error)
}

// Streamer is the AI service boundary. Implementations send every chunk
// to chunkCh in arrival order and return once the stream ends.
// They never close chunkCh.
type Streamer interface {
	Stream(ctx context.Context, req Request, chunkCh chan<- Chunk) error
}

// Transcriber turns one page image into a PageResult
type Transcriber interface {
	Transcribe(ctx context.Context, image PageImage) PageResult
}
