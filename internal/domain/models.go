package domain

import (
	"time"
	"unicode/utf8"
)

// PageImage represents a single rasterized document page
type PageImage struct {
	PageNumber int    // 1-based, contiguous
	ImagePath  string // Path to the PNG written by the rasterizer
	Width      int
	Height     int
}

// PageStatus is the outcome of transcribing one page
type PageStatus string

const (
	PageSucceeded PageStatus = "succeeded"
	PageFailed    PageStatus = "failed"
)

// PageResult is the transcription outcome for one page.
// Text is set only when Status is PageSucceeded.
type PageResult struct {
	PageNumber int
	Status     PageStatus
	Text       string
	Err        error // failure reason, for reporting only
}

// Succeeded reports whether the page produced a transcription.
func (r PageResult) Succeeded() bool {
	return r.Status == PageSucceeded
}

// SucceededPage builds a successful result.
func SucceededPage(pageNumber int, text string) PageResult {
	return PageResult{PageNumber: pageNumber, Status: PageSucceeded, Text: text}
}

// FailedPage builds a failed result carrying no text.
func FailedPage(pageNumber int, err error) PageResult {
	return PageResult{PageNumber: pageNumber, Status: PageFailed, Err: err}
}

// Summary holds the counts reported after a document is assembled
type Summary struct {
	TotalPages  int   `json:"total_pages"`
	Succeeded   int   `json:"succeeded"`
	Failed      int   `json:"failed"`
	FailedPages []int `json:"failed_pages"`
	Characters  int   `json:"characters"`
}

// Summarize computes the summary for pages rendered into markdown.
func Summarize(pages []PageResult, markdown string) Summary {
	s := Summary{
		TotalPages:  len(pages),
		FailedPages: []int{},
		Characters:  utf8.RuneCountInString(markdown),
	}
	for _, p := range pages {
		if p.Succeeded() {
			s.Succeeded++
			continue
		}
		s.Failed++
		s.FailedPages = append(s.FailedPages, p.PageNumber)
	}
	return s
}

// AssembledDocument is the result of one conversion run
type AssembledDocument struct {
	SourcePath string
	OutputPath string
	Pages      []PageResult // page order
	Markdown   string
	Summary    Summary
}

// ChunkKind tags an incremental piece of model output
type ChunkKind int

const (
	ChunkReasoning ChunkKind = iota + 1
	ChunkContent
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkReasoning:
		return "reasoning"
	case ChunkContent:
		return "content"
	default:
		return "unknown"
	}
}

// Chunk is one streamed fragment from the AI service
type Chunk struct {
	Kind ChunkKind
	Text string
}

// ImagePart is an image attached to a request
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// Request is a single-turn request to the AI service
type Request struct {
	Instruction string
	Images      []ImagePart
	JSONOutput  bool // ask the model for a JSON object
}

// ManifestEntry is one exam file listed in the manifest
type ManifestEntry struct {
	File    string `json:"file"`
	Subject string `json:"subject"`
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventRasterized     EventType = "rasterized"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventPageFailed     EventType = "page_failed"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents a progress event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
