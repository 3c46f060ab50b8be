// Package transcribe turns page images into Markdown through a streaming AI service.
package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1323216010/exam/internal/domain"
	"github.com/1323216010/exam/internal/observability"
)

// PageInstruction is sent with every single-page request.
const PageInstruction = "Convert all content in the image into complete Markdown. " +
	"Preserve the original structure, formatting and language."

// DocumentInstruction is sent with a whole-document request.
const DocumentInstruction = "Convert all content in these page images, in order, into one complete Markdown document. " +
	"Fix obvious typos. If you are not sure something is a typo, keep it as written."

// Service implements domain.Transcriber on top of a domain.Streamer
type Service struct {
	streamer domain.Streamer
	logger   *observability.Logger
}

// NewService creates a new transcription service
func NewService(streamer domain.Streamer, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		streamer: streamer,
		logger:   logger.WithOperation("transcribe"),
	}
}

// Transcribe converts one page. Any failure, including one after partial output, yields a
// failed result with no text.
func (s *Service) Transcribe(ctx context.Context, image domain.PageImage) domain.PageResult {
	log := s.logger.WithContext(ctx).WithPage(image.PageNumber)
	start := time.Now()

	part, err := loadImage(image.ImagePath)
	if err != nil {
		log.Error().Err(err).Msg("page image unreadable")
		return domain.FailedPage(image.PageNumber, err)
	}

	text, err := s.stream(ctx, domain.Request{
		Instruction: PageInstruction,
		Images:      []domain.ImagePart{part},
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("page transcription failed")
		return domain.FailedPage(image.PageNumber, err)
	}
	if text == "" {
		log.Warn().Msg("page transcription came back empty")
		return domain.FailedPage(image.PageNumber, domain.ErrEmptyTranscription)
	}

	log.Info().Int("chars", len([]rune(text))).Dur("took", time.Since(start)).Msg("page transcribed")
	return domain.SucceededPage(image.PageNumber, text)
}

// TranscribeDocument sends every page image in one request and returns the whole Markdown.
func (s *Service) TranscribeDocument(ctx context.Context, images []domain.PageImage) (string, error) {
	if len(images) == 0 {
		return "", domain.ErrNoPages
	}

	log := s.logger.WithContext(ctx)
	parts := make([]domain.ImagePart, 0, len(images))
	for _, img := range images {
		part, err := loadImage(img.ImagePath)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	text, err := s.stream(ctx, domain.Request{Instruction: DocumentInstruction, Images: parts}, log)
	if err != nil {
		return "", domain.TranscriptionError("document transcription failed", err)
	}
	if text == "" {
		return "", domain.TranscriptionError("document transcription failed", domain.ErrEmptyTranscription)
	}

	log.Info().Int("pages", len(images)).Int("chars", len([]rune(text))).Msg("document transcribed")
	return text, nil
}

// stream runs one request and returns the concatenated content chunks.
// Reasoning chunks are logged at debug level only.
func (s *Service) stream(ctx context.Context, req domain.Request, log *observability.Logger) (string, error) {
	chunkCh := make(chan domain.Chunk, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		errCh <- s.streamer.Stream(ctx, req, chunkCh)
	}()

	var content strings.Builder
	reasoning := 0
	for chunk := range chunkCh {
		switch chunk.Kind {
		case domain.ChunkContent:
			content.WriteString(chunk.Text)
		case domain.ChunkReasoning:
			reasoning += len(chunk.Text)
			log.Debug().Str("reasoning", chunk.Text).Msg("model reasoning")
		}
	}

	if err := <-errCh; err != nil {
		return "", err
	}
	if reasoning > 0 {
		log.Debug().Int("reasoning_bytes", reasoning).Msg("reasoning discarded")
	}
	return content.String(), nil
}

func loadImage(path string) (domain.ImagePart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImagePart{}, domain.IOError("failed to read page image", err)
	}
	return domain.ImagePart{MIMEType: MIMEType(path), Data: data}, nil
}

// MIMEType guesses the image type from the file extension, defaulting to PNG.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
