// Package assemble drives page transcription for one document and persists the Markdown.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/1323216010/exam/internal/domain"
	"github.com/1323216010/exam/internal/observability"
	"github.com/1323216010/exam/internal/raster"
)

// DocumentTranscriber transcribes all pages in a single request.
type DocumentTranscriber interface {
	TranscribeDocument(ctx context.Context, images []domain.PageImage) (string, error)
}

// Options controls one Assemble run
type Options struct {
	OutputPath    string // defaults to <dir>/<stem>.md
	Workers       int    // concurrent page transcriptions, default 1
	SingleRequest bool   // send every page in one request
	KeepImages    bool
}

// Assembler orchestrates the document conversion process
type Assembler struct {
	rasterizer  domain.Rasterizer
	transcriber domain.Transcriber
	cleanup     func(docPath string) error
	logger      *observability.Logger
}

// NewAssembler creates a new document assembler
func NewAssembler(rasterizer domain.Rasterizer, transcriber domain.Transcriber, logger *observability.Logger) *Assembler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Assembler{
		rasterizer:  rasterizer,
		transcriber: transcriber,
		cleanup:     raster.RemoveImages,
		logger:      logger.WithOperation("assemble"),
	}
}

// DefaultOutputPath returns <dir>/<stem>.md for docPath.
func DefaultOutputPath(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), raster.Stem(docPath)+".md")
}

// Assemble converts docPath page by page and writes the Markdown file.
// Page failures are recorded in the result; only input, rasterization and write errors are returned.
func (a *Assembler) Assemble(ctx context.Context, docPath string, opts Options, eventCh chan<- domain.StreamEvent) (*domain.AssembledDocument, error) {
	startTime := time.Now()
	log := a.logger.WithContext(ctx).WithDocument(docPath)

	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutputPath(docPath)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	if _, err := os.Stat(docPath); err != nil {
		err = domain.ValidationError(fmt.Sprintf("input file not found: %s", docPath), err)
		a.emitError(eventCh, err)
		return nil, err
	}

	a.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		Payload:   docPath,
		Timestamp: time.Now(),
	})

	log.Info().Msg("rasterizing document")
	images, err := a.rasterizer.Convert(ctx, docPath)
	if err != nil {
		if !domain.IsType(err, domain.ErrorTypeValidation) && !errors.Is(err, domain.ErrNoPages) {
			err = domain.ConversionError("rasterization failed", err)
		}
		a.emitError(eventCh, err)
		return nil, err
	}
	if len(images) == 0 {
		a.emitError(eventCh, domain.ErrNoPages)
		return nil, domain.ErrNoPages
	}

	if !opts.KeepImages {
		defer func() {
			if err := a.cleanup(docPath); err != nil {
				log.Warn().Err(err).Msg("could not remove page images")
			}
		}()
	}

	log.Info().Int("pages", len(images)).Msg("document rasterized")
	a.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventRasterized,
		Payload:   len(images),
		Timestamp: time.Now(),
	})

	doc := &domain.AssembledDocument{
		SourcePath: docPath,
		OutputPath: opts.OutputPath,
	}

	if opts.SingleRequest {
		if err := a.transcribeWhole(ctx, images, doc); err != nil {
			a.emitError(eventCh, err)
			return nil, err
		}
	} else {
		doc.Pages = a.transcribePages(ctx, images, opts.Workers, eventCh)
		// An interrupted run must not replace an earlier transcription.
		if ctx.Err() != nil {
			err := domain.TranscriptionError("conversion interrupted", ctx.Err())
			a.emitError(eventCh, err)
			return nil, err
		}
		doc.Markdown = Render(doc.Pages)
		doc.Summary = domain.Summarize(doc.Pages, doc.Markdown)
	}

	if err := os.WriteFile(opts.OutputPath, []byte(doc.Markdown), 0644); err != nil {
		err = domain.IOError(fmt.Sprintf("failed to write %s", opts.OutputPath), err)
		a.emitError(eventCh, err)
		return nil, err
	}

	log.Info().
		Int("total", doc.Summary.TotalPages).
		Int("succeeded", doc.Summary.Succeeded).
		Int("failed", doc.Summary.Failed).
		Ints("failed_pages", doc.Summary.FailedPages).
		Int("chars", doc.Summary.Characters).
		Str("output", opts.OutputPath).
		Dur("took", time.Since(startTime)).
		Msg("document assembled")

	a.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		Payload:   doc.Summary,
		Timestamp: time.Now(),
	})

	return doc, nil
}

// transcribePages runs the transcriber over images with at most workers in flight.
// Results are stored by page index, so the slice is in page order whatever the completion order.
func (a *Assembler) transcribePages(ctx context.Context, images []domain.PageImage, workers int, eventCh chan<- domain.StreamEvent) []domain.PageResult {
	results := make([]domain.PageResult, len(images))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, image := range images {
		g.Go(func() error {
			a.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageProcessing,
				PageNumber: image.PageNumber,
				Timestamp:  time.Now(),
			})

			res := a.transcriber.Transcribe(ctx, image)
			results[i] = res

			if res.Succeeded() {
				a.emitEvent(eventCh, domain.StreamEvent{
					Type:       domain.EventPageComplete,
					PageNumber: image.PageNumber,
					Payload:    utf8.RuneCountInString(res.Text),
					Timestamp:  time.Now(),
				})
				return nil
			}

			reason := "unknown error"
			if res.Err != nil {
				reason = res.Err.Error()
			}
			a.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageFailed,
				PageNumber: image.PageNumber,
				Payload:    reason,
				Timestamp:  time.Now(),
			})
			return nil
		})
	}
	_ = g.Wait() // page errors live in results

	return results
}

func (a *Assembler) transcribeWhole(ctx context.Context, images []domain.PageImage, doc *domain.AssembledDocument) error {
	dt, ok := a.transcriber.(DocumentTranscriber)
	if !ok {
		return domain.ConfigError("transcriber does not support single-request mode", nil)
	}

	text, err := dt.TranscribeDocument(ctx, images)
	if err != nil {
		return err
	}

	doc.Markdown = text
	doc.Summary = domain.Summary{
		TotalPages:  len(images),
		Succeeded:   len(images),
		FailedPages: []int{},
		Characters:  utf8.RuneCountInString(text),
	}
	return nil
}

// emitEvent safely emits an event to the channel
func (a *Assembler) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			a.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (a *Assembler) emitError(eventCh chan<- domain.StreamEvent, err error) {
	a.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
