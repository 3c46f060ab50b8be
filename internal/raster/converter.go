// Package raster turns source documents into ordered page images.
package raster

import (
	"context"
	"fmt"
	"image/png"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/1323216010/exam/internal/domain"
	"github.com/1323216010/exam/internal/observability"
)

// DefaultDPI is the render resolution used when none is configured.
const DefaultDPI = 200

// Converter implements domain.Rasterizer using LibreOffice for DOC/DOCX and go-fitz for rendering.
type Converter struct {
	dpi       float64
	office    *OfficeConverter
	validator *Validator
	logger    *observability.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithDPI sets the render resolution.
func WithDPI(dpi float64) Option {
	return func(c *Converter) { c.dpi = dpi }
}

// WithOffice sets the DOC/DOCX converter.
func WithOffice(o *OfficeConverter) Option {
	return func(c *Converter) { c.office = o }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// NewConverter creates a new converter instance
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		dpi:       DefaultDPI,
		office:    NewOfficeConverter(""),
		validator: NewValidator(),
		logger:    observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert rasterizes docPath into <dir>/<stem>_images/page_<n>.png, one image per page in page order.
func (c *Converter) Convert(ctx context.Context, docPath string) ([]domain.PageImage, error) {
	if err := c.validator.ValidateDocumentPath(docPath); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateDPI(c.dpi); err != nil {
		return nil, err
	}

	log := c.logger.WithOperation("rasterize").WithDocument(docPath)

	pdfPath := docPath
	if NeedsOffice(docPath) {
		log.Info().Msg("converting to PDF")
		p, err := c.office.ToPDF(ctx, docPath)
		if err != nil {
			return nil, err
		}
		pdfPath = p
		log.Info().Str("pdf", pdfPath).Msg("PDF written")
	}

	if n, err := api.PageCountFile(pdfPath); err != nil {
		// pdfcpu is stricter than MuPDF; let go-fitz decide.
		log.Warn().Err(err).Msg("page count pre-check failed")
	} else if n == 0 {
		return nil, domain.ErrNoPages
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ErrNoPages
	}

	imageDir := ImageDir(docPath)
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return nil, domain.IOError("failed to create image directory", err)
	}

	images := make([]domain.PageImage, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pageNumber := i + 1
		img, err := doc.ImageDPI(i, c.dpi)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("failed to render page %d", pageNumber), err)
		}

		outputPath := PagePath(imageDir, pageNumber)
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to create image for page %d", pageNumber), err)
		}
		err = png.Encode(f, img)
		f.Close()
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("failed to encode page %d as PNG", pageNumber), err)
		}

		bounds := img.Bounds()
		images = append(images, domain.PageImage{
			PageNumber: pageNumber,
			ImagePath:  outputPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	log.Info().Int("pages", len(images)).Str("dir", imageDir).Msg("pages rendered")
	return images, nil
}

// RemoveImages deletes the page image directory for docPath.
func RemoveImages(docPath string) error {
	if err := os.RemoveAll(ImageDir(docPath)); err != nil {
		return domain.IOError("failed to remove page images", err)
	}
	return nil
}
