package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1323216010/exam/internal/domain"
)

// Supported source extensions.
const (
	ExtPDF  = ".pdf"
	ExtDOC  = ".doc"
	ExtDOCX = ".docx"
)

// Validator provides input validation for source documents
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateDocumentPath checks that path names a readable PDF, DOC or DOCX file.
func (v *Validator) ValidateDocumentPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ExtPDF, ExtDOC, ExtDOCX:
	default:
		return domain.ValidationError(fmt.Sprintf("unsupported document type %q (want .pdf, .doc or .docx)", ext), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// ValidateDPI checks the render resolution.
func (v *Validator) ValidateDPI(dpi float64) error {
	if dpi < 36 || dpi > 600 {
		return domain.ValidationError(fmt.Sprintf("dpi must be between 36 and 600, got %v", dpi), nil)
	}
	return nil
}

// NeedsOffice reports whether path must go through the office converter first.
func NeedsOffice(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ExtDOC || ext == ExtDOCX
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImageDir returns the directory page images for docPath are written to.
func ImageDir(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), Stem(docPath)+"_images")
}

// PagePath returns the image path for a 1-based page number.
func PagePath(imageDir string, pageNumber int) string {
	return filepath.Join(imageDir, fmt.Sprintf("page_%d.png", pageNumber))
}
