package raster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/1323216010/exam/internal/domain"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// OfficeConverter turns DOC/DOCX files into PDF with a headless LibreOffice.
type OfficeConverter struct {
	bin  string
	exec executor
}

// NewOfficeConverter returns a converter that runs the given soffice binary.
func NewOfficeConverter(bin string) *OfficeConverter {
	if bin == "" {
		bin = "soffice"
	}
	return &OfficeConverter{bin: bin, exec: osExecutor{}}
}

// ToPDF writes <dir>/<stem>.pdf next to docPath and returns its path.
func (o *OfficeConverter) ToPDF(ctx context.Context, docPath string) (string, error) {
	if _, err := o.exec.LookPath(o.bin); err != nil {
		return "", domain.ConversionError(fmt.Sprintf("%s not found on PATH; install LibreOffice", o.bin), err)
	}

	outDir := filepath.Dir(docPath)
	out, err := o.exec.Run(ctx, o.bin, "--headless", "--convert-to", "pdf", "--outdir", outDir, docPath)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = "no output"
		}
		return "", domain.ConversionError(fmt.Sprintf("soffice failed: %s", msg), err)
	}

	pdfPath := filepath.Join(outDir, Stem(docPath)+ExtPDF)
	if _, err := os.Stat(pdfPath); err != nil {
		return "", domain.ConversionError(fmt.Sprintf("soffice did not produce %s", pdfPath), err)
	}

	return pdfPath, nil
}
