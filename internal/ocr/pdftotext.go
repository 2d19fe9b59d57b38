package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the PDF bytes and returns stdout.
func (p *PdfToText) ExtractText(ctx context.Context, data []byte) (string, error) {
	bin, err := lookBinary(p.binPath)
	if err != nil {
		return "", err
	}

	return withTempFile(data, ".pdf", func(pdfPath string) (string, error) {
		cmd := exec.CommandContext(ctx, bin, "-layout", pdfPath, "-")

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", eris.Wrapf(err, "ocr: pdftotext failed: %s", stderr.String())
		}
		return stdout.String(), nil
	})
}
