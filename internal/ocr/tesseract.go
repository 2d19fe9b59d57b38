package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// Tesseract extracts text from images using the tesseract CLI tool.
type Tesseract struct {
	binPath string
	langs   string
}

// NewTesseract creates a Tesseract extractor. Empty values default to
// "tesseract" and "eng".
func NewTesseract(binPath, langs string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if langs == "" {
		langs = "eng"
	}
	return &Tesseract{binPath: binPath, langs: langs}
}

// ExtractText runs tesseract on the image bytes and returns stdout.
func (t *Tesseract) ExtractText(ctx context.Context, data []byte, ext string) (string, error) {
	bin, err := lookBinary(t.binPath)
	if err != nil {
		return "", err
	}

	return withTempFile(data, ext, func(imgPath string) (string, error) {
		cmd := exec.CommandContext(ctx, bin, imgPath, "stdout", "-l", t.langs)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", eris.Wrapf(err, "ocr: tesseract failed: %s", stderr.String())
		}
		return stdout.String(), nil
	})
}
