package ocr

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"

	"github.com/sells-group/multiview/internal/config"
)

// Media is the kind of file handed to an Extractor.
type Media string

const (
	MediaPDF   Media = "pdf"
	MediaImage Media = "image"
)

var (
	// ErrUnavailable means the engine for this media cannot run here, for
	// example because its binary is not installed.
	ErrUnavailable = eris.New("ocr: extraction engine unavailable")
	// ErrUnsupportedMedia means the engine does not handle this media.
	ErrUnsupportedMedia = eris.New("ocr: unsupported media")
)

// Extractor extracts text content from PDF and image files.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, media Media, ext string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.ExtractConfig) (Extractor, error) {
	switch cfg.OCRProvider {
	case "local", "":
		return &Local{
			PDF:   NewPdfToText(cfg.PdfToTextPath),
			Image: NewTesseract(cfg.TesseractPath, cfg.TesseractLangs),
		}, nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.OCRProvider)
	}
}

// Local dispatches to command-line engines by media.
type Local struct {
	PDF   *PdfToText
	Image *Tesseract
}

// ExtractText implements Extractor.
func (l *Local) ExtractText(ctx context.Context, data []byte, media Media, ext string) (string, error) {
	switch media {
	case MediaPDF:
		return l.PDF.ExtractText(ctx, data)
	case MediaImage:
		return l.Image.ExtractText(ctx, data, ext)
	default:
		return "", eris.Wrapf(ErrUnsupportedMedia, "ocr: %s", media)
	}
}

// withTempFile writes data to a temporary file for engines that only read
// from disk.
func withTempFile(data []byte, ext string, fn func(path string) (string, error)) (string, error) {
	f, err := os.CreateTemp("", "multiview-ocr-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "ocr: create temp file")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return "", eris.Wrap(err, "ocr: write temp file")
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "ocr: close temp file")
	}
	return fn(f.Name())
}

// lookBinary resolves bin on PATH, reporting a missing binary as
// ErrUnavailable.
func lookBinary(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(ErrUnavailable, "ocr: %s not installed", bin)
		}
		return "", eris.Wrapf(err, "ocr: locate %s", bin)
	}
	return path, nil
}
