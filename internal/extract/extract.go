// Package extract turns uploaded files into plain text for pipeline
// documents.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/ocr"
)

const (
	mb              = 1 << 20
	truncatedSuffix = "... (truncated)"
)

// Config bounds what Process accepts and returns.
type Config struct {
	MaxBase64Bytes int
	MaxFileBytes   int
	MaxChars       int
	CacheSize      int
}

// ConfigFrom converts the extract section of the application config.
func ConfigFrom(cfg config.ExtractConfig) Config {
	return Config{
		MaxBase64Bytes: cfg.MaxBase64MB * mb,
		MaxFileBytes:   cfg.MaxFileMB * mb,
		MaxChars:       cfg.MaxChars,
		CacheSize:      cfg.CacheSize,
	}
}

type format int

const (
	formatText format = iota + 1
	formatMarkdown
	formatHTML
	formatCSV
	formatJSON
	formatXML
	formatXLSX
	formatPDF
	formatImage
)

var formats = map[string]format{
	".txt":      formatText,
	".text":     formatText,
	".log":      formatText,
	".md":       formatMarkdown,
	".markdown": formatMarkdown,
	".html":     formatHTML,
	".htm":      formatHTML,
	".csv":      formatCSV,
	".json":     formatJSON,
	".xml":      formatXML,
	".xlsx":     formatXLSX,
	".pdf":      formatPDF,
	".png":      formatImage,
	".jpg":      formatImage,
	".jpeg":     formatImage,
	".gif":      formatImage,
	".bmp":      formatImage,
	".tif":      formatImage,
	".tiff":     formatImage,
}

// Supported reports whether filename has an extension Process handles.
func Supported(filename string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Service extracts text from files, caching results by content.
type Service struct {
	cfg   Config
	ocr   ocr.Extractor
	cache *lru.Cache[string, string]
}

// New creates a Service. A nil OCR extractor reports PDFs and images as
// unavailable; a zero cache size disables caching.
func New(cfg Config, ocrExt ocr.Extractor) (*Service, error) {
	s := &Service{cfg: cfg, ocr: ocrExt}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, eris.Wrap(err, "extract: create cache")
		}
		s.cache = cache
	}
	return s, nil
}

// Process decodes base64 file data and returns its text, truncated to the
// configured number of characters.
func (s *Service) Process(ctx context.Context, filename, base64Data string) (string, error) {
	if s.cfg.MaxBase64Bytes > 0 && len(base64Data) > s.cfg.MaxBase64Bytes {
		return "", newError(KindTooLarge, filename, eris.Errorf("extract: encoded payload is %d bytes, limit %d", len(base64Data), s.cfg.MaxBase64Bytes))
	}

	// Accept data URLs as sent by browsers.
	if i := strings.Index(base64Data, ";base64,"); i >= 0 && strings.HasPrefix(base64Data, "data:") {
		base64Data = base64Data[i+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(base64Data))
	if err != nil {
		return "", newError(KindCorrupt, filename, eris.Wrap(err, "extract: decode base64"))
	}
	return s.ProcessBytes(ctx, filename, data)
}

// ProcessBytes returns the text of raw file bytes.
func (s *Service) ProcessBytes(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, ok := formats[ext]
	if !ok {
		return "", newError(KindUnsupported, filename, eris.Errorf("extract: no extractor for %q files", ext))
	}
	if s.cfg.MaxFileBytes > 0 && len(data) > s.cfg.MaxFileBytes {
		return "", newError(KindTooLarge, filename, eris.Errorf("extract: file is %d bytes, limit %d", len(data), s.cfg.MaxFileBytes))
	}

	key := cacheKey(data, ext)
	if s.cache != nil {
		if text, ok := s.cache.Get(key); ok {
			zap.L().Debug("extract: cache hit", zap.String("filename", filename))
			return text, nil
		}
	}

	text, err := s.extract(ctx, filename, ext, f, data)
	if err != nil {
		zap.L().Warn("extract: failed",
			zap.String("filename", filename),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return "", err
	}

	text = s.truncate(strings.TrimSpace(text))
	if s.cache != nil {
		s.cache.Add(key, text)
	}
	zap.L().Info("extract: complete",
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
		zap.Int("chars", len([]rune(text))),
	)
	return text, nil
}

func (s *Service) extract(ctx context.Context, filename, ext string, f format, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	var (
		text string
		err  error
	)
	switch f {
	case formatText:
		text, err = decodeText(data)
	case formatMarkdown:
		text, err = markdownText(data)
	case formatHTML:
		text, err = htmlText(data)
	case formatCSV:
		text, err = csvText(data)
	case formatJSON:
		text, err = jsonText(data)
	case formatXML:
		text, err = xmlText(data)
	case formatXLSX:
		text, err = xlsxText(data)
	case formatPDF:
		return s.runOCR(ctx, filename, ext, ocr.MediaPDF, data)
	case formatImage:
		return s.runOCR(ctx, filename, ext, ocr.MediaImage, data)
	}
	if err != nil {
		return "", newError(KindCorrupt, filename, err)
	}
	return text, nil
}

func (s *Service) runOCR(ctx context.Context, filename, ext string, media ocr.Media, data []byte) (string, error) {
	if s.ocr == nil {
		return "", newError(KindUnavailable, filename, eris.Wrap(ocr.ErrUnavailable, "extract: no OCR engine configured"))
	}
	text, err := s.ocr.ExtractText(ctx, data, media, ext)
	if err != nil {
		if errors.Is(err, ocr.ErrUnavailable) || errors.Is(err, ocr.ErrUnsupportedMedia) {
			return "", newError(KindUnavailable, filename, err)
		}
		return "", newError(KindCorrupt, filename, err)
	}
	return text, nil
}

func (s *Service) truncate(text string) string {
	if s.cfg.MaxChars <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == s.cfg.MaxChars {
			return text[:i] + truncatedSuffix
		}
		count++
	}
	return text
}

func cacheKey(data []byte, ext string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ext
}
