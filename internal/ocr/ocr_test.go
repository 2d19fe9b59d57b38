package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/resilience"
)

func TestNewExtractor_Local(t *testing.T) {
	ext, err := NewExtractor(config.ExtractConfig{OCRProvider: "local", PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	require.IsType(t, &Local{}, ext)
	assert.Equal(t, "/usr/bin/pdftotext", ext.(*Local).PDF.binPath)
}

func TestNewExtractor_LocalDefault(t *testing.T) {
	ext, err := NewExtractor(config.ExtractConfig{})
	require.NoError(t, err)
	local := ext.(*Local)
	assert.Equal(t, "pdftotext", local.PDF.binPath)
	assert.Equal(t, "tesseract", local.Image.binPath)
	assert.Equal(t, "eng", local.Image.langs)
}

func TestNewExtractor_MistralMissingKey(t *testing.T) {
	_, err := NewExtractor(config.ExtractConfig{OCRProvider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral_key")
}

func TestNewExtractor_MistralWithKey(t *testing.T) {
	ext, err := NewExtractor(config.ExtractConfig{OCRProvider: "mistral", MistralKey: "test-key"})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext)
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.ExtractConfig{OCRProvider: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "unknown"`)
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func testMistral(endpoint string) *MistralOCR {
	return &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: endpoint,
		client:   &http.Client{},
		retry:    resilience.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestMistralOCR_ExtractPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ocrRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "document_url", req.Document.Type)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")
		assert.Empty(t, req.Document.ImageURL)

		resp := ocrResponse{
			Pages: []ocrPage{
				{Index: 0, Markdown: "Page one content"},
				{Index: 1, Markdown: "Page two content"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	text, err := testMistral(srv.URL).ExtractText(context.Background(), []byte("%PDF-1.4 test content"), MediaPDF, ".pdf")
	require.NoError(t, err)
	assert.Equal(t, "Page one content\n\nPage two content", text)
}

func TestMistralOCR_ExtractImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ocrRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image_url", req.Document.Type)
		assert.Contains(t, req.Document.ImageURL, "data:image/jpeg;base64,")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"Receipt total 12.50"}]}`))
	}))
	defer srv.Close()

	text, err := testMistral(srv.URL).ExtractText(context.Background(), []byte{0xff, 0xd8}, MediaImage, ".JPG")
	require.NoError(t, err)
	assert.Equal(t, "Receipt total 12.50", text)
}

func TestMistralOCR_UnknownImageType(t *testing.T) {
	_, err := testMistral("http://unused").ExtractText(context.Background(), []byte{1}, MediaImage, ".webp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := testMistral(srv.URL).ExtractText(context.Background(), []byte("%PDF-1.4 test"), MediaPDF, ".pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMistralOCR_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"third time"}]}`))
	}))
	defer srv.Close()

	text, err := testMistral(srv.URL).ExtractText(context.Background(), []byte("%PDF"), MediaPDF, ".pdf")
	require.NoError(t, err)
	assert.Equal(t, "third time", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMistralOCR_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad document"}`))
	}))
	defer srv.Close()

	_, err := testMistral(srv.URL).ExtractText(context.Background(), []byte("%PDF"), MediaPDF, ".pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMistralOCR_EmptyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[]}`))
	}))
	defer srv.Close()

	text, err := testMistral(srv.URL).ExtractText(context.Background(), []byte("%PDF"), MediaPDF, ".pdf")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestPdfToText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractText(context.Background(), []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func fakeBinary(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestPdfToText_Success(t *testing.T) {
	// Echo the input path so the temp file handoff is visible.
	bin := fakeBinary(t, "pdftotext", "#!/bin/sh\necho \"Extracted from $2\"\n")

	text, err := NewPdfToText(bin).ExtractText(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Contains(t, text, "Extracted from ")
	assert.Contains(t, text, ".pdf")
}

func TestPdfToText_CommandFails(t *testing.T) {
	bin := fakeBinary(t, "pdftotext", "#!/bin/sh\necho 'Syntax Error' >&2\nexit 1\n")

	_, err := NewPdfToText(bin).ExtractText(context.Background(), []byte("garbage"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Contains(t, err.Error(), "Syntax Error")
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestTesseract_Defaults(t *testing.T) {
	tess := NewTesseract("", "")
	assert.Equal(t, "tesseract", tess.binPath)
	assert.Equal(t, "eng", tess.langs)
}

func TestTesseract_Success(t *testing.T) {
	bin := fakeBinary(t, "tesseract", "#!/bin/sh\necho \"$2 $3 $4\"\n")

	text, err := NewTesseract(bin, "eng+pol").ExtractText(context.Background(), []byte{0x89, 'P', 'N', 'G'}, ".png")
	require.NoError(t, err)
	assert.Equal(t, "stdout -l eng+pol\n", text)
}

func TestTesseract_BinaryNotFound(t *testing.T) {
	_, err := NewTesseract("/nonexistent/tesseract", "").ExtractText(context.Background(), []byte{1}, ".png")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLocal_UnsupportedMedia(t *testing.T) {
	l := &Local{PDF: NewPdfToText(""), Image: NewTesseract("", "")}
	_, err := l.ExtractText(context.Background(), nil, Media("audio"), ".mp3")
	assert.True(t, errors.Is(err, ErrUnsupportedMedia))
}
