package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/multiview/internal/resilience"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
)

var imageMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// MistralOCR extracts text from PDFs and images using the Mistral OCR API.
// Server errors and network failures are retried.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    resilience.RetryPolicy
}

// NewMistralOCR returns a Mistral-backed extractor; an empty model selects
// mistral-ocr-latest.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
		retry:    resilience.PolicyFrom(3, 1000, 8000, 2, 0.1),
	}
}

// mistralStatusError is a non-200 reply from the OCR endpoint.
type mistralStatusError struct {
	StatusCode int
	Body       string
}

func (e *mistralStatusError) Error() string {
	return fmt.Sprintf("ocr: mistral API returned %d: %s", e.StatusCode, e.Body)
}

func (e *mistralStatusError) HTTPStatus() int { return e.StatusCode }

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText sends the file to Mistral OCR as a data URL and returns the
// page markdown joined by blank lines. A rejected key is ErrUnavailable.
func (m *MistralOCR) ExtractText(ctx context.Context, data []byte, media Media, ext string) (string, error) {
	doc, err := mistralDocument(data, media, ext)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(ocrRequest{Model: m.model, Document: doc})
	if err != nil {
		return "", eris.Wrap(err, "ocr: encode mistral request")
	}

	parsed, _, err := resilience.Retry(ctx, m.retry, func(ctx context.Context, _ int) (*ocrResponse, error) {
		return m.post(ctx, payload)
	})
	if err != nil {
		if code, ok := resilience.StatusOf(err); ok && (code == http.StatusUnauthorized || code == http.StatusForbidden) {
			return "", eris.Wrapf(ErrUnavailable, "ocr: mistral rejected the API key: %v", err)
		}
		return "", err
	}

	pages := make([]string, 0, len(parsed.Pages))
	for _, page := range parsed.Pages {
		pages = append(pages, page.Markdown)
	}
	return strings.Join(pages, "\n\n"), nil
}

func mistralDocument(data []byte, media Media, ext string) (ocrDocument, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	switch media {
	case MediaPDF:
		return ocrDocument{Type: "document_url", DocumentURL: "data:application/pdf;base64," + encoded}, nil
	case MediaImage:
		mime, ok := imageMIME[strings.ToLower(ext)]
		if !ok {
			return ocrDocument{}, eris.Wrapf(ErrUnsupportedMedia, "ocr: mistral image type %q", ext)
		}
		return ocrDocument{Type: "image_url", ImageURL: "data:" + mime + ";base64," + encoded}, nil
	default:
		return ocrDocument{}, eris.Wrapf(ErrUnsupportedMedia, "ocr: %s", media)
	}
}

func (m *MistralOCR) post(ctx context.Context, payload []byte) (*ocrResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: build mistral request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

	httpResp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: mistral request")
	}
	defer httpResp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read mistral body")
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &mistralStatusError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	var out ocrResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "ocr: decode mistral body")
	}
	return &out, nil
}
