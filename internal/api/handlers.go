package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/extract"
	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/modelclient"
	"github.com/sells-group/multiview/internal/pipeline"
	"github.com/sells-group/multiview/internal/resilience"
)

type healthResponse struct {
	Status   string                     `json:"status"`
	Breakers []resilience.BreakerStatus `json:"breakers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if br, ok := s.deps.Client.(BreakerReporter); ok {
		resp.Breakers = br.Breakers()
	}
	respondJSON(w, http.StatusOK, resp)
}

type processQueryRequest struct {
	Query     string           `json:"query"`
	Documents []model.Document `json:"documents"`
}

type upstreamErrorResponse struct {
	Error    string                  `json:"error"`
	Response *model.PipelineResponse `json:"response,omitempty"`
}

func (s *Server) handleProcessQuery(w http.ResponseWriter, r *http.Request) {
	var req processQueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	credential := s.credential(r)
	if credential == "" {
		respondError(w, http.StatusUnauthorized, "missing API key: send the "+APIKeyHeader+" header")
		return
	}

	// A disconnecting client must not cancel model calls already in flight.
	ctx := context.WithoutCancel(r.Context())

	resp, err := s.deps.Pipeline.Run(ctx, credential, req.Query, req.Documents)
	if err != nil {
		var upstream *pipeline.UpstreamError
		switch {
		case errors.As(err, &upstream):
			zap.L().Error("api: pipeline upstream outage", zap.Error(err))
			respondJSON(w, http.StatusBadGateway, upstreamErrorResponse{
				Error:    "error communicating with the AI models: " + upstream.Error(),
				Response: resp,
			})
		case errors.Is(err, pipeline.ErrMissingCredential):
			respondError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, pipeline.ErrEmptyQuery):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			zap.L().Error("api: pipeline run failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

type processFileRequest struct {
	Filename       string `json:"filename"`
	FileDataBase64 string `json:"file_data_base64"`
}

type processFileResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	var req processFileRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		respondError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if s.deps.Extractor == nil {
		respondError(w, http.StatusServiceUnavailable, "file extraction is not configured")
		return
	}

	content, err := s.deps.Extractor.Process(r.Context(), req.Filename, req.FileDataBase64)
	if err != nil {
		kind, ok := extract.KindOf(err)
		switch {
		case !ok:
			zap.L().Error("api: file extraction failed", zap.String("filename", req.Filename), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal server error")
		case kind == extract.KindUnavailable:
			respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, processFileResponse{Filename: req.Filename, Content: content})
}

type modelsResponse struct {
	Analysis          string               `json:"analysis"`
	Viewpoints        []pipeline.Viewpoint `json:"viewpoints"`
	Synthesis         string               `json:"synthesis"`
	DefaultCredential string               `json:"default_credential,omitempty"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.Pipeline.Config()
	respondJSON(w, http.StatusOK, modelsResponse{
		Analysis:          cfg.AnalysisModel,
		Viewpoints:        cfg.Viewpoints,
		Synthesis:         cfg.SynthesisModel,
		DefaultCredential: maskKey(s.defaultCredential()),
	})
}

type checkCredentialRequest struct {
	APIKey string `json:"api_key"`
}

type checkCredentialResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// checkPrompt is the smallest useful completion request.
const checkPrompt = "test"

func (s *Server) handleCheckCredential(w http.ResponseWriter, r *http.Request) {
	var req checkCredentialRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = s.credential(r)
	}
	if key == "" {
		respondError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if len(key) < s.deps.MinKeyLength {
		respondJSON(w, http.StatusBadRequest, checkCredentialResponse{Message: keyTooShort(s.deps.MinKeyLength)})
		return
	}
	if s.deps.Client == nil {
		respondError(w, http.StatusServiceUnavailable, "model client is not configured")
		return
	}
	checkModel := s.deps.CheckModel
	if modelclient.ParseRoute(checkModel).Provider != modelclient.ProviderOpenRouter {
		zap.L().Error("api: credential check model is not an OpenRouter route", zap.String("model", checkModel))
		respondError(w, http.StatusServiceUnavailable, "credential check model must be an OpenRouter model")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.deps.CheckTimeout)
	defer cancel()

	_, err := s.deps.Client.Call(ctx, key, checkModel, checkPrompt)
	if err == nil {
		respondJSON(w, http.StatusOK, checkCredentialResponse{Valid: true, Message: "API key is valid"})
		return
	}

	var mErr *modelclient.Error
	if !errors.As(err, &mErr) {
		respondJSON(w, http.StatusBadGateway, checkCredentialResponse{Message: err.Error()})
		return
	}
	switch mErr.Kind {
	case modelclient.KindUpstream:
		switch mErr.StatusCode {
		case http.StatusUnauthorized:
			respondJSON(w, http.StatusBadRequest, checkCredentialResponse{Message: "invalid API key: authentication failed"})
		case http.StatusForbidden:
			respondJSON(w, http.StatusBadRequest, checkCredentialResponse{Message: "API key does not have the required permissions"})
		default:
			zap.L().Warn("api: credential check returned unexpected status",
				zap.String("model", checkModel),
				zap.Int("status", mErr.StatusCode),
			)
			respondJSON(w, http.StatusOK, checkCredentialResponse{Valid: true, Message: "API key appears to be valid (could not complete full test)"})
		}
	case modelclient.KindData:
		respondJSON(w, http.StatusOK, checkCredentialResponse{Valid: true, Message: "API key is valid"})
	case modelclient.KindConfig:
		respondJSON(w, http.StatusBadRequest, checkCredentialResponse{Message: mErr.Error()})
	default:
		respondJSON(w, http.StatusBadGateway, checkCredentialResponse{Message: mErr.Error()})
	}
}

func keyTooShort(n int) string {
	return fmt.Sprintf("API key appears to be too short: OpenRouter keys are typically %d+ characters", n)
}
