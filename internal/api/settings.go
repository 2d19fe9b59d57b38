package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/pipeline"
)

// modelSettings names the model for each role. Viewpoint fields are only
// read for the viewpoints the pipeline runs.
type modelSettings struct {
	Analysis      string `json:"analysis"`
	Informative   string `json:"informative,omitempty"`
	Contrarian    string `json:"contrarian,omitempty"`
	Complementary string `json:"complementary,omitempty"`
	Synthesis     string `json:"synthesis"`
}

func (m *modelSettings) viewpoint(vt model.ViewpointType) *string {
	switch vt {
	case model.Informative:
		return &m.Informative
	case model.Contrarian:
		return &m.Contrarian
	case model.Complementary:
		return &m.Complementary
	default:
		return nil
	}
}

type settingsResponse struct {
	APIKey     string                `json:"api_key"`
	Models     modelSettings         `json:"models"`
	Viewpoints []model.ViewpointType `json:"viewpoints"`
	Editable   bool                  `json:"editable"`
}

type updateSettingsRequest struct {
	APIKey string         `json:"api_key"`
	Models *modelSettings `json:"models"`
}

type updateSettingsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg := s.deps.Pipeline.Config()
	resp := settingsResponse{
		APIKey: maskKey(s.defaultCredential()),
		Models: modelSettings{Analysis: cfg.AnalysisModel, Synthesis: cfg.SynthesisModel},
	}
	for _, v := range cfg.Viewpoints {
		if slot := resp.Models.viewpoint(v.Type); slot != nil {
			*slot = v.Model
		}
		resp.Viewpoints = append(resp.Viewpoints, v.Type)
	}
	_, resp.Editable = s.deps.Pipeline.(Reconfigurer)
	respondJSON(w, http.StatusOK, resp)
}

// handleUpdateSettings replaces the role models and, optionally, the
// default credential. Changes live in memory until restart.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if s.deps.AdminToken != "" &&
		subtle.ConstantTimeCompare([]byte(r.Header.Get(AdminTokenHeader)), []byte(s.deps.AdminToken)) != 1 {
		respondError(w, http.StatusUnauthorized, "missing or invalid "+AdminTokenHeader+" header")
		return
	}
	reconf, ok := s.deps.Pipeline.(Reconfigurer)
	if !ok {
		respondError(w, http.StatusNotImplemented, "settings are read-only")
		return
	}

	var req updateSettingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Models == nil {
		respondError(w, http.StatusBadRequest, "missing 'models' configuration")
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key != "" && len(key) < s.deps.MinKeyLength {
		respondError(w, http.StatusBadRequest, keyTooShort(s.deps.MinKeyLength))
		return
	}

	cfg, missing := applyModels(s.deps.Pipeline.Config(), req.Models)
	if missing != "" {
		respondError(w, http.StatusBadRequest, "missing model configuration for '"+missing+"'")
		return
	}
	if err := reconf.Reconfigure(cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if key != "" {
		s.setDefaultCredential(key)
	}

	zap.L().Info("api: settings updated", zap.Bool("api_key_changed", key != ""))
	respondJSON(w, http.StatusOK, updateSettingsResponse{Success: true, Message: "Settings saved successfully"})
}

// applyModels copies cfg with the models from m. It returns the first role
// m leaves empty.
func applyModels(cfg pipeline.Config, m *modelSettings) (pipeline.Config, string) {
	m.Analysis = strings.TrimSpace(m.Analysis)
	m.Synthesis = strings.TrimSpace(m.Synthesis)
	if m.Analysis == "" {
		return cfg, "analysis"
	}

	vps := make([]pipeline.Viewpoint, len(cfg.Viewpoints))
	for i, v := range cfg.Viewpoints {
		slot := m.viewpoint(v.Type)
		if slot == nil || strings.TrimSpace(*slot) == "" {
			return cfg, strings.ToLower(v.Type.String())
		}
		vps[i] = pipeline.Viewpoint{Type: v.Type, Model: strings.TrimSpace(*slot)}
	}
	if m.Synthesis == "" {
		return cfg, "synthesis"
	}

	cfg.AnalysisModel = m.Analysis
	cfg.Viewpoints = vps
	cfg.SynthesisModel = m.Synthesis
	return cfg, ""
}
