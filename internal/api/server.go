// Package api exposes the pipeline and file extraction over HTTP.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/modelclient"
	"github.com/sells-group/multiview/internal/pipeline"
	"github.com/sells-group/multiview/internal/resilience"
)

const (
	// APIKeyHeader carries the caller's model credential.
	APIKeyHeader = "X-API-Key"
	// AdminTokenHeader authorizes settings changes when Deps.AdminToken is set.
	AdminTokenHeader = "X-Admin-Token"

	// DefaultCheckModel is a free OpenRouter model used to test keys.
	DefaultCheckModel = "qwen/qwen3-coder:free"
)

// Runner runs one pipeline query.
type Runner interface {
	Run(ctx context.Context, credential, query string, docs []model.Document) (*model.PipelineResponse, error)
	Config() pipeline.Config
}

// Reconfigurer is a Runner whose models can be replaced at runtime.
type Reconfigurer interface {
	Reconfigure(cfg pipeline.Config) error
}

// FileExtractor turns base64 file data into text.
type FileExtractor interface {
	Process(ctx context.Context, filename, base64Data string) (string, error)
}

// BreakerReporter is implemented by clients that track circuit breakers.
type BreakerReporter interface {
	Breakers() []resilience.BreakerStatus
}

// Deps wires the server to its collaborators.
type Deps struct {
	Pipeline  Runner
	Client    modelclient.Client
	Extractor FileExtractor

	// DefaultCredential is used when a request has no X-API-Key header.
	// It can be replaced through the settings endpoint.
	DefaultCredential string
	AllowedOrigins    []string
	// AdminToken, when set, is required to change settings.
	AdminToken string

	// CheckModel is the OpenRouter model used to test keys. Default:
	// DefaultCheckModel.
	CheckModel string
	// MinKeyLength rejects shorter keys before any call. Zero disables.
	MinKeyLength int
	// CheckTimeout bounds a credential check. Default: 15s.
	CheckTimeout time.Duration
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	deps       Deps
	router     *chi.Mux
	defaultKey atomic.Pointer[string]
}

// NewServer builds the router.
func NewServer(deps Deps) *Server {
	if deps.CheckTimeout <= 0 {
		deps.CheckTimeout = 15 * time.Second
	}
	if deps.CheckModel == "" {
		deps.CheckModel = DefaultCheckModel
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", APIKeyHeader, AdminTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{deps: deps, router: r}
	s.setDefaultCredential(deps.DefaultCredential)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/process_query", s.handleProcessQuery)
		r.Post("/process_file", s.handleProcessFile)
		r.Get("/models", s.handleModels)
		r.Post("/credentials/check", s.handleCheckCredential)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// credential returns the header credential, falling back to the default.
func (s *Server) credential(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	return s.defaultCredential()
}

func (s *Server) defaultCredential() string { return *s.defaultKey.Load() }

func (s *Server) setDefaultCredential(key string) { s.defaultKey.Store(&key) }
