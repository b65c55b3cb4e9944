package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/vcompress/internal/api/models"
	"github.com/smazurov/vcompress/internal/batch"
	"github.com/smazurov/vcompress/internal/events"
	"github.com/smazurov/vcompress/internal/logging"
	"github.com/smazurov/vcompress/internal/metrics"
	"github.com/smazurov/vcompress/internal/recommend"
	"github.com/smazurov/vcompress/internal/settings"
	"github.com/smazurov/vcompress/internal/updater"
	"github.com/smazurov/vcompress/internal/version"
)

const authRealm = `Basic realm="vcompress"`

// Recommender derives a probe-based bundle for one file from its current one.
type Recommender interface {
	Recommend(ctx context.Context, file string, base settings.Bundle, monoPref bool) (recommend.Recommendation, error)
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	// AllowOrigin is the CORS origin, "*" when empty.
	AllowOrigin string

	Orchestrator *batch.Orchestrator
	Recommender  Recommender
	Bus          *events.Bus
	Updater      *updater.Service // nil hides the update routes

	PrometheusHandler http.Handler // nil disables /metrics
	Hardware          bool
	FFmpegAvailable   bool

	// RunContext bounds batch runs started over HTTP. Request contexts end
	// with the request, so runs cannot use them.
	RunContext context.Context
}

// Server is the huma HTTP API in front of one orchestrator.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	orch       *batch.Orchestrator
	bus        *events.Bus
	logger     *slog.Logger
}

// basicAuthMiddleware checks HTTP basic credentials on operations that
// declare a security requirement. SSE clients may pass the base64
// credentials in the auth query parameter instead of the header.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded := ""
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			encoded = authHeader[len(prefix):]
		} else {
			encoded = ctx.Query("auth")
		}

		if encoded == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials format", err)
			return
		}

		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !userOK || !passOK {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// NewServer creates the API server and registers every route.
func NewServer(opts *Options) *Server {
	if opts.RunContext == nil {
		opts.RunContext = context.Background()
	}

	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	if opts.AllowOrigin != "" {
		corsConfig.AllowOrigin = opts.AllowOrigin
	}
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("vcompress API", version.Version)
	config.Info.Description = "Batch video transcoding: manage the file list, per-file settings and runs, and follow progress over SSE"
	// No servers so the OpenAPI document uses relative paths.
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		options: opts,
		orch:    opts.Orchestrator,
		bus:     opts.Bus,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Scrapers are not expected to authenticate.
	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying ServeMux.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the huma API.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the listener and every open connection, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health and whether ffmpeg is available",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{Body: models.HealthData{
			Status:  "ok",
			Message: "API is healthy",
			FFmpeg:  s.options.FFmpegAvailable,
		}}
		if !s.options.FFmpegAvailable {
			resp.Body.Status = "degraded"
			resp.Body.Message = "ffmpeg not found on PATH"
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Run Metrics",
		Description: "Current values of the run gauges as JSON",
		Tags:        []string{"system"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*struct{ Body metrics.BatchStats }, error) {
		return &struct{ Body metrics.BatchStats }{Body: metrics.Current()}, nil
	})

	s.registerBatchRoutes()
	s.registerSettingsRoutes()
	s.registerControlRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
	s.registerUpdateRoutes()
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
