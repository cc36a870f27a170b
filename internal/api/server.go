// Package api exposes the automation runner over HTTP. The surface mirrors
// the operational endpoints of the service: health and configuration probes,
// prompt generation, test execution, workbook import, stored results, and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/webpilot/internal/config"
	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/llm"
	"github.com/haasonsaas/webpilot/internal/observability"
	"github.com/haasonsaas/webpilot/internal/prompt"
	"github.com/haasonsaas/webpilot/internal/runner"
	"github.com/haasonsaas/webpilot/internal/store"
	"github.com/haasonsaas/webpilot/pkg/models"
)

const maxBodySize = 1 << 20

// maxUploadSize bounds workbook imports.
const maxUploadSize = 32 << 20

// Options configures a Server. Config is required; everything else has a
// working default.
type Options struct {
	Config *config.Config
	// Store receives every outcome record. Defaults to the in-memory store.
	Store  store.Store
	Logger *observability.Logger
	// Registry collects the server's metrics and backs /metrics. Defaults
	// to a fresh registry.
	Registry *prometheus.Registry
	// Version is reported by the root endpoint.
	Version string
}

// Server hosts the HTTP API. Runs execute concurrently; each request builds
// its own Runner around the currently selected provider.
type Server struct {
	cfg      *config.Config
	store    store.Store
	logger   *observability.Logger
	metrics  *observability.Metrics
	registry *prometheus.Registry
	version  string

	prompts   *prompt.Registry
	assembler *prompt.Assembler

	mu       sync.RWMutex
	provider string
	invoker  llm.Invoker

	// Seams for tests; default to runner-backed implementations.
	execute func(ctx context.Context, tc models.TestCase) (*models.ExecutionResult, error)
	convert func(ctx context.Context, tc models.TestCase) (string, error)

	httpServer *http.Server
	listener   net.Listener
}

// NewServer wires the API around cfg. The LLM provider named by the
// configuration must be constructible or an error is returned.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errdefs.Configuration("config", "configuration is required")
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{
			Level:  opts.Config.Logging.Level,
			Format: opts.Config.Logging.Format,
		})
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	registry, err := prompt.NewRegistry(prompt.RegistryOptions{
		OverrideDir: opts.Config.Prompts.TemplateDir,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	invoker, err := llm.New(opts.Config)
	if err != nil {
		registry.Close()
		return nil, err
	}

	validatorCfg := prompt.DefaultValidationConfig()
	validatorCfg.StrictMode = opts.Config.Prompts.Strict

	s := &Server{
		cfg:       opts.Config,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   observability.NewMetrics(opts.Registry),
		registry:  opts.Registry,
		version:   opts.Version,
		prompts:   registry,
		assembler: prompt.NewAssembler(registry, prompt.NewValidator(validatorCfg)),
		provider:  opts.Config.LLM.Provider,
		invoker:   invoker,
	}
	s.execute = s.executeRun
	s.convert = s.convertCase
	return s, nil
}

// Handler returns the routed HTTP handler, including the metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/config", s.handleConfig)
	mux.HandleFunc("GET /api/v1/providers", s.handleProviders)
	mux.HandleFunc("POST /api/v1/providers/switch", s.handleSwitchProvider)
	mux.HandleFunc("POST /api/v1/generate-prompt", s.handleGeneratePrompt)
	mux.HandleFunc("POST /api/v1/execute", s.handleExecute)
	mux.HandleFunc("POST /api/v1/import", s.handleImport)
	mux.HandleFunc("GET /api/v1/results/{test_id}", s.handleResults)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return s.instrument(mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	if err := s.prompts.Watch(ctx); err != nil {
		s.logger.Warn(ctx, "template watch unavailable", "error", err)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "http server error", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting http server", "addr", listener.Addr().String(), "provider", s.providerName())
	return nil
}

// Addr reports the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests and stops the template watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	s.prompts.Close()
	if s.httpServer == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.listener = nil
	return err
}

func (s *Server) providerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Server) currentInvoker() llm.Invoker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invoker
}

// switchProvider rebuilds the invoker for the named provider and makes it
// current. The stored configuration itself is not mutated.
func (s *Server) switchProvider(name string) (llm.Invoker, error) {
	cfg := *s.cfg
	cfg.LLM.Provider = name
	invoker, err := llm.New(&cfg)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.provider = name
	s.invoker = invoker
	s.mu.Unlock()
	return invoker, nil
}

func (s *Server) runnerFor(runID string) *runner.Runner {
	browserCfg := s.cfg.Browser
	if runID != "" {
		// Run-scoped subdirectory so concurrent runs cannot clobber each
		// other's screenshots.
		browserCfg.ScreenshotDir = filepath.Join(browserCfg.ScreenshotDir, runID)
	}
	return runner.New(runner.Options{
		Invoker:   s.currentInvoker(),
		Assembler: s.assembler,
		Browser:   browserCfg,
		Logger:    s.logger,
		Metrics:   s.metrics,
	})
}

func (s *Server) executeRun(ctx context.Context, tc models.TestCase) (*models.ExecutionResult, error) {
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	return s.runnerFor(runID).Execute(ctx, tc)
}

func (s *Server) convertCase(ctx context.Context, tc models.TestCase) (string, error) {
	return s.runnerFor("").Convert(ctx, tc)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request latency per route pattern. Patterns keep the
// metric's path label bounded; unmatched requests share one bucket.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := r.Pattern
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			pattern = pattern[i+1:]
		}
		if pattern == "" {
			pattern = "unmatched"
		}
		elapsed := time.Since(started)
		s.metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).
			Observe(elapsed.Seconds())
		s.logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if err := enc.Encode(payload); err != nil {
		// The client may have disconnected mid-response.
		return
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if kind := errdefs.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, errdefs.HTTPStatus(err), body)
}
