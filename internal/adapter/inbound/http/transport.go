package http

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/internal/service"
)

// Transport is the inbound adapter that serves the registered actions over
// HTTP alongside the operational endpoints.
type Transport struct {
	reg           *registry.Registry
	server        *http.Server
	addr          string
	certFile      string
	keyFile       string
	logger        *slog.Logger
	metrics       *Metrics
	promRegistry  *prometheus.Registry
	healthChecker *HealthChecker
	docs          *service.DocsService
	admin         *AdminHandler
	tracer        trace.Tracer
	rejectStatus  int
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithTLS enables TLS with the provided certificate and key files.
// If not set, the server runs without TLS (plain HTTP).
func WithTLS(certFile, keyFile string) Option {
	return func(t *Transport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithMetrics shares a metrics set and its registry with the transport.
// When unset, Start creates its own registry with the standard collectors.
func WithMetrics(m *Metrics, reg *prometheus.Registry) Option {
	return func(t *Transport) {
		t.metrics = m
		t.promRegistry = reg
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) {
		t.healthChecker = hc
	}
}

// WithDocs mounts the generated OpenAPI document at /docs/openapi.yaml.
func WithDocs(docs *service.DocsService) Option {
	return func(t *Transport) {
		t.docs = docs
	}
}

// WithAdminHandler mounts the rejection history under /admin/.
func WithAdminHandler(h *AdminHandler) Option {
	return func(t *Transport) {
		t.admin = h
	}
}

// WithTracer wraps every action with a server span.
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Transport) {
		t.tracer = tracer
	}
}

// WithRejectStatus tells the metrics middleware which status code the
// dispatch wrapper renders on validation failure, so rejections get
// their own outcome label. Default is the wrapper's default status.
func WithRejectStatus(status int) Option {
	return func(t *Transport) {
		t.rejectStatus = status
	}
}

// NewTransport creates a transport serving the given action registry.
func NewTransport(reg *registry.Registry, opts ...Option) *Transport {
	t := &Transport{
		reg:    reg,
		addr:   "127.0.0.1:8080",
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or an error occurs.
func (t *Transport) Start(ctx context.Context) error {
	if t.promRegistry == nil {
		t.promRegistry = prometheus.NewRegistry()
		t.promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		t.metrics = NewMetrics(t.promRegistry)
	}

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: t.buildHandler(),
	}

	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// buildHandler mounts the registered actions and operational endpoints, then
// wraps the result with the middleware chain.
//
// Middleware order (outermost first):
// 1. MetricsMiddleware - record duration and status (outermost to capture full duration)
// 2. RequestIDMiddleware - extract/generate request ID and enrich logger
// 3. TracingMiddleware - span around dispatch (sees the request ID)
// 4. Mux - action dispatch and validation
func (t *Transport) buildHandler() http.Handler {
	mux := http.NewServeMux()
	t.reg.Build(mux)

	if t.admin != nil {
		t.admin.Register(mux)
	}
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		}))
	}
	mux.Handle("/metrics", promhttp.HandlerFor(t.promRegistry, promhttp.HandlerOpts{
		Registry: t.promRegistry,
	}))
	if t.docs != nil {
		mux.Handle("GET /docs/openapi.yaml", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			doc, err := t.docs.OpenAPI()
			if err != nil {
				t.logger.Error("rendering OpenAPI document failed", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(doc)
		}))
	}
	// Favicon handler to prevent browser 500 errors
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var handler http.Handler = mux
	if t.tracer != nil {
		handler = TracingMiddleware(t.tracer)(handler)
	}
	handler = RequestIDMiddleware(t.logger)(handler)
	handler = MetricsMiddleware(t.metrics, t.rejectStatus)(handler)
	return handler
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
