package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	inbound "github.com/param-gate/paramgate/internal/adapter/inbound/http"
	auditstore "github.com/param-gate/paramgate/internal/adapter/outbound/audit"
	"github.com/param-gate/paramgate/internal/adapter/outbound/cel"
	"github.com/param-gate/paramgate/internal/adapter/outbound/sqlite"
	"github.com/param-gate/paramgate/internal/config"
	"github.com/param-gate/paramgate/internal/demo"
	"github.com/param-gate/paramgate/internal/domain/audit"
	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/internal/service"
	"github.com/param-gate/paramgate/pkg/changeset"
	"github.com/param-gate/paramgate/pkg/validate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation gateway server",
	Long: `Start the paramgate server.

The server mounts the reference actions with their parameter schemas,
wraps every annotated action with validation, and exposes the
operational endpoints: /health, /metrics, /docs/openapi.yaml, and the
key-protected rejection history under /admin/rejections.

Examples:
  # Start with config file settings
  paramgate serve

  # Start with a specific config file
  paramgate --config /path/to/config.yaml serve

  # Start in development mode (debug logging, stdout trace export)
  paramgate serve --dev`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, stdout trace export)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so CLI flags can override first)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override dev mode from CLI flag
	if devMode {
		cfg.DevMode = true
		cfg.Tracing.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Create signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	// Setup logger to stderr (stdout reserved for audit stream in stdout mode)
	logLevel := slog.LevelInfo
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("paramgate stopped")
	return nil
}

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Audit sink per config
	store, err := createAuditStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer store.Close()

	auditService := service.NewAuditService(store, logger)
	auditService.Start()
	defer auditService.Stop()

	// Metrics registry shared between middleware and validation hooks
	promReg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := inbound.NewMetrics(promReg)

	// Rule engine and schema binding
	engine, err := cel.NewEngine()
	if err != nil {
		return fmt.Errorf("creating rule engine: %w", err)
	}
	schemaOpts := []service.SchemaOption{}
	if cfg.Validation.ResultCacheSize > 0 {
		schemaOpts = append(schemaOpts,
			service.WithResultCacheSize(cfg.Validation.ResultCacheSize),
			service.WithCacheObserver(func(hit bool) {
				result := "miss"
				if hit {
					result = "hit"
				}
				metrics.CacheHitsTotal.WithLabelValues(result).Inc()
			}),
		)
	}
	schemas := service.NewSchemaService(engine, logger, schemaOpts...)

	// Registry with the configured wrap defaults
	errorStatus, err := cfg.Validation.ResolveErrorStatus()
	if err != nil {
		return fmt.Errorf("resolving error status: %w", err)
	}
	view, ok := validate.LookupView(cfg.Validation.ErrorView)
	if !ok {
		return fmt.Errorf("unknown error view %q", cfg.Validation.ErrorView)
	}

	onInvalid := func(r *http.Request, cs *changeset.Changeset, status int) {
		action := actionLabel(r)
		metrics.ValidationsTotal.WithLabelValues(action, "rejected").Inc()
		auditService.Record(r, action, cs, status)
	}
	onValid := func(r *http.Request, cs *changeset.Changeset, _ int) {
		metrics.ValidationsTotal.WithLabelValues(actionLabel(r), "accepted").Inc()
	}

	reg := registry.New(logger,
		validate.WithErrorView(view),
		validate.WithErrorStatus(errorStatus),
		validate.WithMaxBodyBytes(cfg.Validation.MaxBodyBytes),
		validate.WithLogger(logger),
		validate.WithOnInvalid(onInvalid),
		validate.WithOnValid(onValid),
	)
	if err := demo.RegisterActions(reg, schemas); err != nil {
		return fmt.Errorf("registering actions: %w", err)
	}

	// Transport options
	opts := []inbound.Option{
		inbound.WithAddr(cfg.Server.Addr),
		inbound.WithLogger(logger),
		inbound.WithMetrics(metrics, promReg),
		inbound.WithHealthChecker(inbound.NewHealthChecker(auditService, Version)),
		inbound.WithDocs(service.NewDocsService(reg, "paramgate", Version)),
		inbound.WithRejectStatus(errorStatus),
	}

	if cfg.Admin.KeyHash != "" {
		opts = append(opts, inbound.WithAdminHandler(
			inbound.NewAdminHandler(cfg.Admin.KeyHash, auditService, logger),
		))
	} else {
		logger.Warn("admin.key_hash not set, rejection history endpoint disabled")
	}

	if cfg.Tracing.Enabled {
		tp, err := inbound.InitTracerProvider("paramgate", Version)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			if err := inbound.ShutdownTracer(context.Background(), tp); err != nil {
				logger.Error("tracer shutdown failed", "error", err)
			}
		}()
		opts = append(opts, inbound.WithTracer(tp.Tracer("paramgate")))
	}

	logger.Info("paramgate starting",
		"addr", cfg.Server.Addr,
		"error_status", errorStatus,
		"audit_output", cfg.Audit.Output,
		"dev_mode", cfg.DevMode,
	)

	return inbound.NewTransport(reg, opts...).Start(ctx)
}

// createAuditStore builds the rejection sink selected by audit.output.
func createAuditStore(cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	output := cfg.Audit.Output
	switch {
	case output == "stdout":
		return auditstore.NewStdoutStore(os.Stdout), nil

	case strings.HasPrefix(output, "file://"):
		dir := strings.TrimPrefix(output, "file://")
		return auditstore.NewFileStore(auditstore.FileConfig{
			Dir:           dir,
			RetentionDays: cfg.Audit.RetentionDays,
		}, logger)

	case strings.HasPrefix(output, "sqlite://"):
		path := strings.TrimPrefix(output, "sqlite://")
		return sqlite.NewAuditStore(path, logger)

	default:
		return nil, fmt.Errorf("unsupported audit output %q", output)
	}
}

// actionLabel derives a bounded metric label from the matched route.
// Falls back to the method when no pattern matched.
func actionLabel(r *http.Request) string {
	if p := r.Pattern; p != "" {
		return p
	}
	return r.Method
}
