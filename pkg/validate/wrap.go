package validate

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/param-gate/paramgate/pkg/catalog"
	"github.com/param-gate/paramgate/pkg/changeset"
)

// DefaultErrorStatus is the status code rendered when validation fails
// and no catalogue declares an error response.
const DefaultErrorStatus = http.StatusUnprocessableEntity

// ResultFunc observes a validation rejection. It runs after the error
// view has been selected but before the response is written.
type ResultFunc func(r *http.Request, cs *changeset.Changeset, status int)

// Option configures the dispatch wrapper.
type Option func(*wrapConfig)

type wrapConfig struct {
	view      ErrorView
	status    int
	maxBody   int64
	logger    *slog.Logger
	catalog   *catalog.Catalog
	onInvalid ResultFunc
	onValid   ResultFunc
}

// WithErrorView sets the view used to render validation failures.
// Default is JSONErrorView.
func WithErrorView(view ErrorView) Option {
	return func(c *wrapConfig) {
		c.view = view
	}
}

// WithErrorStatus sets the status code for validation failures.
// Default is 422 Unprocessable Entity.
func WithErrorStatus(status int) Option {
	return func(c *wrapConfig) {
		c.status = status
	}
}

// WithMaxBodyBytes bounds the request body buffered for parameter
// extraction. Default is DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(c *wrapConfig) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithLogger sets the logger for wrapper diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *wrapConfig) {
		c.logger = logger
	}
}

// WithCatalog attaches the action's response catalogue. When the
// catalogue declares an error response, its status code overrides the
// configured error status.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *wrapConfig) {
		c.catalog = cat
	}
}

// WithOnInvalid registers a hook invoked for every rejected request,
// typically to record metrics or audit entries.
func WithOnInvalid(fn ResultFunc) Option {
	return func(c *wrapConfig) {
		c.onInvalid = fn
	}
}

// WithOnValid registers a hook invoked for every accepted request,
// before the wrapped handler runs.
func WithOnValid(fn ResultFunc) Option {
	return func(c *wrapConfig) {
		c.onValid = fn
	}
}

// Wrapped returns a handler that validates the request's parameters with
// v before invoking next. On success the validated changeset is stored in
// the request context and next runs unchanged. On failure next never runs
// and the error view renders the changeset's errors with the effective
// error status.
//
// Unparseable parameters (oversized or malformed bodies) take the same
// error path with a "_params" error entry; there is no separate fault
// channel.
func Wrapped(v Validator, next http.Handler, opts ...Option) http.Handler {
	cfg := &wrapConfig{
		view:    JSONErrorView{},
		status:  DefaultErrorStatus,
		maxBody: DefaultMaxBodyBytes,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	status := cfg.status
	if cfg.catalog != nil {
		if resp, ok := cfg.catalog.ErrorResponse(); ok {
			status = resp.Status
		}
	}

	var responseValidator Validator
	if pair, ok := v.(Pair); ok {
		responseValidator = pair.Response
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := parseParams(r, cfg.maxBody)
		if err != nil {
			cfg.logger.Warn("parameter parsing failed",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
			cs := changeset.New(nil).AddError("_params", "malformed request parameters")
			reject(w, r, cfg, status, cs)
			return
		}

		cs := v.Validate(r, params)
		if cs == nil {
			// Malformed validator output is indistinguishable from a
			// validation failure.
			cfg.logger.Warn("validator returned nil changeset",
				"method", r.Method,
				"path", r.URL.Path,
			)
			cs = changeset.New(params)
			cs.Valid = false
		}
		if !cs.Valid {
			reject(w, r, cfg, status, cs)
			return
		}

		if cfg.onValid != nil {
			cfg.onValid(r, cs, 0)
		}

		r = r.WithContext(NewContext(r.Context(), cs))

		if responseValidator == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Capture the response so the response-side validator can judge
		// it. Failures are logged, never surfaced to the client.
		rec := &captureWriter{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		checkResponse(responseValidator, r, rec, cfg.logger)
	})
}

// reject renders the error view and fires the rejection hook.
func reject(w http.ResponseWriter, r *http.Request, cfg *wrapConfig, status int, cs *changeset.Changeset) {
	if cfg.onInvalid != nil {
		cfg.onInvalid(r, cs, status)
	}
	cfg.view.RenderError(w, r, status, cs)
}

// checkResponse runs the response-side validator against the captured
// JSON response body.
func checkResponse(v Validator, r *http.Request, rec *captureWriter, logger *slog.Logger) {
	var body map[string]any
	if err := json.Unmarshal(rec.buf.Bytes(), &body); err != nil {
		logger.Warn("response validation skipped: body is not a JSON object",
			"method", r.Method,
			"path", r.URL.Path,
		)
		return
	}
	cs := v.Validate(r, body)
	if cs == nil || !cs.Valid {
		var errs map[string][]string
		if cs != nil {
			errs = cs.Errors
		}
		logger.Warn("response validation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"errors", errs,
		)
	}
}

// captureWriter tees the response body into a buffer while passing it
// through to the client.
type captureWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (c *captureWriter) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.buf.Write(p)
	return c.ResponseWriter.Write(p)
}

// Flush delegates to the underlying ResponseWriter if it supports
// http.Flusher, so streaming handlers keep working under capture.
func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
