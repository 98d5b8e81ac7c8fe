package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hanpama/contractgraph/internal/aggregator"
	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/metrics"
	"github.com/hanpama/contractgraph/internal/reqid"
)

// Compiler rebuilds the schema in response to contract changes.
type Compiler interface {
	Compile(ctx context.Context, c *contract.Contract) (*aggregator.Build, error)
	Remove(ctx context.Context, name string) (*aggregator.Build, error)
	Reload(ctx context.Context) (*aggregator.Build, error)
}

type RouterOptions struct {
	// Metrics enables GET /metrics and request instrumentation when set.
	Metrics     *metrics.Metrics
	CORSOrigins []string
	// MaxBodyBytes limits compile request bodies. 0 means 1 MiB.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// CompileResponse is the body of every compile trigger response.
type CompileResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Entity  string `json:"entity"`
}

// NewRouter mounts the GraphQL handler and the compile trigger endpoints.
func NewRouter(h *Handler, c Compiler, opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	t := &triggers{compiler: c, opt: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{reqid.Header},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Method(http.MethodGet, "/graphql", h)
	r.Method(http.MethodPost, "/graphql", h)
	r.Post("/compile", t.compile)
	r.Post("/restart", t.restart)
	r.Delete("/{contractName}", t.remove)
	return r
}

type triggers struct {
	compiler Compiler
	opt      RouterOptions
}

func (t *triggers) compile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.opt.MaxBodyBytes))
	if err != nil {
		status := http.StatusBadRequest
		if errors.As(err, new(*http.MaxBytesError)) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, CompileResponse{Message: err.Error()}, false)
		return
	}
	c, err := contract.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, CompileResponse{Message: err.Error()}, false)
		return
	}
	if _, err := t.compiler.Compile(r.Context(), c); err != nil {
		t.opt.Logger.Warn("compile failed", "contract", c.ControllerName, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, CompileResponse{Message: err.Error(), Entity: c.ControllerName}, false)
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{Success: true, Entity: c.ControllerName}, false)
}

func (t *triggers) remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "contractName")
	if _, err := t.compiler.Remove(r.Context(), name); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, contract.ErrNotFound) {
			status = http.StatusNotFound
		}
		t.opt.Logger.Warn("remove failed", "contract", name, "error", err)
		writeJSON(w, status, CompileResponse{Message: err.Error(), Entity: name}, false)
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{Success: true, Entity: name}, false)
}

func (t *triggers) restart(w http.ResponseWriter, r *http.Request) {
	if _, err := t.compiler.Reload(r.Context()); err != nil {
		t.opt.Logger.Error("restart failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, CompileResponse{Message: err.Error()}, false)
		return
	}
	writeJSON(w, http.StatusOK, CompileResponse{Success: true}, false)
}
