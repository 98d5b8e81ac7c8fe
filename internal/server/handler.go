package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/events"
	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/language"
	"github.com/hanpama/contractgraph/internal/reqid"
)

// NotReadyMessage is returned while no schema has been built yet.
const NotReadyMessage = "schema is not built yet"

// Handler serves GraphQL over HTTP with the executor of the latest build.
type Handler struct {
	exec atomic.Pointer[executor.Executor]
	opt  Options
}

type Options struct {
	// Timeout bounds requests whose context has no deadline. Zero disables it.
	Timeout time.Duration
	// Pretty indents JSON responses.
	Pretty bool
	// MaxBodyBytes limits POST bodies. Zero means unlimited.
	MaxBodyBytes int64
	// RefreshHeader names the header carrying the refresh token.
	RefreshHeader string
	// GraphiQL serves the in-browser IDE to HTML clients.
	GraphiQL bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option   { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                   { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option      { return func(o *Options) { o.MaxBodyBytes = n } }
func WithRefreshHeader(name string) Option { return func(o *Options) { o.RefreshHeader = name } }
func WithGraphiQL(enable bool) Option      { return func(o *Options) { o.GraphiQL = enable } }

// New returns a handler without an executor. GraphQL requests answer 503
// until the first Swap.
func New(opts ...Option) *Handler {
	h := &Handler{opt: Options{Timeout: 10 * time.Second, GraphiQL: true, RefreshHeader: auth.DefaultRefreshHeader}}
	for _, o := range opts {
		o(&h.opt)
	}
	return h
}

// Swap installs exec for subsequent requests. In-flight requests finish on
// the executor they started with.
func (h *Handler) Swap(exec *executor.Executor) { h.exec.Store(exec) }

func (h *Handler) Ready() bool { return h.exec.Load() != nil }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	rid := r.Header.Get(reqid.Header)
	if rid != "" {
		ctx = reqid.WithID(ctx, rid)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(reqid.Header, rid)

	start := time.Now()
	eventbus.Publish(ctx, events.RequestStart{Request: r})
	status := h.serve(ctx, w, r)
	eventbus.Publish(ctx, events.RequestFinish{Request: r, Status: status, Duration: time.Since(start)})
}

// serve writes the response and returns its status code.
func (h *Handler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	switch r.Method {
	case http.MethodGet:
		if h.opt.GraphiQL && !r.URL.Query().Has("query") && acceptsHTML(r.Header.Get("Accept")) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(graphiqlPage)
			return http.StatusOK
		}
	case http.MethodPost:
	default:
		return h.fail(w, http.StatusMethodNotAllowed, "method not allowed")
	}

	exec := h.exec.Load()
	if exec == nil {
		return h.fail(w, http.StatusServiceUnavailable, NotReadyMessage)
	}

	reqs, batched, err := decodeRequests(w, r, h.opt.MaxBodyBytes)
	if err != nil {
		var herr *httpError
		if !errors.As(err, &herr) {
			herr = badRequest(err.Error())
		}
		return h.fail(w, herr.status, herr.message)
	}

	ctx = auth.NewContext(ctx, auth.FromRequest(r, h.opt.RefreshHeader))
	results := make([]*executor.ExecutionResult, len(reqs))
	for i, req := range reqs {
		results[i] = execute(ctx, exec, req)
	}
	if batched {
		h.write(w, http.StatusOK, results)
	} else {
		h.write(w, http.StatusOK, results[0])
	}
	return http.StatusOK
}

// execute runs one operation. Syntax errors are reported in the result body
// with status 200, like execution errors.
func execute(ctx context.Context, exec *executor.Executor, req Request) *executor.ExecutionResult {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		var perr *language.Error
		if !errors.As(err, &perr) {
			perr = &language.Error{Message: err.Error()}
		}
		return syntaxError(perr)
	}

	var kind string
	if op := doc.Operations.ForName(req.OperationName); op != nil {
		kind = string(op.Operation)
	}
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{Name: req.OperationName, Type: kind})
	res := exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	eventbus.Publish(ctx, events.OperationFinish{
		Name:     req.OperationName,
		Type:     kind,
		Errors:   len(res.Errors),
		Duration: time.Since(start),
	})
	return res
}

func syntaxError(err *language.Error) *executor.ExecutionResult {
	ge := executor.GraphQLError{Message: err.Message, Extensions: err.Extensions}
	for _, l := range err.Locations {
		ge.Locations = append(ge.Locations, executor.Location{Line: l.Line, Column: l.Column})
	}
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{ge}}
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg string) int {
	h.write(w, status, &executor.ExecutionResult{Errors: []executor.GraphQLError{{Message: msg}}})
	return status
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) { writeJSON(w, status, v, h.opt.Pretty) }

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func acceptsHTML(accept string) bool {
	for part := range strings.SplitSeq(accept, ",") {
		if strings.HasPrefix(strings.TrimSpace(part), "text/html") {
			return true
		}
	}
	return false
}
