// Package resolver implements executor.Runtime on top of named services.
//
// Root fields dispatch to the service method named by their @bind directive
// after passing the authorization gate. Fields carrying @link load the
// referenced entity through the entity's service, one LoadMany call per
// (type, field) and depth.
package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/events"
	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/ir"
	"github.com/hanpama/contractgraph/internal/service"
)

// DeniedMessage is the error message of a rejected operation.
const DeniedMessage = "Access denied! You don't have permission for this action!"

// ErrAccessDenied is returned for root fields the caller may not run. Its
// response entry carries the extension code FORBIDDEN.
var ErrAccessDenied error = deniedError{}

type deniedError struct{}

func (deniedError) Error() string { return DeniedMessage }

func (deniedError) Extensions() map[string]any { return map[string]any{"code": "FORBIDDEN"} }

// Runtime resolves fields of one built project.
type Runtime struct {
	locator  service.Locator
	verifier auth.Verifier
	hasAuth  func() bool
	logger   *slog.Logger

	mutationType string
	roots        map[string]map[string]*rootField
	links        map[string]map[string]*ir.Link
	enums        map[string]struct{}
}

type rootField struct {
	binding      *ir.Binding
	requirements []auth.Requirement
	guarded      bool
}

var _ executor.Runtime = (*Runtime)(nil)

type Option func(*Runtime)

// WithVerifier sets the token verifier used by the authorization gate.
func WithVerifier(v auth.Verifier) Option {
	return func(r *Runtime) { r.verifier = v }
}

// WithAuthModule reports whether the auth module is installed. It is
// consulted per request. Without it the auth module counts as absent and
// every guarded field only needs a token.
func WithAuthModule(installed func() bool) Option {
	return func(r *Runtime) { r.hasAuth = installed }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// New prepares the runtime of p. Every bound service and every linked
// entity's loader must resolve through loc.
func New(p *ir.Project, loc service.Locator, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		locator: loc,
		hasAuth: func() bool { return false },
		logger:  slog.Default(),
		roots:   make(map[string]map[string]*rootField),
		links:   make(map[string]map[string]*ir.Link),
		enums:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if p.Schema != nil {
		r.mutationType = p.Schema.MutationType
	}

	var errs []error
	for name, def := range p.Definitions {
		switch {
		case def.Enum != nil:
			r.enums[name] = struct{}{}
		case def.Object != nil:
			for _, f := range def.Object.OrderedFields() {
				if f.Binding != nil {
					if _, err := loc.Resolve(f.Binding.Service); err != nil {
						errs = append(errs, fmt.Errorf("%s.%s: %w", name, f.Name, err))
					}
					r.addRoot(name, f)
				}
				if f.Link != nil {
					if err := r.checkLoader(f.Link); err != nil {
						errs = append(errs, fmt.Errorf("%s.%s: %w", name, f.Name, err))
					}
					if r.links[name] == nil {
						r.links[name] = make(map[string]*ir.Link)
					}
					r.links[name][f.Name] = f.Link
				}
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) addRoot(typeName string, f *ir.FieldDefinition) {
	rf := &rootField{binding: f.Binding}
	if f.Policy != nil {
		rf.guarded = true
		if f.Policy.RootOnly {
			rf.requirements = append(rf.requirements, auth.RootOnly)
		}
		rf.requirements = append(rf.requirements, auth.Roles(f.Policy.Roles...)...)
	}
	if r.roots[typeName] == nil {
		r.roots[typeName] = make(map[string]*rootField)
	}
	r.roots[typeName][f.Name] = rf
}

// LoaderName is the service a linked entity is loaded through.
func LoaderName(entity string) string { return entity + "Service" }

func (r *Runtime) checkLoader(l *ir.Link) error {
	svc, err := r.locator.Resolve(LoaderName(l.Entity))
	if err != nil {
		return err
	}
	if _, ok := svc.(service.BatchLoader); !ok {
		return fmt.Errorf("service %s cannot load linked records", LoaderName(l.Entity))
	}
	return nil
}

// ResolveSync projects a field out of its parent value. Maps are read
// directly; other values go through their JSON form.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return src[field], nil
	}
	m, err := toMap(source)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", objectType, field, err)
	}
	return m[field], nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("value of type %T is not an object", v)
	}
	return m, nil
}

// BatchResolveAsync runs the root fields and link loads of one depth.
// Query roots and link groups run concurrently; mutation roots run in order.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	rc, _ := auth.FromContext(ctx)

	type groupKey struct{ objectType, field string }
	var (
		groups    = map[groupKey][]int{}
		order     []groupKey
		queries   []int
		mutations []int
	)
	for i, t := range tasks {
		if _, ok := r.roots[t.ObjectType][t.Field]; ok {
			if t.ObjectType == r.mutationType {
				mutations = append(mutations, i)
			} else {
				queries = append(queries, i)
			}
			continue
		}
		k := groupKey{t.ObjectType, t.Field}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, i := range mutations {
		results[i] = r.resolveRoot(ctx, rc, tasks[i])
	}

	var g errgroup.Group
	for _, i := range queries {
		g.Go(func() error {
			results[i] = r.resolveRoot(ctx, rc, tasks[i])
			return nil
		})
	}
	for _, k := range order {
		idxs := groups[k]
		g.Go(func() error {
			r.loadLinks(ctx, tasks, idxs, results)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runtime) resolveRoot(ctx context.Context, rc auth.RequestContext, t executor.AsyncResolveTask) executor.AsyncResolveResult {
	rf := r.roots[t.ObjectType][t.Field]
	if rf.guarded {
		allowed := auth.Authorize(rc.Token, rf.requirements, r.hasAuth(), r.verifier)
		eventbus.Publish(ctx, events.AuthDecision{ObjectType: t.ObjectType, Field: t.Field, Allowed: allowed})
		if !allowed {
			r.logger.DebugContext(ctx, "access denied", "field", t.ObjectType+"."+t.Field)
			return executor.AsyncResolveResult{Error: ErrAccessDenied}
		}
	}

	b := rf.binding
	svc, err := r.locator.Resolve(b.Service)
	if err != nil {
		return executor.AsyncResolveResult{Error: err}
	}
	start := time.Now()
	eventbus.Publish(ctx, events.ServiceCallStart{Service: b.Service, Method: b.Method})
	v, err := invoke(ctx, svc, b.Method, t.Args)
	eventbus.Publish(ctx, events.ServiceCallFinish{Service: b.Service, Method: b.Method, Err: err, Duration: time.Since(start)})
	if err != nil {
		return executor.AsyncResolveResult{Error: err}
	}
	return executor.AsyncResolveResult{Value: v}
}

// invoke turns a panicking service method into an error.
func invoke(ctx context.Context, svc service.Service, method string, args map[string]any) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v, err = nil, fmt.Errorf("service method %s panicked: %v", method, p)
		}
	}()
	return svc.Invoke(ctx, method, args)
}

// loadLinks resolves one (type, field) group with a single LoadMany call.
// Null keys short-circuit to null; list keys resolve element-wise.
func (r *Runtime) loadLinks(ctx context.Context, tasks []executor.AsyncResolveTask, idxs []int, results []executor.AsyncResolveResult) {
	first := tasks[idxs[0]]
	l := r.links[first.ObjectType][first.Field]
	if l == nil {
		for _, i := range idxs {
			results[i] = executor.AsyncResolveResult{Error: fmt.Errorf("no resolver for %s.%s", first.ObjectType, first.Field)}
		}
		return
	}

	type span struct{ start, n int }
	var (
		keys  []any
		spans = make([]span, len(idxs))
		lists = make([]bool, len(idxs))
	)
	for j, i := range idxs {
		key, err := r.ResolveSync(ctx, tasks[i].ObjectType, tasks[i].Field, tasks[i].Source, nil)
		if err != nil {
			results[i] = executor.AsyncResolveResult{Error: err}
			spans[j] = span{-1, 0}
			continue
		}
		switch k := key.(type) {
		case nil:
			spans[j] = span{-1, 0}
		case []any:
			lists[j] = true
			spans[j] = span{len(keys), len(k)}
			keys = append(keys, k...)
		default:
			spans[j] = span{len(keys), 1}
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}

	loader, err := r.loader(l.Entity)
	var values []any
	if err == nil {
		values, err = loader.LoadMany(ctx, l.Field, keys)
	}
	if err == nil && len(values) != len(keys) {
		err = fmt.Errorf("loader %s returned %d records for %d keys", LoaderName(l.Entity), len(values), len(keys))
	}
	for j, i := range idxs {
		s := spans[j]
		if s.start < 0 {
			continue
		}
		if err != nil {
			results[i] = executor.AsyncResolveResult{Error: err}
			continue
		}
		if lists[j] {
			results[i] = executor.AsyncResolveResult{Value: append([]any(nil), values[s.start:s.start+s.n]...)}
			continue
		}
		results[i] = executor.AsyncResolveResult{Value: values[s.start]}
	}
}

func (r *Runtime) loader(entity string) (service.BatchLoader, error) {
	svc, err := r.locator.Resolve(LoaderName(entity))
	if err != nil {
		return nil, err
	}
	bl, ok := svc.(service.BatchLoader)
	if !ok {
		return nil, fmt.Errorf("service %s cannot load linked records", LoaderName(entity))
	}
	return bl, nil
}

// SerializeLeafValue encodes scalars and enums as JSON-safe values.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if _, ok := r.enums[typeName]; ok {
		return fmt.Sprint(value), nil
	}
	switch typeName {
	case "String", "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
		return fmt.Sprint(value), nil
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v", value)
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "BigInt":
		switch v := value.(type) {
		case *big.Int:
			return v.String(), nil
		case string:
			return v, nil
		case float64:
			return new(big.Float).SetFloat64(v).Text('f', 0), nil
		}
		return fmt.Sprint(value), nil
	case "Bytes":
		switch v := value.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(v), nil
		case string:
			return v, nil
		}
		return nil, fmt.Errorf("Bytes cannot represent %T", value)
	}
	return value, nil
}

func serializeInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return v, nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float64:
		if v == float64(int64(v)) {
			return int64(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("Int cannot represent %v", value)
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("Float cannot represent %v", value)
}
