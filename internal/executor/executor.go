package executor

import (
	"context"

	language "github.com/hanpama/contractgraph/internal/language"
	schema "github.com/hanpama/contractgraph/internal/schema"
)

type Option func(*Executor)

// WithMaxDepth rejects operations whose selections nest deeper than n.
// Zero disables the check.
func WithMaxDepth(n int) Option { return func(e *Executor) { e.maxDepth = n } }

// Executor runs operations against one schema and runtime. It is safe for
// concurrent use.
type Executor struct {
	runtime  Runtime
	schema   *schema.Schema
	maxDepth int
}

func NewExecutor(runtime Runtime, schema *schema.Schema, opts ...Option) *Executor {
	e := &Executor{runtime: runtime, schema: schema}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Schema returns the schema operations run against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// ExecuteRequest runs the named operation of doc. operationName may be empty
// when doc holds a single operation. initialValue is the source of root
// fields.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	doc *language.QueryDocument,
	operationName string,
	variables map[string]any,
	initialValue any,
) *ExecutionResult {
	op, err := selectOperation(doc, operationName)
	if err != nil {
		return requestError("%s", err.Error())
	}

	if op.Operation == language.Subscription {
		return requestError("%s operations are not supported", op.Operation)
	}
	root := e.schema.Root(string(op.Operation))
	if root == nil {
		return requestError("schema does not define a %s root type", op.Operation)
	}

	ex := &execution{
		ctx:     ctx,
		runtime: e.runtime,
		schema:  e.schema,
		doc:     doc,
	}
	if e.maxDepth > 0 {
		if d := ex.depth(op.SelectionSet, map[string]bool{}); d > e.maxDepth {
			return requestError("operation depth %d exceeds the limit of %d", d, e.maxDepth)
		}
	}
	vars, err := ex.coerceVariables(op, variables)
	if err != nil {
		return requestError("%s", err.Error())
	}
	ex.vars = vars

	data := make(map[string]any)
	groups := ex.collect(root, op.SelectionSet)
	if op.Operation == language.Mutation {
		for _, g := range groups {
			if ex.executeFields(root, []fieldGroup{g}, initialValue, nil, nil, data) {
				ex.dataNull = true
			}
			if ex.drain(); ex.dataNull {
				break
			}
		}
	} else {
		if ex.executeFields(root, groups, initialValue, nil, nil, data) {
			ex.dataNull = true
		}
		ex.drain()
	}

	res := &ExecutionResult{Errors: ex.errs}
	if !ex.dataNull {
		res.Data = data
	}
	return res
}

func selectOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if doc == nil || len(doc.Operations) == 0 {
		return nil, errorString("document contains no operations")
	}
	if name == "" {
		if len(doc.Operations) > 1 {
			return nil, errorString("operation name is required when the document has several operations")
		}
		return doc.Operations[0], nil
	}
	if op := doc.Operations.ForName(name); op != nil {
		return op, nil
	}
	return nil, errorString("unknown operation " + name)
}

type errorString string

func (e errorString) Error() string { return string(e) }

// execution is the state of one ExecuteRequest call.
type execution struct {
	ctx     context.Context
	runtime Runtime
	schema  *schema.Schema
	doc     *language.QueryDocument
	vars    map[string]any

	errs     []GraphQLError
	pending  []*pendingField
	dataNull bool
}

type pendingField struct {
	pos    *position
	fields []*language.Field
	task   AsyncResolveTask
}

// drain resolves queued fields wave by wave until none are left. Completing
// one wave may queue the next.
func (ex *execution) drain() {
	for len(ex.pending) > 0 && !ex.dataNull {
		wave := make([]*pendingField, 0, len(ex.pending))
		for _, pf := range ex.pending {
			if pf.pos.live() {
				wave = append(wave, pf)
			}
		}
		ex.pending = nil
		if len(wave) == 0 {
			return
		}

		if err := ex.ctx.Err(); err != nil {
			for _, pf := range wave {
				ex.resolved(pf, nil, err)
			}
			continue
		}

		tasks := make([]AsyncResolveTask, len(wave))
		for i, pf := range wave {
			tasks[i] = pf.task
		}
		results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)
		if len(results) != len(tasks) {
			err := errorString("runtime returned a result count that does not match its tasks")
			for _, pf := range wave {
				ex.resolved(pf, nil, err)
			}
			continue
		}
		for i, pf := range wave {
			ex.resolved(pf, results[i].Value, results[i].Error)
		}
	}
}

func (ex *execution) resolved(pf *pendingField, value any, err error) {
	if !pf.pos.live() {
		return
	}
	var violated bool
	if err != nil {
		violated = ex.fail(pf.pos, pf.fields, err)
	} else {
		violated = ex.settle(pf.pos, pf.fields, value)
	}
	if violated {
		ex.nullify(pf.pos.parent)
	}
}

func (ex *execution) addError(err error, path Path, fields []*language.Field) {
	ex.errs = append(ex.errs, newFieldError(err, path, fields))
}
