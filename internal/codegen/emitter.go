// Package codegen renders contracts into resolver artifacts: one SDL file per
// contract with its entity, input and list types and the bound root fields,
// plus an optional Go model.
//
// Artifacts are assembled as a typed Document and printed by a single
// printer, so output is deterministic and structurally valid.
package codegen

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/service"
	"github.com/hanpama/contractgraph/internal/typemap"
)

// Standard role suffixes.
const (
	RoleRead   = "read"
	RoleCreate = "create"
	RoleUpdate = "update"
	RoleDelete = "delete"
)

// DefaultModelPackage is the import path of generated models when none is configured.
const DefaultModelPackage = "models"

const placeholderField = "_empty"

// Emitter renders the artifacts of contracts.
type Emitter struct {
	registry     *contract.Registry
	locator      service.Locator
	modelPackage string
	logger       *slog.Logger
}

type Option func(*Emitter)

// WithLocator enables generation-time verification of bound services.
func WithLocator(loc service.Locator) Option {
	return func(e *Emitter) { e.locator = loc }
}

// WithModelPackage sets the import path generated models live under.
func WithModelPackage(pkg string) Option {
	return func(e *Emitter) {
		if pkg != "" {
			e.modelPackage = strings.TrimSuffix(pkg, "/")
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Emitter resolving links through reg.
func New(reg *contract.Registry, opts ...Option) *Emitter {
	e := &Emitter{
		registry:     reg,
		modelPackage: DefaultModelPackage,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate renders the resolver artifact of c.
func (e *Emitter) Generate(c *contract.Contract) ([]byte, error) {
	d, err := e.Document(c)
	if err != nil {
		return nil, err
	}
	return Print(d), nil
}

// Document assembles the resolver artifact of c without printing it.
func (e *Emitter) Document(c *contract.Contract) (*Document, error) {
	if c == nil {
		return nil, generateError("", errors.New("nil contract"))
	}
	if err := contract.Validate(c); err != nil {
		return nil, generateError(c.ControllerName, err)
	}

	g := &generation{Emitter: e, c: c, doc: &Document{}, rels: e.relations(c)}
	if err := g.run(); err != nil {
		return nil, generateError(c.ControllerName, err)
	}
	if err := e.verifyServices(g.doc); err != nil {
		return nil, generateError(c.ControllerName, err)
	}
	return g.doc, nil
}

func (e *Emitter) verifyServices(d *Document) error {
	if e.locator == nil {
		return nil
	}
	var errs []error
	seen := make(map[string]bool)
	for _, f := range append(append([]*Field{}, d.Query...), d.Mutation...) {
		for _, dir := range f.Directives {
			if dir.Name != "bind" {
				continue
			}
			name, _ := dir.Args[0].Value.(string)
			if seen[name] {
				continue
			}
			seen[name] = true
			if _, err := e.locator.Resolve(name); err != nil {
				errs = append(errs, fmt.Errorf("field %s: %w", f.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// generation is the state of one Document assembly.
type generation struct {
	*Emitter
	c    *contract.Contract
	doc  *Document
	rels map[string]*relation
}

func (g *generation) run() error {
	for _, rel := range g.rels {
		g.doc.addImport(rel.target.EntityName(), importPath(g.c, rel.target))
	}
	if err := g.doc.Add(g.entityObject()); err != nil {
		return err
	}
	if !g.c.ControllerEnabled() {
		return nil
	}

	entity := g.c.EntityName()
	for _, def := range []*Definition{
		g.createInput(),
		g.updateInput(),
		{Kind: KindObject, Name: entity + "List", Fields: []*Field{
			{Name: "count", Type: "Int!"},
			{Name: "data", Type: "[" + entity + "!]!"},
			{Name: "pagination", Type: "PaginationMeta!"},
		}},
		{Kind: KindInput, Name: findArgs(entity), Fields: []*Field{
			{Name: "page", Type: "Int", Default: 1, HasDefault: true},
			{Name: "limit", Type: "Int", Default: 20, HasDefault: true},
			{Name: "sort", Type: "String"},
			{Name: "filter", Type: typemap.JSON},
		}},
	} {
		if err := g.doc.Add(def); err != nil {
			return err
		}
	}
	g.standardOperations()

	for i := range g.c.Services {
		if err := g.customMethod(&g.c.Services[i]); err != nil {
			return err
		}
	}
	return nil
}

func findArgs(entity string) string   { return entity + "FindArgs" }
func createInput(entity string) string { return "Create" + entity + "Input" }
func updateInput(entity string) string { return "Update" + entity + "Input" }

func (g *generation) entityObject() *Definition {
	def := &Definition{Kind: KindObject, Name: g.c.EntityName()}
	def.Fields = append(def.Fields, &Field{Name: "id", Type: typemap.ID + "!"})
	for i := range g.c.Fields {
		f := &g.c.Fields[i]
		if f.Exclude {
			continue
		}
		field := &Field{Name: f.PropertyKey, Type: typemap.SchemaTypeRef(f.ProtoType, f.Repeated, f.Nullable)}
		if rel := g.rels[f.PropertyKey]; rel != nil && rel.registered {
			field.Type = rel.target.EntityName()
			if f.Repeated {
				field.Type = "[" + field.Type + "]"
			}
			field.Directives = append(field.Directives, link(rel.target.EntityName(), rel.key))
		}
		def.Fields = append(def.Fields, field)
	}
	def.Fields = append(def.Fields,
		&Field{Name: "createdAt", Type: typemap.String},
		&Field{Name: "updatedAt", Type: typemap.String},
	)
	return def
}

func (g *generation) createInput() *Definition {
	def := &Definition{Kind: KindInput, Name: createInput(g.c.EntityName())}
	for _, f := range g.writable() {
		field := &Field{
			Name: f.PropertyKey,
			Type: typemap.SchemaTypeRef(f.ProtoType, f.Repeated, f.Nullable || f.DefaultValue != nil),
		}
		if f.DefaultValue != nil {
			field.Default, field.HasDefault = f.DefaultValue, true
		}
		def.Fields = append(def.Fields, field)
	}
	return withPlaceholder(def)
}

func (g *generation) updateInput() *Definition {
	def := &Definition{Kind: KindInput, Name: updateInput(g.c.EntityName())}
	for _, f := range g.writable() {
		def.Fields = append(def.Fields, &Field{
			Name: f.PropertyKey,
			Type: typemap.SchemaTypeRef(f.ProtoType, f.Repeated, true),
		})
	}
	return withPlaceholder(def)
}

func (g *generation) writable() []*contract.Field {
	var out []*contract.Field
	for i := range g.c.Fields {
		if f := &g.c.Fields[i]; !f.Exclude && !f.ReadOnly {
			out = append(out, f)
		}
	}
	return out
}

// withPlaceholder keeps definitions without members valid.
func withPlaceholder(def *Definition) *Definition {
	if len(def.Fields) == 0 {
		def.Fields = []*Field{{Name: placeholderField, Type: typemap.Boolean}}
	}
	return def
}

func (g *generation) policy(role string) []*Directive {
	switch {
	case g.c.RootOnly:
		return []*Directive{rootOnly()}
	case g.c.Auth:
		return []*Directive{authRoles(g.c.Role(role))}
	}
	return nil
}

func (g *generation) standardOperations() {
	c := g.c
	entity, svc := c.EntityName(), c.ServiceName()
	directives := func(role, method, args string) []*Directive {
		return append(g.policy(role), bind(svc, method, args))
	}

	g.doc.Query = append(g.doc.Query,
		&Field{
			Name:       c.EntityCamel() + "Find",
			Args:       []*Arg{{Name: "args", Type: findArgs(entity)}},
			Type:       entity + "List!",
			Directives: directives(RoleRead, service.MethodFind, findArgs(entity)),
		},
		&Field{
			Name:       c.EntityCamel() + "ById",
			Args:       []*Arg{{Name: "id", Type: "ID!"}},
			Type:       entity,
			Directives: directives(RoleRead, service.MethodFindByID, ""),
		},
	)
	g.doc.Mutation = append(g.doc.Mutation,
		&Field{
			Name:       "create" + entity,
			Args:       []*Arg{{Name: "input", Type: createInput(entity) + "!"}},
			Type:       entity + "!",
			Directives: directives(RoleCreate, service.MethodCreate, createInput(entity)),
		},
		&Field{
			Name:       "update" + entity,
			Args:       []*Arg{{Name: "id", Type: "ID!"}, {Name: "input", Type: updateInput(entity) + "!"}},
			Type:       entity + "!",
			Directives: directives(RoleUpdate, service.MethodUpdate, updateInput(entity)),
		},
		&Field{
			Name:       "delete" + entity,
			Args:       []*Arg{{Name: "id", Type: "ID!"}},
			Type:       "Boolean!",
			Directives: directives(RoleDelete, service.MethodDelete, ""),
		},
	)
}

// customMethod emits the root field of one declared service method.
func (g *generation) customMethod(s *contract.Service) error {
	c := g.c
	field := &Field{Name: c.MethodField(s)}

	argsName, err := g.methodArgs(s)
	if err != nil {
		return err
	}
	if argsName != "" {
		typ := argsName
		if s.Request != "" {
			typ += "!"
		}
		field.Args = []*Arg{{Name: "args", Type: typ}}
	}

	field.Type, err = g.responseType(s.Response)
	if err != nil {
		return fmt.Errorf("method %s: %w", s.FunctionName, err)
	}

	if s.Auth != nil {
		if *s.Auth {
			field.Directives = append(field.Directives, authRoles(c.Role(s.FunctionName)))
		}
	} else {
		switch {
		case c.RootOnly:
			field.Directives = append(field.Directives, rootOnly())
		case c.Auth:
			field.Directives = append(field.Directives, authRoles(c.Role(s.FunctionName)))
		}
	}
	field.Directives = append(field.Directives, bind(c.BackingService(s), s.FunctionName, argsName))

	if s.IsQuery() {
		g.doc.Query = append(g.doc.Query, field)
	} else {
		g.doc.Mutation = append(g.doc.Mutation, field)
	}
	return nil
}

// methodArgs declares the Args input of s and returns its name. A void
// request takes no argument.
func (g *generation) methodArgs(s *contract.Service) (string, error) {
	switch s.Request {
	case contract.Void:
		return "", nil
	case "":
		name := contract.Pascal(s.FunctionName) + "Args"
		return name, g.doc.Add(&Definition{Kind: KindInput, Name: name, Fields: []*Field{
			{Name: "payload", Type: typemap.JSON},
		}})
	}
	if _, ok := g.c.Message(s.Request); !ok {
		return "", fmt.Errorf("method %s: request %q is not a message of the contract", s.FunctionName, s.Request)
	}
	return g.message(s.Request, KindInput)
}

// responseType maps a declared response to a GraphQL type reference.
func (g *generation) responseType(resp string) (string, error) {
	switch resp {
	case "":
		return typemap.JSON, nil
	case contract.Void:
		return typemap.Boolean, nil
	}
	elem, list := strings.CutSuffix(resp, "[]")

	var named string
	switch {
	case elem == g.c.EntityName() || elem == g.c.ControllerName:
		named = g.c.EntityName()
	default:
		if _, ok := g.c.Message(elem); ok {
			var err error
			if named, err = g.message(elem, KindObject); err != nil {
				return "", err
			}
			break
		}
		if !typemap.Known(elem) {
			if other, ok := g.lookup(elem); ok {
				named = other.EntityName()
				g.doc.addImport(named, importPath(g.c, other))
				break
			}
		}
		named = typemap.SchemaType(elem)
	}
	if list {
		return "[" + strings.TrimSuffix(named, "!") + "!]!", nil
	}
	return named, nil
}

// message declares the DTO name in the given role and returns its type name.
// Inputs carry the Args suffix so one DTO can serve both directions.
func (g *generation) message(name string, kind DefinitionKind) (string, error) {
	msg, _ := g.c.Message(name)
	typeName := contract.Pascal(msg.Name)
	if kind == KindInput {
		typeName += "Args"
	}
	if existing := g.doc.Definition(typeName); existing != nil {
		if existing.Kind != kind {
			return "", fmt.Errorf("message %s clashes with definition %s", name, typeName)
		}
		return typeName, nil
	}
	if !g.doc.reserve(typeName) {
		// Reserved by an enclosing message still being assembled.
		return typeName, nil
	}

	def := &Definition{Kind: kind, Name: typeName}
	for _, p := range msg.OrderedProperties() {
		typ, err := g.propertyType(p.Property, kind)
		if err != nil {
			return "", fmt.Errorf("message %s property %s: %w", name, p.Name, err)
		}
		def.Fields = append(def.Fields, &Field{Name: p.Name, Type: typ})
	}
	g.doc.fill(withPlaceholder(def))
	return typeName, nil
}

func (g *generation) propertyType(p contract.Property, kind DefinitionKind) (string, error) {
	resolve := func(tag string) (string, error) {
		if _, ok := g.c.Message(tag); ok {
			return g.message(tag, kind)
		}
		return typemap.SchemaType(tag), nil
	}
	var (
		typ string
		err error
	)
	if p.ArrayType != "" {
		typ, err = resolve(p.ArrayType)
		typ = "[" + typ + "]"
	} else {
		typ, err = resolve(p.Type)
	}
	if err != nil {
		return "", err
	}
	if p.Required && !strings.HasSuffix(typ, "!") {
		typ += "!"
	}
	return typ, nil
}
