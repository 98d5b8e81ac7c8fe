package codegen

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/hanpama/contractgraph/internal/contract"
)

// Generated directory layout below the generated root.
const (
	ResolversDir = "resolvers"
	ModelsDir    = "models"

	resolverSuffix = ".resolver.graphql"
)

// ArtifactPath is the slash-separated path of c's resolver artifact,
// relative to the generated root.
func ArtifactPath(c *contract.Contract) string {
	return path.Join(append(append([]string{ResolversDir}, c.SubPathSegments()...), c.EntityLower()+resolverSuffix)...)
}

// ModelPath is the slash-separated path of c's Go model, relative to the
// generated root.
func ModelPath(c *contract.Contract) string {
	return path.Join(append(append([]string{ModelsDir}, c.SubPathSegments()...), c.EntityLower()+".go")...)
}

// relation is the resolved target of a linked field.
type relation struct {
	field  *contract.Field
	target *contract.Contract
	key    string
	// registered is false when the target had to be synthesized.
	registered bool
}

// lookup finds a contract by controller name, then by entity name.
func (e *Emitter) lookup(name string) (*contract.Contract, bool) {
	if e.registry == nil {
		return nil, false
	}
	if c, ok := e.registry.Get(name); ok {
		return c, true
	}
	entity := contract.Pascal(name)
	for _, c := range e.registry.All() {
		if c.EntityName() == entity {
			return c, true
		}
	}
	return nil, false
}

// relations resolves the first link of every linked, non-excluded field.
// Unknown targets become placeholders next to the linking contract.
func (e *Emitter) relations(c *contract.Contract) map[string]*relation {
	out := make(map[string]*relation)
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Exclude || len(f.Link) == 0 {
			continue
		}
		l := f.Link[0]
		target, ok := e.lookup(l.Target())
		if !ok {
			target = &contract.Contract{ControllerName: contract.Pascal(l.Target()), SubPath: c.SubPath}
		}
		out[f.PropertyKey] = &relation{field: f, target: target, key: l.KeyField(), registered: ok}
	}
	return out
}

// importPath is the path of to's artifact relative to from's artifact.
func importPath(from, to *contract.Contract) string {
	fromDir := path.Dir(ArtifactPath(from))
	target := ArtifactPath(to)
	rel, err := filepath.Rel(filepath.FromSlash(fromDir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}
