package codegen

import (
	"bytes"
	"path"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/typemap"
)

// ModelImportPath is the Go import path of c's model package.
func (e *Emitter) ModelImportPath(c *contract.Contract) string {
	return path.Join(append([]string{e.modelPackage}, c.SubPathSegments()...)...)
}

// modelPackageName is the last subPath segment, or "models".
func modelPackageName(c *contract.Contract) string {
	segs := c.SubPathSegments()
	if len(segs) == 0 {
		return ModelsDir
	}
	name := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(segs[len(segs)-1]))
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return ModelsDir
	}
	return name
}

// Model renders the Go model of c.
func (e *Emitter) Model(c *contract.Contract) ([]byte, error) {
	if err := contract.Validate(c); err != nil {
		return nil, generateError(c.ControllerName, err)
	}
	f := e.modelFile(c)
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, generateError(c.ControllerName, err)
	}
	return buf.Bytes(), nil
}

func (e *Emitter) modelFile(c *contract.Contract) *jen.File {
	f := jen.NewFilePathName(e.ModelImportPath(c), modelPackageName(c))
	f.HeaderComment(Header)

	entity := c.EntityName()
	rels := e.relations(c)

	fields := []jen.Code{
		jen.Id("ID").String().Tag(map[string]string{"json": "id"}),
	}
	for i := range c.Fields {
		field := &c.Fields[i]
		if field.Exclude {
			continue
		}
		name := contract.Pascal(field.PropertyKey)
		fields = append(fields, jen.Id(name).Add(goType(field)).Tag(jsonTag(field)))
		if rel := rels[field.PropertyKey]; rel != nil {
			ref := jen.Qual(e.ModelImportPath(rel.target), rel.target.EntityName())
			if field.Repeated {
				fields = append(fields, jen.Id(name+"Ref").Index().Op("*").Add(ref).Tag(map[string]string{"json": "-"}))
			} else {
				fields = append(fields, jen.Id(name+"Ref").Op("*").Add(ref).Tag(map[string]string{"json": "-"}))
			}
		}
	}
	fields = append(fields,
		jen.Id("CreatedAt").String().Tag(map[string]string{"json": "createdAt,omitempty"}),
		jen.Id("UpdatedAt").String().Tag(map[string]string{"json": "updatedAt,omitempty"}),
	)

	f.Commentf("%s is the stored record of the %s contract.", entity, c.ControllerName)
	f.Type().Id(entity).Struct(fields...)

	indexType := jen.Struct(
		jen.Id("Name").String(),
		jen.Id("Fields").Index().String(),
		jen.Id("Unique").Bool(),
	)
	f.Commentf("Indexes returns the lookup indexes declared for %s.", entity)
	f.Func().Params(jen.Id(entity)).Id("Indexes").Params().Index().Add(indexType).Block(
		jen.Return(jen.Index().Add(indexType).ValuesFunc(func(g *jen.Group) {
			for _, idx := range c.Indexes {
				g.Values(jen.Dict{
					jen.Id("Name"):   jen.Lit(indexName(c, idx)),
					jen.Id("Fields"): jen.Index().String().ValuesFunc(litStrings(idx.Fields)),
					jen.Id("Unique"): jen.Lit(idx.Unique),
				})
			}
		})),
	)
	return f
}

// indexName defaults to <entity>_<fields>_idx.
func indexName(c *contract.Contract, idx contract.Index) string {
	if idx.Name != "" {
		return idx.Name
	}
	parts := []string{contract.Snake(c.EntityName())}
	for _, k := range idx.Fields {
		parts = append(parts, contract.Snake(k))
	}
	return strings.Join(append(parts, "idx"), "_")
}

func litStrings(ss []string) func(*jen.Group) {
	return func(g *jen.Group) {
		for _, s := range ss {
			g.Lit(s)
		}
	}
}

// goType maps a field to its Go type. Nullable fields whose type has no
// absent value become pointers; big integers are always pointers.
func goType(f *contract.Field) *jen.Statement {
	t := typemap.TargetType(f.ProtoType)
	var base *jen.Statement
	if t.PkgPath != "" {
		base = jen.Qual(t.PkgPath, t.Name)
	} else {
		base = jen.Id(t.Name)
	}
	if t.Slice {
		base = jen.Index().Add(base)
	}
	switch {
	case t.PkgPath == "math/big":
		base = jen.Op("*").Add(base)
	case f.Nullable && !t.Nilable && !f.Repeated:
		base = jen.Op("*").Add(base)
	}
	if f.Repeated {
		return jen.Index().Add(base)
	}
	return base
}

func jsonTag(f *contract.Field) map[string]string {
	tag := f.PropertyKey
	if f.Nullable {
		tag += ",omitempty"
	}
	return map[string]string{"json": tag}
}
