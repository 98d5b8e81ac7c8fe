package codegen

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Print renders d as SDL. Output depends only on d, so equal documents print
// to identical bytes.
func Print(d *Document) []byte {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(Header)
	b.WriteString("\n")

	if imports := importLines(d.Imports); len(imports) > 0 {
		b.WriteString("\n")
		for _, line := range imports {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	for _, def := range d.Definitions {
		b.WriteString("\n")
		printDefinition(&b, string(def.Kind), def.Name, def.Fields)
	}
	if len(d.Query) > 0 {
		b.WriteString("\n")
		printDefinition(&b, "extend type", "Query", d.Query)
	}
	if len(d.Mutation) > 0 {
		b.WriteString("\n")
		printDefinition(&b, "extend type", "Mutation", d.Mutation)
	}
	return []byte(b.String())
}

// importLines returns the sorted, deduplicated import comment lines.
func importLines(imports []Import) []string {
	seen := make(map[string]struct{}, len(imports))
	lines := make([]string, 0, len(imports))
	for _, imp := range imports {
		line := fmt.Sprintf("# import %s from %q", imp.Name, imp.Path)
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return lines
}

func printDefinition(b *strings.Builder, keyword, name string, fields []*Field) {
	b.WriteString(keyword)
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(" {\n")
	for _, f := range fields {
		printField(b, f)
	}
	b.WriteString("}\n")
}

func printField(b *strings.Builder, f *Field) {
	b.WriteString("  ")
	b.WriteString(f.Name)
	if len(f.Args) > 0 {
		b.WriteString("(")
		for i, arg := range f.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.Name)
			b.WriteString(": ")
			b.WriteString(arg.Type)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(f.Type)
	if f.HasDefault {
		b.WriteString(" = ")
		b.WriteString(literal(f.Default))
	}
	for _, dir := range f.Directives {
		b.WriteString(" @")
		b.WriteString(dir.Name)
		if len(dir.Args) == 0 {
			continue
		}
		b.WriteString("(")
		for i, arg := range dir.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.Name)
			b.WriteString(": ")
			b.WriteString(literal(arg.Value))
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
}

// literal renders a Go value decoded from YAML or JSON as a GraphQL value.
func literal(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + literal(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return quote(fmt.Sprint(v))
}

// quote uses JSON string escaping, which GraphQL string literals accept.
func quote(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(out)
}
