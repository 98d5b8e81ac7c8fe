// Package repair holds idempotent text passes that bring resolver SDL files
// back to a loadable shape: duplicate definitions, undeclared Args inputs
// and unbalanced braces. Every pass leaves well-formed input unchanged.
package repair

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// Apply runs every pass over src.
func Apply(src string) string {
	return BalanceBraces(SynthesizeArgs(DedupeDefinitions(BalanceBraces(src))))
}

// File applies the passes to the file at path in place and reports whether
// its content changed.
func File(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("repair %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("repair %s: %w", path, err)
	}
	out := []byte(Apply(string(data)))
	if bytes.Equal(out, data) {
		return false, nil
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("repair %s: %w", path, err)
	}
	return true, nil
}

// boundary matches a top-level declaration starting at column zero.
var boundary = regexp.MustCompile(`^(extend\s+)?(type|input|enum|scalar|interface|union|schema|directive)\b\s*([_A-Za-z][_0-9A-Za-z]*)?`)

// chunk is a top-level declaration together with the lines up to the next
// one. The description and comments directly above a declaration belong to
// it, not to the chunk before.
type chunk struct {
	text string
	// name is set for named, non-extension type declarations.
	name string
}

func split(src string) []chunk {
	var (
		out  []chunk
		cur  []string
		name string
	)
	emit := func(lines []string) {
		if len(lines) > 0 {
			out = append(out, chunk{text: strings.Join(lines, ""), name: name})
		}
	}
	for _, line := range strings.SplitAfter(src, "\n") {
		if m := boundary.FindStringSubmatch(line); m != nil {
			at := leading(cur)
			emit(cur[:at])
			cur = slices.Clone(cur[at:])
			name = ""
			if m[1] == "" && m[2] != "schema" && m[2] != "directive" {
				name = m[3]
			}
		}
		cur = append(cur, line)
	}
	emit(cur)
	return out
}

// leading returns where the run of column-zero comments and descriptions
// ending lines begins. A blank line ends the run.
func leading(lines []string) int {
	i := len(lines)
	for i > 0 {
		line := strings.TrimRight(lines[i-1], "\r\n")
		switch {
		case strings.HasPrefix(line, "#"):
			i--
		case len(line) >= 6 && strings.HasPrefix(line, `"""`) && strings.HasSuffix(line, `"""`):
			i--
		case strings.HasPrefix(line, `"`) && !strings.HasPrefix(line, `"""`):
			i--
		case strings.HasSuffix(line, `"""`):
			open := i - 2
			for open >= 0 && !strings.HasPrefix(lines[open], `"""`) {
				open--
			}
			if open < 0 {
				return i
			}
			i = open
		default:
			return i
		}
	}
	return i
}

// DedupeDefinitions drops every type, input, enum, scalar, interface or
// union declaration whose name is declared again later in src; the last
// declaration wins. Extensions are left alone.
func DedupeDefinitions(src string) string {
	chunks := split(src)
	last := make(map[string]int)
	for i, c := range chunks {
		if c.name != "" {
			last[c.name] = i
		}
	}
	var b strings.Builder
	for i, c := range chunks {
		if c.name != "" && last[c.name] != i {
			continue
		}
		b.WriteString(c.text)
	}
	return b.String()
}

var (
	declared     = regexp.MustCompile(`(?m)^[ \t]*(?:type|input|enum|scalar|interface|union)[ \t]+([_A-Za-z][_0-9A-Za-z]*)`)
	bindArgs     = regexp.MustCompile(`@bind\([^)]*\bargs\s*:\s*"([_A-Za-z][_0-9A-Za-z]*)"`)
	argList      = regexp.MustCompile(`\(([^()]*)\)`)
	argsTypeRef  = regexp.MustCompile(`:\s*\[?\s*([_A-Za-z][_0-9A-Za-z]*Args)\b`)
	untypedArgs  = regexp.MustCompile(`^([ \t]*[_A-Za-z][_0-9A-Za-z]*)\(\s*args\s*\)`)
	resolverHead = regexp.MustCompile(`(?m)^extend[ \t]+type[ \t]+(?:Query|Mutation)\b`)
)

// SynthesizeArgs declares a placeholder input for every Args type that a
// root field references but src never declares, inserted before the first
// Query or Mutation extension. A field whose argument lost its type,
// "name(args)", gets it back from the field's @bind args.
func SynthesizeArgs(src string) string {
	lines := strings.SplitAfter(src, "\n")
	for i, line := range lines {
		m := untypedArgs.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		bm := bindArgs.FindStringSubmatch(line)
		if bm == nil {
			continue
		}
		lines[i] = line[:m[3]] + "(args: " + bm[1] + ")" + line[m[1]:]
	}
	src = strings.Join(lines, "")

	have := make(map[string]struct{})
	for _, m := range declared.FindAllStringSubmatch(src, -1) {
		have[m[1]] = struct{}{}
	}
	want := make(map[string]struct{})
	for _, m := range bindArgs.FindAllStringSubmatch(src, -1) {
		want[m[1]] = struct{}{}
	}
	for _, list := range argList.FindAllStringSubmatch(src, -1) {
		for _, m := range argsTypeRef.FindAllStringSubmatch(list[1], -1) {
			want[m[1]] = struct{}{}
		}
	}

	var missing []string
	for name := range want {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return src
	}
	sort.Strings(missing)

	var decl strings.Builder
	for _, name := range missing {
		decl.WriteString("input ")
		decl.WriteString(name)
		decl.WriteString(" {\n  _empty: Boolean\n}\n\n")
	}

	loc := resolverHead.FindStringIndex(src)
	if loc == nil {
		if src != "" && !strings.HasSuffix(src, "\n") {
			src += "\n"
		}
		return src + "\n" + strings.TrimSuffix(decl.String(), "\n")
	}
	return src[:loc[0]] + decl.String() + src[loc[0]:]
}

// BalanceBraces drops closing braces that have no opener, appends the
// closers an unterminated document is missing and leaves exactly one
// trailing newline. Braces inside strings and comments are ignored.
func BalanceBraces(src string) string {
	var (
		b         strings.Builder
		depth     int
		openBlock bool
	)
	b.Grow(len(src) + 8)
	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '#':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			b.WriteString(src[i : i+end])
			i += end - 1
		case strings.HasPrefix(src[i:], `"""`):
			end := strings.Index(src[i+3:], `"""`)
			if end < 0 {
				end = len(src) - i - 3
				openBlock = true
			} else {
				end += 3
			}
			b.WriteString(src[i : i+3+end])
			i += 3 + end - 1
		case ch == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' && src[j] != '\n' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(src) && src[j] == '"' {
				j++
			}
			if j > len(src) {
				j = len(src)
			}
			b.WriteString(src[i:j])
			i = j - 1
		case ch == '{':
			depth++
			b.WriteByte(ch)
		case ch == '}':
			if depth == 0 {
				continue
			}
			depth--
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}

	out := strings.TrimRight(b.String(), " \t\r\n")
	if out == "" {
		return ""
	}
	if openBlock {
		out += "\n\"\"\""
	}
	for ; depth > 0; depth-- {
		out += "\n}"
	}
	return out + "\n"
}
