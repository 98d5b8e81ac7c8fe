package codegen

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hanpama/contractgraph/internal/contract"
)

// Artifacts lists the files written for one contract.
type Artifacts struct {
	Contract string
	// Resolver is the absolute path of the SDL artifact.
	Resolver string
	// Model is empty when generateEntities is off.
	Model   string
	Changed []string
}

// Paths returns the written files.
func (a *Artifacts) Paths() []string {
	out := []string{a.Resolver}
	if a.Model != "" {
		out = append(out, a.Model)
	}
	return out
}

// WriteArtifacts generates c and writes its files below root.
func (e *Emitter) WriteArtifacts(root string, c *contract.Contract) (*Artifacts, error) {
	src, err := e.Generate(c)
	if err != nil {
		return nil, err
	}
	a := &Artifacts{
		Contract: c.ControllerName,
		Resolver: filepath.Join(root, filepath.FromSlash(ArtifactPath(c))),
	}
	if err := a.write(a.Resolver, src); err != nil {
		return nil, generateError(c.ControllerName, err)
	}

	if c.EntitiesEnabled() {
		model, err := e.Model(c)
		if err != nil {
			return nil, err
		}
		a.Model = filepath.Join(root, filepath.FromSlash(ModelPath(c)))
		if err := a.write(a.Model, model); err != nil {
			return nil, generateError(c.ControllerName, err)
		}
	}
	e.logger.Debug("generated artifacts", "contract", c.ControllerName, "changed", len(a.Changed))
	return a, nil
}

func (a *Artifacts) write(path string, content []byte) error {
	changed, err := WriteFile(path, content)
	if changed {
		a.Changed = append(a.Changed, path)
	}
	return err
}

// WriteFile writes content to path, creating parent directories. A file
// already holding content is left untouched and reported unchanged.
func WriteFile(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// Prune removes generated files below the resolvers and models directories
// of root that are not in keep, then drops directories left empty. Only
// files carrying the generated header are touched. Removed paths are
// returned sorted.
func Prune(root string, keep []string) ([]string, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, p := range keep {
		kept[filepath.Clean(p)] = struct{}{}
	}

	var removed []string
	for _, dir := range []string{ResolversDir, ModelsDir} {
		base := filepath.Join(root, dir)
		var dirs []string
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() {
				if path != base {
					dirs = append(dirs, path)
				}
				return nil
			}
			if _, ok := kept[filepath.Clean(path)]; ok || !IsGenerated(path) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				return err
			}
			removed = append(removed, path)
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("prune %s: %w", base, err)
		}
		// Deepest first so nested empty directories collapse.
		sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
		for _, d := range dirs {
			_ = os.Remove(d)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// IsGenerated reports whether the first line of path carries Header.
func IsGenerated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.Contains(line, Header)
}
