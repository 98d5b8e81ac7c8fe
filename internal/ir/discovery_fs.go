package ir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystemDiscovery lists every *.graphql file below a root directory in
// lexical walk order.
type FileSystemDiscovery struct {
	origin Origin
	paths  map[SourceID]string
	metas  []*SourceMetadata
}

// NewFileSystemDiscovery walks rootDir. A missing rootDir yields an empty
// discovery. skip, when set, excludes files by absolute path.
func NewFileSystemDiscovery(ctx context.Context, rootDir string, origin Origin, skip func(path string) bool) (*FileSystemDiscovery, error) {
	d := &FileSystemDiscovery{origin: origin, paths: make(map[SourceID]string)}
	if _, err := os.Stat(rootDir); os.IsNotExist(err) {
		return d, nil
	}

	err := filepath.WalkDir(rootDir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != ".graphql" {
			return nil
		}
		if skip != nil && skip(path) {
			return nil
		}
		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}
		d.add(path, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory %q: %w", rootDir, err)
	}
	return d, nil
}

// NewFileListDiscovery lists the given files in order. Names are reported
// relative to baseDir.
func NewFileListDiscovery(baseDir string, origin Origin, files []string) *FileListDiscovery {
	d := &FileSystemDiscovery{origin: origin, paths: make(map[SourceID]string)}
	for _, path := range files {
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			rel = path
		}
		d.add(path, filepath.ToSlash(rel))
	}
	return &FileListDiscovery{d}
}

// FileListDiscovery is a FileSystemDiscovery over an explicit file list.
type FileListDiscovery struct{ *FileSystemDiscovery }

func (d *FileSystemDiscovery) add(path, relPath string) {
	id := SourceID(string(d.origin) + ":" + relPath)
	if _, dup := d.paths[id]; dup {
		return
	}
	d.paths[id] = path
	d.metas = append(d.metas, &SourceMetadata{
		ID:       id,
		Name:     filepath.Base(relPath),
		FilePath: path,
		Origin:   d.origin,
	})
}

func (d *FileSystemDiscovery) ListMetadata(ctx context.Context) ([]*SourceMetadata, error) {
	return append([]*SourceMetadata(nil), d.metas...), nil
}

func (d *FileSystemDiscovery) ReadSDL(ctx context.Context, id SourceID) (string, error) {
	fp, ok := d.paths[id]
	if !ok {
		return "", fmt.Errorf("source %q not found", id)
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return "", fmt.Errorf("failed to read SDL for %q: %w", id, err)
	}
	return string(content), nil
}
