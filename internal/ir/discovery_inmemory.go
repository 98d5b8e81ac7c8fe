package ir

import (
	"context"
	"fmt"
)

type InMemorySource struct {
	Name    string
	Content string
}

// InMemoryDiscovery serves SDL held in memory, used for module resolvers
// and tests.
type InMemoryDiscovery struct {
	metas    []*SourceMetadata
	contents map[SourceID]string
}

func NewInMemoryDiscovery(origin Origin, srcs []InMemorySource) *InMemoryDiscovery {
	d := &InMemoryDiscovery{contents: make(map[SourceID]string)}
	for _, src := range srcs {
		id := SourceID(string(origin) + ":" + src.Name)
		if _, dup := d.contents[id]; dup {
			continue
		}
		d.metas = append(d.metas, &SourceMetadata{
			ID:       id,
			Name:     src.Name,
			FilePath: src.Name,
			Origin:   origin,
		})
		d.contents[id] = src.Content
	}
	return d
}

func (d *InMemoryDiscovery) ListMetadata(ctx context.Context) ([]*SourceMetadata, error) {
	return append([]*SourceMetadata(nil), d.metas...), nil
}

func (d *InMemoryDiscovery) ReadSDL(ctx context.Context, id SourceID) (string, error) {
	content, exists := d.contents[id]
	if !exists {
		return "", fmt.Errorf("source %q not found", id)
	}
	return content, nil
}
