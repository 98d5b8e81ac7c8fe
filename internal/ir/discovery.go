package ir

import (
	"context"
	"fmt"
)

type SourceMetadata struct {
	ID       SourceID
	Name     string
	FilePath string
	Origin   Origin
}

// Discovery lists SDL sources in merge order and reads their content.
type Discovery interface {
	ListMetadata(ctx context.Context) ([]*SourceMetadata, error)
	ReadSDL(ctx context.Context, id SourceID) (string, error)
}

// Chain concatenates discoveries, preserving each one's order.
type Chain []Discovery

func (c Chain) ListMetadata(ctx context.Context) ([]*SourceMetadata, error) {
	var out []*SourceMetadata
	seen := make(map[SourceID]struct{})
	for _, d := range c {
		metas, err := d.ListMetadata(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range metas {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func (c Chain) ReadSDL(ctx context.Context, id SourceID) (string, error) {
	for _, d := range c {
		metas, err := d.ListMetadata(ctx)
		if err != nil {
			return "", err
		}
		for _, m := range metas {
			if m.ID == id {
				return d.ReadSDL(ctx, id)
			}
		}
	}
	return "", fmt.Errorf("source %q not found", id)
}
