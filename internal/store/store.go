// Package store persists entity records for the generated CRUD services.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Record is one entity document. "id", "createdAt" and "updatedAt" are
// maintained by the store.
type Record = map[string]any

// Query selects a page of records.
type Query struct {
	Page   int
	Limit  int
	Sort   string // "field" ascending, "-field" descending
	Filter map[string]any
}

// DefaultLimit applies when a query sets no limit.
const DefaultLimit = 20

// MaxLimit caps the page size.
const MaxLimit = 500

// Normalize clamps page and limit to sane values.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Offset is the number of records skipped before the page.
func (q Query) Offset() int { return (q.Page - 1) * q.Limit }

// Page is the result of Find.
type Page struct {
	Items []Record
	Total int
}

// Store is implemented by every backend.
type Store interface {
	Create(ctx context.Context, entity string, rec Record) (Record, error)
	Get(ctx context.Context, entity, id string) (Record, error)
	// GetMany returns one entry per id, nil for ids that do not exist.
	GetMany(ctx context.Context, entity string, ids []string) ([]Record, error)
	Update(ctx context.Context, entity, id string, patch Record) (Record, error)
	Delete(ctx context.Context, entity, id string) (bool, error)
	Find(ctx context.Context, entity string, q Query) (Page, error)
}

// Indexer is implemented by backends that maintain secondary indexes.
type Indexer interface {
	EnsureIndexes(ctx context.Context, entity string, specs []IndexSpec) error
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseSort splits a sort expression into field and direction.
func parseSort(s string) (field string, desc bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false, nil
	}
	if strings.HasPrefix(s, "-") {
		desc = true
		s = s[1:]
	}
	if !fieldPattern.MatchString(s) {
		return "", false, fmt.Errorf("store: invalid sort field %q", s)
	}
	return s, desc, nil
}

func copyRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func matches(rec Record, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(rec[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func sortRecords(recs []Record, field string, desc bool) {
	sort.SliceStable(recs, func(i, j int) bool {
		c := compareValues(recs[i][field], recs[j][field])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
