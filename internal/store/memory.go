package store

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory is an in-process Store. Ids are monotonic ULIDs so insertion
// order and id order agree.
type Memory struct {
	mu      sync.RWMutex
	data    map[string]map[string]Record
	order   map[string][]string
	entropy io.Reader
	now     func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		data:    make(map[string]map[string]Record),
		order:   make(map[string][]string),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (m *Memory) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}

func (m *Memory) Create(_ context.Context, entity string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	out := copyRecord(rec)
	if out == nil {
		out = Record{}
	}
	id, _ := out["id"].(string)
	if id == "" {
		id = m.newID(now)
	}
	out["id"] = id
	out["createdAt"] = now.Format(time.RFC3339Nano)
	out["updatedAt"] = now.Format(time.RFC3339Nano)

	bucket := m.data[entity]
	if bucket == nil {
		bucket = make(map[string]Record)
		m.data[entity] = bucket
	}
	if _, exists := bucket[id]; !exists {
		m.order[entity] = append(m.order[entity], id)
	}
	bucket[id] = out
	return copyRecord(out), nil
}

func (m *Memory) Get(_ context.Context, entity, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[entity][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *Memory) GetMany(_ context.Context, entity string, ids []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(ids))
	for i, id := range ids {
		out[i] = copyRecord(m.data[entity][id])
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, entity, id string, patch Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[entity][id]
	if !ok {
		return nil, ErrNotFound
	}
	next := copyRecord(rec)
	for k, v := range patch {
		switch k {
		case "id", "createdAt", "updatedAt":
			continue
		}
		next[k] = v
	}
	next["updatedAt"] = m.now().UTC().Format(time.RFC3339Nano)
	m.data[entity][id] = next
	return copyRecord(next), nil
}

func (m *Memory) Delete(_ context.Context, entity, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[entity][id]; !ok {
		return false, nil
	}
	delete(m.data[entity], id)
	ids := m.order[entity]
	for i, v := range ids {
		if v == id {
			m.order[entity] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) Find(_ context.Context, entity string, q Query) (Page, error) {
	q = q.Normalize()
	field, desc, err := parseSort(q.Sort)
	if err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	var all []Record
	for _, id := range m.order[entity] {
		rec := m.data[entity][id]
		if matches(rec, q.Filter) {
			all = append(all, copyRecord(rec))
		}
	}
	m.mu.RUnlock()

	if field != "" {
		sortRecords(all, field, desc)
	}
	page := Page{Total: len(all), Items: []Record{}}
	start := q.Offset()
	if start >= len(all) {
		return page, nil
	}
	end := min(start+q.Limit, len(all))
	page.Items = all[start:end]
	return page, nil
}
