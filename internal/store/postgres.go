package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/oklog/ulid/v2"
)

const recordsTable = "entity_records"

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + recordsTable + ` (
	entity     TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity, id)
)`

// Postgres stores every entity in one JSONB document table.
type Postgres struct {
	db *sql.DB

	mu      sync.Mutex
	entropy io.Reader
}

// OpenPostgres connects with the pgx driver, tunes the pool and makes
// sure the records table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &Postgres{db: db, entropy: ulid.Monotonic(rand.Reader, 0)}, nil
}

// Close releases the pool.
func (p *Postgres) Close() error { return p.db.Close() }

// IndexSpec describes an expression index over document fields.
type IndexSpec struct {
	Name   string
	Fields []string
	Unique bool
}

// EnsureIndexes creates the declared indexes of entity.
func (p *Postgres) EnsureIndexes(ctx context.Context, entity string, specs []IndexSpec) error {
	for _, idx := range specs {
		stmt, err := indexStatement(entity, idx)
		if err != nil {
			return err
		}
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index for %s: %w", entity, err)
		}
	}
	return nil
}

func indexStatement(entity string, idx IndexSpec) (string, error) {
	if !fieldPattern.MatchString(entity) {
		return "", fmt.Errorf("store: invalid entity name %q", entity)
	}
	if len(idx.Fields) == 0 {
		return "", fmt.Errorf("store: index on %s has no fields", entity)
	}
	exprs := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		if !fieldPattern.MatchString(f) {
			return "", fmt.Errorf("store: invalid index field %q", f)
		}
		exprs[i] = "(data->>'" + f + "')"
	}
	name := idx.Name
	if name == "" {
		name = strings.ToLower(entity) + "_" + strings.Join(idx.Fields, "_")
	}
	if !fieldPattern.MatchString(name) {
		return "", fmt.Errorf("store: invalid index name %q", name)
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS idx_%s ON %s (%s) WHERE entity = '%s'",
		unique, name, recordsTable, strings.Join(exprs, ", "), entity), nil
}

func (p *Postgres) newID(t time.Time) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), p.entropy).String()
}

func (p *Postgres) Create(ctx context.Context, entity string, rec Record) (Record, error) {
	now := time.Now().UTC()
	out := copyRecord(rec)
	if out == nil {
		out = Record{}
	}
	id, _ := out["id"].(string)
	if id == "" {
		id = p.newID(now)
	}
	out["id"] = id
	out["createdAt"] = now.Format(time.RFC3339Nano)
	out["updatedAt"] = now.Format(time.RFC3339Nano)

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", entity, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO `+recordsTable+` (entity, id, data, created_at, updated_at) VALUES ($1, $2, $3::jsonb, $4, $4)`,
		entity, id, string(data), now)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", entity, err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, entity, id string) (Record, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM `+recordsTable+` WHERE entity = $1 AND id = $2`, entity, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", entity, err)
	}
	return decodeRecord(raw)
}

func (p *Postgres) GetMany(ctx context.Context, entity string, ids []string) ([]Record, error) {
	out := make([]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, data FROM `+recordsTable+` WHERE entity = $1 AND id = ANY($2)`, entity, ids)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", entity, err)
	}
	defer rows.Close()

	byID := make(map[string]Record, len(ids))
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		byID[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		out[i] = copyRecord(byID[id])
	}
	return out, nil
}

func (p *Postgres) Update(ctx context.Context, entity, id string, patch Record) (Record, error) {
	clean := copyRecord(patch)
	for _, k := range []string{"id", "createdAt", "updatedAt"} {
		delete(clean, k)
	}
	now := time.Now().UTC()
	clean["updatedAt"] = now.Format(time.RFC3339Nano)
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", entity, err)
	}
	var raw []byte
	err = p.db.QueryRowContext(ctx,
		`UPDATE `+recordsTable+` SET data = data || $3::jsonb, updated_at = $4 WHERE entity = $1 AND id = $2 RETURNING data`,
		entity, id, string(data), now).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", entity, err)
	}
	return decodeRecord(raw)
}

func (p *Postgres) Delete(ctx context.Context, entity, id string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM `+recordsTable+` WHERE entity = $1 AND id = $2`, entity, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Postgres) Find(ctx context.Context, entity string, q Query) (Page, error) {
	q = q.Normalize()
	countSQL, selectSQL, args, err := buildFind(entity, q)
	if err != nil {
		return Page{}, err
	}
	var page Page
	if err := p.db.QueryRowContext(ctx, countSQL, args[:2]...).Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("count %s: %w", entity, err)
	}
	rows, err := p.db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return Page{}, fmt.Errorf("find %s: %w", entity, err)
	}
	defer rows.Close()
	page.Items = []Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return Page{}, err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, rec)
	}
	return page, rows.Err()
}

// buildFind renders the count and page queries of q. The first two args
// are shared by both statements.
func buildFind(entity string, q Query) (countSQL, selectSQL string, args []any, err error) {
	field, desc, err := parseSort(q.Sort)
	if err != nil {
		return "", "", nil, err
	}
	filter := q.Filter
	if filter == nil {
		filter = map[string]any{}
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode filter: %w", err)
	}
	where := ` FROM ` + recordsTable + ` WHERE entity = $1 AND data @> $2::jsonb`
	order := " ORDER BY id"
	if field != "" {
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		order = " ORDER BY data->>'" + field + "' " + dir + ", id"
	}
	countSQL = "SELECT count(*)" + where
	selectSQL = "SELECT data" + where + order + " LIMIT $3 OFFSET $4"
	return countSQL, selectSQL, []any{entity, string(data), q.Limit, q.Offset()}, nil
}

func decodeRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
