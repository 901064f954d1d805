package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/herd-1807-capstone/api-routes/internal/db"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
)

// Postgres stores the tree in a nodes table keyed by absolute path, with
// per-collection append sequences so Append keys stay monotonic.
type Postgres struct {
	db db.Querier
}

func NewPostgres(q db.Querier) *Postgres {
	return &Postgres{db: q}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			path   TEXT PRIMARY KEY,
			parent TEXT NOT NULL,
			value  JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS nodes_parent_idx ON nodes (parent)`,
		`CREATE TABLE IF NOT EXISTS node_seqs (
			parent TEXT PRIMARY KEY,
			seq    BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return apperr.Unavailable("migrate store", err)
		}
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, path string, dest any) error {
	var raw []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM nodes WHERE path=$1`, normalize(path)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAbsent
	}
	if err != nil {
		return apperr.Unavailable("get "+path, err)
	}
	return json.Unmarshal(raw, dest)
}

func (p *Postgres) Children(ctx context.Context, collection string) ([]Entry, error) {
	rows, err := p.db.Query(ctx, `
		SELECT path, value FROM nodes WHERE parent=$1 ORDER BY path
	`, normalize(collection))
	if err != nil {
		return nil, apperr.Unavailable("children "+collection, err)
	}
	return scanEntries(rows)
}

func (p *Postgres) Query(ctx context.Context, collection, field, equals string) ([]Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if field == "" {
		rows, err = p.db.Query(ctx, `
			SELECT path, value FROM nodes WHERE parent=$1 AND value = to_jsonb($2::text) ORDER BY path
		`, normalize(collection), equals)
	} else {
		rows, err = p.db.Query(ctx, `
			SELECT path, value FROM nodes WHERE parent=$1 AND value->>$2 = $3 ORDER BY path
		`, normalize(collection), field, equals)
	}
	if err != nil {
		return nil, apperr.Unavailable("query "+collection, err)
	}
	return scanEntries(rows)
}

func (p *Postgres) AtomicUpdate(ctx context.Context, writes map[string]any) error {
	paths := make([]string, 0, len(writes))
	for path := range writes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return apperr.Unavailable("begin update", err)
	}
	defer tx.Rollback(ctx)

	for _, path := range paths {
		norm := normalize(path)
		switch v := writes[path].(type) {
		case nil:
			_, err = tx.Exec(ctx, `DELETE FROM nodes WHERE path=$1 OR path LIKE $2`, norm, norm+"/%")
		case Patch:
			var raw []byte
			raw, err = json.Marshal(v)
			if err != nil {
				return apperr.Invalid(fmt.Sprintf("encode %s: %v", path, err))
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO nodes (path, parent, value)
				VALUES ($1, $2, jsonb_strip_nulls($3::jsonb))
				ON CONFLICT (path) DO UPDATE SET value = jsonb_strip_nulls(nodes.value || $3::jsonb)
			`, norm, parentOf(norm), raw)
		default:
			var raw []byte
			raw, err = json.Marshal(v)
			if err != nil {
				return apperr.Invalid(fmt.Sprintf("encode %s: %v", path, err))
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO nodes (path, parent, value)
				VALUES ($1, $2, $3::jsonb)
				ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value
			`, norm, parentOf(norm), raw)
		}
		if err != nil {
			return apperr.Unavailable("update "+path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Unavailable("commit update", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, collection string, value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", apperr.Invalid(fmt.Sprintf("encode %s: %v", collection, err))
	}
	coll := normalize(collection)

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return "", apperr.Unavailable("begin append", err)
	}
	defer tx.Rollback(ctx)

	var seq int64
	err = tx.QueryRow(ctx, `
		INSERT INTO node_seqs (parent, seq) VALUES ($1, 1)
		ON CONFLICT (parent) DO UPDATE SET seq = node_seqs.seq + 1
		RETURNING seq
	`, coll).Scan(&seq)
	if err != nil {
		return "", apperr.Unavailable("append seq "+collection, err)
	}

	key := appendKey(seq)
	_, err = tx.Exec(ctx, `
		INSERT INTO nodes (path, parent, value) VALUES ($1, $2, $3::jsonb)
	`, coll+"/"+key, coll, raw)
	if err != nil {
		return "", apperr.Unavailable("append "+collection, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", apperr.Unavailable("commit append", err)
	}
	return key, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			path string
			raw  []byte
		)
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, apperr.Unavailable("scan node", err)
		}
		entries = append(entries, Entry{Key: Key(path), Value: raw})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("iterate nodes", err)
	}
	return entries, nil
}

func parentOf(path string) string {
	return normalize(path[:len(path)-len(Key(path))-1])
}
