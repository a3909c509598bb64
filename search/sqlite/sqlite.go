// Package sqlite mirrors entities into SQLite FTS4 tables, one per entity.
// Every field is its own FTS column so "field:term" queries work.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
)

var _ search.Index = (*Index)(nil)

type Index struct {
	db *sql.DB
}

// Open opens the SQLite file at dsn and creates a search table for every
// entity that does not have one yet.
func Open(dsn string, entities []*schema.Entity) (*Index, error) {
	slog.Debug("sqlite.Open - open search index", "dsn", dsn)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open search database: %w", err)
	}
	// FTS writes take a database lock; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db}
	for _, e := range entities {
		if _, err := db.Exec(createTable(e)); err != nil {
			db.Close()
			return nil, fmt.Errorf("create search table for %s: %w", e.Name, err)
		}
	}
	return idx, nil
}

func tableName(e *schema.Entity) string {
	return schema.Snake(e.Name) + "_search"
}

func columns(e *schema.Entity) []string {
	cols := make([]string, 0, len(e.Fields)+2)
	cols = append(cols, "id")
	for _, f := range e.Fields {
		cols = append(cols, f.Name)
	}
	return append(cols, "doc")
}

func createTable(e *schema.Entity) string {
	return fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts4(%s, notindexed=doc)",
		tableName(e), strings.Join(columns(e), ", "))
}

func (i *Index) Save(ctx context.Context, dto *dyno.DTO) error {
	if dto.Id == nil {
		return fault.ErrIdIsNil
	}
	e := dto.Entity

	doc, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrMarshalFailed, err)
	}

	cols := columns(e)
	args := make([]any, 0, len(cols)+1)
	args = append(args, *dto.Id, *dto.Id)
	for _, f := range e.Fields {
		if v, ok := dto.Values[f.Name]; ok {
			args = append(args, f.Text(v))
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, string(doc))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (docid, %s) VALUES (%s)", tableName(e), strings.Join(cols, ", "), placeholders)

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+tableName(e)+" WHERE docid = ?", *dto.Id); err != nil {
		return fmt.Errorf("replace %s %d: %w", e.Name, *dto.Id, err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("index %s %d: %w", e.Name, *dto.Id, err)
	}
	return tx.Commit()
}

func (i *Index) DeleteById(ctx context.Context, e *schema.Entity, id int64) error {
	_, err := i.db.ExecContext(ctx, "DELETE FROM "+tableName(e)+" WHERE docid = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %d from search index: %w", e.Name, id, err)
	}
	return nil
}

// Search matches query against the FTS table in id order. The query uses
// SQLite's FTS syntax: terms are ANDed and "column:term" restricts a term to
// one field.
func (i *Index) Search(ctx context.Context, e *schema.Entity, query string, offset, limit int) ([]*dyno.DTO, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	if search.MatchAll(query) {
		rows, err = i.db.QueryContext(ctx,
			"SELECT doc FROM "+tableName(e)+" ORDER BY docid LIMIT ? OFFSET ?", limit, offset)
	} else {
		rows, err = i.db.QueryContext(ctx,
			"SELECT doc FROM "+tableName(e)+" WHERE "+tableName(e)+" MATCH ? ORDER BY docid LIMIT ? OFFSET ?",
			strings.TrimSpace(query), limit, offset)
	}
	if err != nil {
		return nil, queryError(query, err)
	}
	defer rows.Close()

	results := make([]*dyno.DTO, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		dto, err := dyno.DecodeDTO(e, []byte(doc))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrUnmarshalFailed, err)
		}
		results = append(results, dto)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(query, err)
	}
	return results, nil
}

func queryError(query string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrError {
		return fmt.Errorf("%w %q: %s", fault.ErrInvalidQuery, query, serr.Error())
	}
	return err
}

func (i *Index) Count(ctx context.Context, e *schema.Entity) (int64, error) {
	var n int64
	err := i.db.QueryRowContext(ctx, "SELECT count(*) FROM "+tableName(e)).Scan(&n)
	return n, err
}

func (i *Index) Ping(ctx context.Context) error {
	return i.db.PingContext(ctx)
}

func (i *Index) Close() error {
	slog.Debug("sqlite.Index.Close() - close search index")
	return i.db.Close()
}
