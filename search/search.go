// Package search defines the text search mirror of the primary store. The
// mirror is a derived copy: it is written after the primary store and only
// read by search requests.
package search

import (
	"context"
	"strings"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/schema"
)

// Index is a search mirror gateway.
type Index interface {
	// Save indexes the DTO under its id, replacing any earlier version.
	Save(ctx context.Context, dto *dyno.DTO) error

	// DeleteById removes an id. Unknown ids are not an error.
	DeleteById(ctx context.Context, entity *schema.Entity, id int64) error

	// Search runs a free text query. A limit <= 0 returns every match.
	Search(ctx context.Context, entity *schema.Entity, query string, offset, limit int) ([]*dyno.DTO, error)

	// Count returns the number of indexed documents of an entity.
	Count(ctx context.Context, entity *schema.Entity) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// MatchAll reports whether query selects every document.
func MatchAll(query string) bool {
	q := strings.TrimSpace(query)
	return q == "" || q == "*"
}
