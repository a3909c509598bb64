// Package service sequences every entity write into the primary store and
// then into the search mirror.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
	"github.com/guyvdb/gestioneau/store"
)

// WriteThrough writes to the primary store first and mirrors the result into
// the search index only when the primary write succeeded. The primary result
// alone decides the outcome: mirror failures are logged, never returned, and
// never retried.
type WriteThrough struct {
	store store.Store
	index search.Index

	mu     sync.Mutex
	closed bool
	group  *errgroup.Group // nil when mirroring inline
}

type Option func(*WriteThrough)

// WithAsyncMirror mirrors on a background group of at most workers
// goroutines. Callers block in Persist or Remove while the group is full.
func WithAsyncMirror(workers int) Option {
	return func(w *WriteThrough) {
		g := &errgroup.Group{}
		if workers > 0 {
			g.SetLimit(workers)
		}
		w.group = g
	}
}

func NewWriteThrough(s store.Store, idx search.Index, opts ...Option) *WriteThrough {
	w := &WriteThrough{store: s, index: idx}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Persist saves r, assigning its id when it has none, then mirrors it.
func (w *WriteThrough) Persist(ctx context.Context, m *dyno.Mapper, r *dyno.Record) error {
	if err := w.store.Save(r); err != nil {
		return err
	}

	dto := m.ToDTO(r)
	w.mirror(ctx, "save", r.Entity, *dto.Id, func(ctx context.Context) error {
		return w.index.Save(ctx, dto)
	})
	return nil
}

// Remove deletes id from the primary store, then from the mirror.
func (w *WriteThrough) Remove(ctx context.Context, entity *schema.Entity, id *store.Id) error {
	if err := w.store.Delete(id); err != nil {
		return err
	}

	w.mirror(ctx, "delete", entity, id.ObjectId, func(ctx context.Context) error {
		return w.index.DeleteById(ctx, entity, id.ObjectId)
	})
	return nil
}

func (w *WriteThrough) mirror(ctx context.Context, op string, entity *schema.Entity, id int64, fn func(context.Context) error) {
	// The primary write is already committed; a client hanging up must not
	// abort the mirror half.
	ctx = context.WithoutCancel(ctx)

	run := func() error {
		if err := fn(ctx); err != nil {
			slog.Warn("search mirror failed", "op", op, "entity", entity.Name, "id", id, tint.Err(err))
			return nil
		}
		slog.Debug("search mirror done", "op", op, "entity", entity.Name, "id", id)
		return nil
	}

	w.mu.Lock()
	if w.group != nil && !w.closed {
		// Holding mu keeps Go from racing the Wait in Close.
		w.group.Go(run)
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	_ = run()
}

// Close waits for pending mirror calls. Later calls mirror inline.
func (w *WriteThrough) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	if w.group != nil {
		return w.group.Wait()
	}
	return nil
}
