package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
	"github.com/guyvdb/gestioneau/store"
)

// Service is the CRUD surface of one entity type.
type Service struct {
	Entity *schema.Entity
	Mapper *dyno.Mapper

	store store.Store
	index search.Index
	wt    *WriteThrough
}

func New(entity *schema.Entity, typeId int64, s store.Store, idx search.Index, wt *WriteThrough) *Service {
	return &Service{
		Entity: entity,
		Mapper: dyno.NewMapper(entity, typeId),
		store:  s,
		index:  idx,
		wt:     wt,
	}
}

func (s *Service) id(objectId int64) *store.Id {
	return store.NewId(s.Mapper.TypeId, objectId)
}

// Save validates and persists dto. Without an id a new row is created,
// with one the row is overwritten.
func (s *Service) Save(ctx context.Context, dto *dyno.DTO) (*dyno.DTO, error) {
	slog.Debug("Request to save", "entity", s.Entity.Name, "dto", dto)

	r := s.Mapper.ToEntity(dto)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.wt.Persist(ctx, s.Mapper, r); err != nil {
		return nil, fmt.Errorf("save %s: %w", s.Entity.Name, err)
	}
	return s.Mapper.ToDTO(r), nil
}

// Validate checks dto against the required fields of the entity without
// touching the store.
func (s *Service) Validate(dto *dyno.DTO) error {
	return s.Mapper.ToEntity(dto).Validate()
}

// PartialUpdate merges the present fields of dto into the stored row. It
// returns nil when no row has dto's id.
func (s *Service) PartialUpdate(ctx context.Context, dto *dyno.DTO) (*dyno.DTO, error) {
	slog.Debug("Request to partially update", "entity", s.Entity.Name, "dto", dto)

	if dto.Id == nil {
		return nil, fault.ErrIdIsNil
	}
	existing, err := s.load(*dto.Id)
	if err != nil || existing == nil {
		return nil, err
	}

	s.Mapper.Merge(existing, dto)
	if err := existing.Validate(); err != nil {
		return nil, err
	}
	if err := s.wt.Persist(ctx, s.Mapper, existing); err != nil {
		return nil, fmt.Errorf("update %s: %w", s.Entity.Name, err)
	}
	return s.Mapper.ToDTO(existing), nil
}

// FindAll lists rows in id order unless p sorts them otherwise.
func (s *Service) FindAll(ctx context.Context, p Pageable) ([]*dyno.DTO, error) {
	slog.Debug("Request to get all", "entity", s.Entity.Name, "page", p.Page, "size", p.Size)

	records, err := store.GetAllAs[*dyno.Record](s.store, s.Mapper.TypeId)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", s.Entity.Name, err)
	}
	if len(p.Sort) > 0 {
		sortRecords(records, p.Sort)
	}
	return s.Mapper.ToDTOs(window(records, p)), nil
}

// FindAllUnreferenced lists, in id order, the rows whose id is not the value
// of field in any row of by. Rows of by without the field reference nothing.
func (s *Service) FindAllUnreferenced(ctx context.Context, by *Service, field string) ([]*dyno.DTO, error) {
	slog.Debug("Request to get all unreferenced", "entity", s.Entity.Name, "by", by.Entity.Name, "field", field)

	referrers, err := store.GetAllAs[*dyno.Record](s.store, by.Mapper.TypeId)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", by.Entity.Name, err)
	}
	referenced := make(map[int64]struct{}, len(referrers))
	for _, r := range referrers {
		if v, ok := r.Get(field); ok {
			if id, ok := v.(int64); ok {
				referenced[id] = struct{}{}
			}
		}
	}

	records, err := store.GetAllAs[*dyno.Record](s.store, s.Mapper.TypeId)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", s.Entity.Name, err)
	}
	unreferenced := make([]*dyno.Record, 0, len(records))
	for _, r := range records {
		if _, ok := referenced[r.ObjectId()]; !ok {
			unreferenced = append(unreferenced, r)
		}
	}
	return s.Mapper.ToDTOs(unreferenced), nil
}

func (s *Service) CountAll(ctx context.Context) (int64, error) {
	return s.store.Count(s.Mapper.TypeId)
}

// FindOne returns nil when the id is unknown.
func (s *Service) FindOne(ctx context.Context, id int64) (*dyno.DTO, error) {
	slog.Debug("Request to get", "entity", s.Entity.Name, "id", id)

	r, err := s.load(id)
	if err != nil || r == nil {
		return nil, err
	}
	return s.Mapper.ToDTO(r), nil
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.store.Exists(s.id(id))
}

// Delete removes id from the store and the mirror. Unknown ids are not an
// error.
func (s *Service) Delete(ctx context.Context, id int64) error {
	slog.Debug("Request to delete", "entity", s.Entity.Name, "id", id)

	if err := s.wt.Remove(ctx, s.Entity, s.id(id)); err != nil {
		return fmt.Errorf("delete %s %d: %w", s.Entity.Name, id, err)
	}
	return nil
}

// Search queries the mirror only. Results come back in id order.
func (s *Service) Search(ctx context.Context, query string, p Pageable) ([]*dyno.DTO, error) {
	slog.Debug("Request to search", "entity", s.Entity.Name, "query", query, "page", p.Page, "size", p.Size)

	limit := 0
	if p.Paged() {
		limit = p.Size
	}
	return s.index.Search(ctx, s.Entity, query, p.Offset(), limit)
}

// SearchCount is the number of documents in the mirror for this entity.
func (s *Service) SearchCount(ctx context.Context) (int64, error) {
	return s.index.Count(ctx, s.Entity)
}

func (s *Service) load(objectId int64) (*dyno.Record, error) {
	r, err := store.GetAs[*dyno.Record](s.store, s.id(objectId))
	if errors.Is(err, fault.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %d: %w", s.Entity.Name, objectId, err)
	}
	return r, nil
}
