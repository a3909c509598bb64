// Package searchtest provides a testify mock of search.Index.
package searchtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
)

var _ search.Index = (*MockIndex)(nil)

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Save(ctx context.Context, dto *dyno.DTO) error {
	args := m.Called(ctx, dto)
	return args.Error(0)
}

func (m *MockIndex) DeleteById(ctx context.Context, entity *schema.Entity, id int64) error {
	args := m.Called(ctx, entity, id)
	return args.Error(0)
}

func (m *MockIndex) Search(ctx context.Context, entity *schema.Entity, query string, offset, limit int) ([]*dyno.DTO, error) {
	args := m.Called(ctx, entity, query, offset, limit)
	if dtos, ok := args.Get(0).([]*dyno.DTO); ok {
		return dtos, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIndex) Count(ctx context.Context, entity *schema.Entity) (int64, error) {
	args := m.Called(ctx, entity)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIndex) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockIndex) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ForEntity matches calls concerning the named entity.
func ForEntity(name string) any {
	return mock.MatchedBy(func(e *schema.Entity) bool { return e.Name == name })
}

// DTOWithId matches a DTO carrying id.
func DTOWithId(id int64) any {
	return mock.MatchedBy(func(d *dyno.DTO) bool { return d.Id != nil && *d.Id == id })
}
