package store

import (
	"fmt"
	"log/slog"
)

// As casts item to T. A nil item or a mismatching type yields the zero T.
func As[T Storable](item Storable) T {
	var zeroT T
	if item == nil {
		slog.Warn("store.As: item is nil")
		return zeroT
	}
	typedItem, ok := item.(T)
	if !ok {
		slog.Warn("store.As: item is not of the expected type", "expected", fmt.Sprintf("%T", zeroT), "actual", fmt.Sprintf("%T", item))
		return zeroT
	}
	return typedItem
}

// GetAs loads id from s and casts the result to T.
func GetAs[T Storable](s Store, id *Id) (T, error) {
	var zeroT T
	item, err := s.Get(id)
	if err != nil {
		return zeroT, err
	}
	return As[T](item), nil
}

// AllAs casts every item to T. Unlike As, a mismatch is an error because a
// partially typed slice is of no use to callers.
func AllAs[T Storable](items []Storable) ([]T, error) {
	typedItems := make([]T, 0, len(items))
	var zeroT T

	for i, item := range items {
		typedItem, ok := item.(T)
		if !ok {
			return nil, fmt.Errorf("store.AllAs: item at index %d (type %T) cannot be cast to %T", i, item, zeroT)
		}
		typedItems = append(typedItems, typedItem)
	}
	return typedItems, nil
}

// GetAllAs loads every row of typeId from s, in id order, as T.
func GetAllAs[T Storable](s Store, typeId int64) ([]T, error) {
	storables, err := s.GetAll(typeId)
	if err != nil {
		return nil, fmt.Errorf("store.GetAllAs: type %d: %w", typeId, err)
	}
	return AllAs[T](storables)
}
