package service

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/guyvdb/gestioneau/dyno"
)

type Order struct {
	Property string
	Desc     bool
}

// Pageable selects a window of a listing. A zero Size means unpaged.
type Pageable struct {
	Page int
	Size int
	Sort []Order
}

func (p Pageable) Paged() bool {
	return p.Size > 0
}

// Offset is the index of the first row of the page. A page whose offset
// does not fit in an int yields math.MaxInt, which is past every listing.
func (p Pageable) Offset() int {
	if !p.Paged() || p.Page <= 0 {
		return 0
	}
	if p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

// ParseOrder reads a "property,asc|desc" sort parameter. The direction
// defaults to ascending.
func ParseOrder(s string) (Order, bool) {
	prop, dir, _ := strings.Cut(s, ",")
	prop = strings.TrimSpace(prop)
	if prop == "" {
		return Order{}, false
	}
	return Order{Property: prop, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}, true
}

// sortRecords orders records by p.Sort and then by id. Absent values sort
// before present ones.
func sortRecords(records []*dyno.Record, orders []Order) {
	slices.SortStableFunc(records, func(a, b *dyno.Record) int {
		for _, o := range orders {
			var c int
			if o.Property == "id" {
				c = cmp.Compare(a.ObjectId(), b.ObjectId())
			} else {
				av, aok := a.Get(o.Property)
				bv, bok := b.Get(o.Property)
				c = compareValues(av, aok, bv, bok)
			}
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ObjectId(), b.ObjectId())
	})
}

func compareValues(a any, aok bool, b any, bok bool) int {
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return 0
}

func window[T any](items []T, p Pageable) []T {
	if !p.Paged() {
		return items
	}
	start := p.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + min(p.Size, len(items)-start)
	return items[start:end]
}
