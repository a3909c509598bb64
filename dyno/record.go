// Package dyno holds the single dynamic record type that stores every entity
// of the catalog, and the DTO mapping around it.
package dyno

import (
	"fmt"
	"log/slog"

	"github.com/fxamacker/cbor/v2"

	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/store"
	"github.com/guyvdb/gestioneau/types"
)

var _ store.Storable = (*Record)(nil)

// Record is one entity row. Values holds only the fields that are present,
// in canonical form (see schema.Field.Decode).
type Record struct {
	Id     *store.Id
	Entity *schema.Entity
	Values map[string]any
}

// encoded is the on-disk shape of a Record.
type encoded struct {
	Id     *store.Id      `cbor:"id"`
	Values map[string]any `cbor:"values"`
}

func NewRecord(entity *schema.Entity) *Record {
	return &Record{
		Entity: entity,
		Values: make(map[string]any),
	}
}

// Register installs a record factory for every entity on the registry.
func Register(r types.Registry, entities []*schema.Entity) {
	for _, e := range entities {
		entity := e
		r.Register(entity.Name, func() store.Storable { return NewRecord(entity) })
	}
}

func (r *Record) GetId() *store.Id {
	return r.Id
}

func (r *Record) SetId(id *store.Id) {
	r.Id = id
}

func (r *Record) GetTypeName() string {
	return r.Entity.Name
}

// ObjectId is the client visible id, 0 until the record is saved.
func (r *Record) ObjectId() int64 {
	if r.Id == nil {
		return 0
	}
	return r.Id.ObjectId
}

func (r *Record) Marshal() ([]byte, error) {
	values := make(map[string]any, len(r.Values))
	for name, v := range r.Values {
		f, ok := r.Entity.Field(name)
		if !ok {
			continue
		}
		values[name] = f.Encode(v)
	}
	return cbor.Marshal(encoded{Id: r.Id, Values: values})
}

// Unmarshal restores a record written by Marshal. Fields no longer part of the
// schema are dropped.
func (r *Record) Unmarshal(data []byte) error {
	var e encoded
	if err := cbor.Unmarshal(data, &e); err != nil {
		return err
	}

	r.Id = e.Id
	r.Values = make(map[string]any, len(e.Values))
	for name, raw := range e.Values {
		f, ok := r.Entity.Field(name)
		if !ok {
			slog.Debug("Record.Unmarshal - dropping unknown field", "entity", r.Entity.Name, "field", name)
			continue
		}
		v, err := f.Decode(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		r.Values[name] = v
	}
	return nil
}

func (r *Record) Get(name string) (any, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Set stores a canonical value. A nil value removes the field.
func (r *Record) Set(name string, v any) {
	if v == nil {
		delete(r.Values, name)
		return
	}
	r.Values[name] = v
}

// Validate reports every required field that is absent.
func (r *Record) Validate() error {
	verr := &fault.ValidationError{Entity: objectName(r.Entity)}
	for _, f := range r.Entity.Fields {
		if !f.Required {
			continue
		}
		if _, ok := r.Values[f.Name]; !ok {
			verr.Add(f.Name, "must not be null")
		}
	}
	return verr.OrNil()
}

func objectName(e *schema.Entity) string {
	if e.Name == "" {
		return "dto"
	}
	b := []byte(e.Name)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b) + "DTO"
}
