package dyno

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/store"
)

// DTO is the wire projection of a record. Values holds canonical values of
// the fields present in the payload; a JSON null counts as absent.
type DTO struct {
	Entity *schema.Entity
	Id     *int64
	Values map[string]any
}

// MarshalJSON writes id first, then the present fields in schema order.
func (d *DTO) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"id":`)
	if d.Id == nil {
		buf.WriteString("null")
	} else {
		fmt.Fprintf(&buf, "%d", *d.Id)
	}
	for _, f := range d.Entity.Fields {
		v, ok := d.Values[f.Name]
		if !ok {
			continue
		}
		b, err := json.Marshal(f.Encode(v))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.WriteByte(',')
		buf.WriteString(`"` + f.Name + `":`)
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *DTO) LogValue() slog.Value {
	b, err := d.MarshalJSON()
	if err != nil {
		return slog.StringValue(err.Error())
	}
	return slog.StringValue(string(b))
}

// Mapper converts between DTOs and records of one entity type.
type Mapper struct {
	Entity *schema.Entity
	TypeId int64
}

func NewMapper(entity *schema.Entity, typeId int64) *Mapper {
	return &Mapper{Entity: entity, TypeId: typeId}
}

// Decode parses a JSON object into a DTO of the mapper's entity.
func (m *Mapper) Decode(body []byte) (*DTO, error) {
	return DecodeDTO(m.Entity, body)
}

// DecodeDTO parses a JSON object. Unknown properties are ignored, values of
// the wrong type are reported together as one validation error.
func DecodeDTO(entity *schema.Entity, body []byte) (*DTO, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrMalformedPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", fault.ErrMalformedPayload)
	}

	dto := &DTO{Entity: entity, Values: make(map[string]any)}
	verr := &fault.ValidationError{Entity: objectName(entity)}

	if v, ok := raw["id"]; ok && v != nil {
		n, isNum := v.(json.Number)
		id, err := n.Int64()
		if !isNum || err != nil {
			verr.Add("id", "must be a whole number")
		} else {
			dto.Id = &id
		}
	}

	for _, f := range entity.Fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			continue
		}
		canonical, err := f.Decode(v)
		if err != nil {
			verr.Add(f.Name, err.Error())
			continue
		}
		dto.Values[f.Name] = canonical
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return dto, nil
}

// ToEntity builds a record from a DTO. The record has an id only when the
// DTO carries one.
func (m *Mapper) ToEntity(dto *DTO) *Record {
	r := NewRecord(m.Entity)
	if dto.Id != nil {
		r.Id = store.NewId(m.TypeId, *dto.Id)
	}
	for k, v := range dto.Values {
		r.Values[k] = v
	}
	return r
}

func (m *Mapper) ToDTO(r *Record) *DTO {
	dto := &DTO{Entity: m.Entity, Values: make(map[string]any, len(r.Values))}
	if r.Id != nil {
		id := r.Id.ObjectId
		dto.Id = &id
	}
	for k, v := range r.Values {
		dto.Values[k] = v
	}
	return dto
}

func (m *Mapper) ToDTOs(records []*Record) []*DTO {
	dtos := make([]*DTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, m.ToDTO(r))
	}
	return dtos
}

// Merge copies the fields present in dto onto existing. Absent fields keep
// their stored value.
func (m *Mapper) Merge(existing *Record, dto *DTO) {
	for k, v := range dto.Values {
		existing.Values[k] = v
	}
}
