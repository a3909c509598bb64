// Package schema describes entity types: their names, REST collection and
// typed fields. One descriptor drives storage, mapping, indexing and HTTP for
// every entity.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	String Kind = iota
	Integer
	Long
	Float
	Instant
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Long:
		return "long"
	case Float:
		return "float"
	case Instant:
		return "instant"
	}
	return "unknown"
}

type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

type Entity struct {
	Name       string
	Collection string
	Fields     []Field
	BackRefs   []BackRef
}

// BackRef is a reference field of another entity that points at this one.
// Listing with ?filter=<Filter> returns the rows no such field points at.
type BackRef struct {
	Filter string
	Entity string
	Field  string
}

// BackRef returns the back reference selected by a list filter.
func (e *Entity) BackRef(filter string) (BackRef, bool) {
	for _, b := range e.BackRefs {
		if b.Filter == filter {
			return b, true
		}
	}
	return BackRef{}, false
}

// AppPrefix is prepended to entity names in client facing alerts.
const AppPrefix = "gestioneau"

// AlertName is the entity name used in alert and error headers.
func (e *Entity) AlertName() string {
	return AppPrefix + e.Name
}

// Field returns the named field.
func (e *Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields lists the names of fields that must be present.
func (e *Entity) RequiredFields() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Decode converts a wire value into the canonical Go value of the field:
// string, int64, float64 or time.Time in UTC.
func (f Field) Decode(v any) (any, error) {
	switch f.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, f.mismatch(v)
		}
		return s, nil
	case Integer:
		n, err := f.decodeInt(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%s: %d is out of range for integer", f.Name, n)
		}
		return n, nil
	case Long:
		return f.decodeInt(v)
	case Float:
		return f.decodeFloat(v)
	case Instant:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not an RFC 3339 instant", f.Name, t)
			}
			return parsed.UTC(), nil
		}
		return nil, f.mismatch(v)
	}
	return nil, fmt.Errorf("%s: unknown kind %d", f.Name, f.Kind)
}

// Encode converts a canonical value into its JSON and CBOR wire form.
func (f Field) Encode(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// Text renders a canonical value for full text indexing.
func (f Field) Text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func (f Field) decodeInt(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %s is not a whole number", f.Name, n.String())
		}
		return i, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%s: %d overflows long", f.Name, n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("%s: %v is not a whole number", f.Name, n)
		}
		return int64(n), nil
	}
	return 0, f.mismatch(v)
}

func (f Field) decodeFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s: %s is not a number", f.Name, n.String())
		}
		return x, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case int:
		return float64(n), nil
	}
	return 0, f.mismatch(v)
}

func (f Field) mismatch(v any) error {
	return fmt.Errorf("%s: expected %s, got %T", f.Name, f.Kind, v)
}

// Snake turns a camel case name into snake case, e.g. "CentreRegroupement"
// into "centre_regroupement".
func Snake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
