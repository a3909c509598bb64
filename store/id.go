package store

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/guyvdb/gestioneau/fault"
)

// Every object has an Id. TypeId names the registered type, ObjectId is the
// surrogate identifier exposed to API clients.
type Id struct {
	TypeId   int64 `json:"type_id" cbor:"t"`
	ObjectId int64 `json:"object_id" cbor:"o"`
}

func NewId(typeId, objectId int64) *Id {
	return &Id{
		TypeId:   typeId,
		ObjectId: objectId,
	}
}

// ParseObjectId parses the decimal object id used in URLs.
func ParseObjectId(s string) (int64, error) {
	objectId, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w '%s': %w", fault.ErrInvalidIdFormat, s, err)
	}
	if objectId <= 0 {
		return 0, fmt.Errorf("%w: %d", fault.ErrInvalidObjectId, objectId)
	}
	return objectId, nil
}

// Key returns the bucket key of the object. Big endian keeps bbolt cursor
// order equal to numeric id order.
func (id *Id) Key() []byte {
	return objectKey(id.ObjectId)
}

func objectKey(objectId int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(objectId))
	return buf
}

func (id *Id) String() string {
	return fmt.Sprintf("%x-%x", id.TypeId, id.ObjectId)
}
