package fault

import "errors"

// Errors returned by the primary store.
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrBucketCreateFailed = errors.New("bucket create failed")
	ErrUnmarshalFailed    = errors.New("unmarshal failed")
	ErrMarshalFailed      = errors.New("marshal failed")
	ErrNilStorable        = errors.New("nil storable")
	ErrStorableHasNilId   = errors.New("storable has a nil id")
	ErrIdIsNil            = errors.New("id is nil")
	ErrPutFailed          = errors.New("put failed")
	ErrDeleteFailed       = errors.New("delete failed")
	ErrStoreClosed        = errors.New("store closed")
)
