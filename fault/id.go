package fault

import "errors"

// Predefined errors for Id parsing.
var (
	// ErrInvalidIdFormat indicates that the string representation of an Id
	// is not a positive decimal object id.
	ErrInvalidIdFormat = errors.New("invalid id format")

	// ErrInvalidObjectId indicates an object id that is zero or negative.
	ErrInvalidObjectId = errors.New("invalid object_id in id")
)
