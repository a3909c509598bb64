package fault

import "errors"

var (
	// ErrInvalidQuery is returned by a search index that cannot parse the
	// free-text query it was given.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrIndexUnavailable wraps transport level failures of a search index.
	ErrIndexUnavailable = errors.New("search index unavailable")
)
