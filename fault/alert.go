package fault

import (
	"errors"
	"net/http"
)

// Error keys understood by API clients.
const (
	KeyIdExists   = "idexists"
	KeyIdNull     = "idnull"
	KeyIdInvalid  = "idinvalid"
	KeyIdNotFound = "idnotfound"
)

// AlertError is a request rejection that carries the entity it concerns and
// a stable error key. Clients translate the key, so it never changes.
type AlertError struct {
	Status     int
	Message    string
	EntityName string
	ErrorKey   string
}

func (e *AlertError) Error() string {
	return e.Message + " (" + e.EntityName + "." + e.ErrorKey + ")"
}

// BadRequest builds a 400 alert.
func BadRequest(message, entityName, errorKey string) *AlertError {
	return &AlertError{
		Status:     http.StatusBadRequest,
		Message:    message,
		EntityName: entityName,
		ErrorKey:   errorKey,
	}
}

// AsAlert unwraps err into an *AlertError.
func AsAlert(err error) (*AlertError, bool) {
	var a *AlertError
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}
