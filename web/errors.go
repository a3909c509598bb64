package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lmittmann/tint"

	"github.com/guyvdb/gestioneau/fault"
)

// Problem is the JSON error body.
type Problem struct {
	Title       string             `json:"title"`
	Status      int                `json:"status"`
	Path        string             `json:"path,omitempty"`
	Message     string             `json:"message,omitempty"`
	EntityName  string             `json:"entityName,omitempty"`
	ErrorKey    string             `json:"errorKey,omitempty"`
	Params      string             `json:"params,omitempty"`
	FieldErrors []fault.FieldError `json:"fieldErrors,omitempty"`
}

func respondProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	p.Path = r.URL.Path
	w.Header().Set("Content-Type", "application/problem+json")
	respondJSON(w, p.Status, p)
}

func respondStatus(w http.ResponseWriter, r *http.Request, status int) {
	respondProblem(w, r, Problem{
		Title:   http.StatusText(status),
		Status:  status,
		Message: "error.http." + strconv.Itoa(status),
	})
}

// respondError maps err onto a problem response. Anything unknown is a 500
// and is logged; client errors are not.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, entityName string, err error) {
	var verr *fault.ValidationError
	if alert, ok := fault.AsAlert(err); ok {
		h.alerts.Failure(w, alert.EntityName, alert.ErrorKey)
		respondProblem(w, r, Problem{
			Title:      alert.Message,
			Status:     alert.Status,
			Message:    "error." + alert.ErrorKey,
			EntityName: alert.EntityName,
			ErrorKey:   alert.ErrorKey,
			Params:     alert.EntityName,
		})
		return
	}
	switch {
	case errors.As(err, &verr):
		respondProblem(w, r, Problem{
			Title:       "Method argument not valid",
			Status:      http.StatusBadRequest,
			Message:     "error.validation",
			EntityName:  entityName,
			FieldErrors: verr.Fields,
		})
	case errors.Is(err, fault.ErrMalformedPayload):
		respondProblem(w, r, Problem{
			Title:      "Malformed request body",
			Status:     http.StatusBadRequest,
			Message:    "error.http.400",
			EntityName: entityName,
		})
	case errors.Is(err, fault.ErrInvalidQuery):
		respondProblem(w, r, Problem{
			Title:      "Invalid search query",
			Status:     http.StatusBadRequest,
			Message:    "error.http.400",
			EntityName: entityName,
		})
	case errors.Is(err, fault.ErrInvalidIdFormat), errors.Is(err, fault.ErrInvalidObjectId):
		respondProblem(w, r, Problem{
			Title:      "Invalid id",
			Status:     http.StatusBadRequest,
			Message:    "error.http.400",
			EntityName: entityName,
		})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", RequestID(r.Context()), tint.Err(err))
		respondStatus(w, r, http.StatusInternalServerError)
	}
}
