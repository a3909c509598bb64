// Package web exposes every catalog entity as a REST collection.
package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/guyvdb/gestioneau/service"
)

type Config struct {
	// AppName prefixes alert headers and keys, e.g. "gestioneauApp".
	AppName string
	// BasePath is mounted in front of every route. Empty or "/" means none.
	BasePath string
}

// Check probes one dependency for the health endpoint.
type Check func(ctx context.Context) error

// Handler owns the router and the per collection resources.
type Handler struct {
	router   *mux.Router
	alerts   Alerts
	basePath string
	checks   map[string]Check
	byEntity map[string]*service.Service
}

// NewHandler routes every service under {base}/api/{collection}.
//
//	POST   /api/{c}            create
//	GET    /api/{c}            list (page, size, sort, filter)
//	GET    /api/{c}/{id}       get one
//	PUT    /api/{c}/{id}       full update
//	PATCH  /api/{c}/{id}       merge-patch update
//	DELETE /api/{c}/{id}       delete
//	GET    /api/_search/{c}    search the mirror (query, page, size)
//	GET    /management/health  health
func NewHandler(cfg Config, services []*service.Service, checks map[string]Check) *Handler {
	base := strings.TrimRight(cfg.BasePath, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}

	h := &Handler{
		router:   mux.NewRouter(),
		alerts:   Alerts{AppName: cfg.AppName},
		basePath: base,
		checks:   checks,
		byEntity: make(map[string]*service.Service, len(services)),
	}

	r := h.router
	if base != "" {
		r = h.router.PathPrefix(base).Subrouter()
	}
	r.Use(requestIDMiddleware, requestLoggerMiddleware)

	r.HandleFunc("/management/health", h.health).Methods(http.MethodGet)

	for _, svc := range services {
		h.byEntity[svc.Entity.Name] = svc
		res := &resource{h: h, svc: svc}
		coll := "/api/" + svc.Entity.Collection
		item := coll + "/{id}"

		r.HandleFunc("/api/_search/"+svc.Entity.Collection, res.search).Methods(http.MethodGet)
		r.HandleFunc(coll, res.create).Methods(http.MethodPost)
		r.HandleFunc(coll, res.getAll).Methods(http.MethodGet)
		r.HandleFunc(item, res.get).Methods(http.MethodGet)
		r.HandleFunc(item, res.update).Methods(http.MethodPut)
		r.HandleFunc(item, res.partialUpdate).Methods(http.MethodPatch)
		r.HandleFunc(item, res.delete).Methods(http.MethodDelete)
	}

	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondStatus(w, r, http.StatusMethodNotAllowed)
	})
	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondStatus(w, r, http.StatusNotFound)
	})
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

type healthStatus struct {
	Status     string                  `json:"status"`
	Components map[string]healthStatus `json:"components,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// health reports UP only when every check passes.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "UP", Components: make(map[string]healthStatus, len(h.checks))}
	code := http.StatusOK
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status.Components[name] = healthStatus{Status: "DOWN", Error: err.Error()}
			status.Status = "DOWN"
			code = http.StatusServiceUnavailable
			continue
		}
		status.Components[name] = healthStatus{Status: "UP"}
	}
	respondJSON(w, code, status)
}
