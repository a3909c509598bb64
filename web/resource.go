package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/service"
	"github.com/guyvdb/gestioneau/store"
)

const (
	maxBodyBytes    = 1 << 20
	defaultPageSize = 20
	maxPageSize     = 2000
	maxPage         = math.MaxInt / maxPageSize
)

// resource serves the REST routes of one entity collection.
type resource struct {
	h   *Handler
	svc *service.Service
}

func (res *resource) entityName() string {
	return res.svc.Entity.AlertName()
}

func (res *resource) location(id int64) string {
	return res.h.basePath + "/api/" + res.svc.Entity.Collection + "/" + strconv.FormatInt(id, 10)
}

// decode reads the body into a DTO. With validate set, required fields are
// checked before any id rule or store read.
func (res *resource) decode(w http.ResponseWriter, r *http.Request, validate bool) (*dyno.DTO, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondStatus(w, r, http.StatusRequestEntityTooLarge)
			return nil, false
		}
		res.h.respondError(w, r, res.entityName(), err)
		return nil, false
	}
	dto, err := res.svc.Mapper.Decode(body)
	if err == nil && validate {
		err = res.svc.Validate(dto)
	}
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return nil, false
	}
	return dto, true
}

// pathId parses the {id} segment. A malformed id is rejected as idinvalid.
func (res *resource) pathId(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := store.ParseObjectId(mux.Vars(r)["id"])
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return 0, false
	}
	return id, true
}

func (res *resource) create(w http.ResponseWriter, r *http.Request) {
	dto, ok := res.decode(w, r, true)
	if !ok {
		return
	}
	slog.Debug("REST request to save", "entity", res.svc.Entity.Name, "dto", dto)

	if dto.Id != nil {
		res.h.respondError(w, r, res.entityName(),
			fault.BadRequest("A new "+res.svc.Entity.Name+" cannot already have an ID", res.entityName(), fault.KeyIdExists))
		return
	}

	saved, err := res.svc.Save(r.Context(), dto)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}

	w.Header().Set("Location", res.location(*saved.Id))
	res.h.alerts.Created(w, res.entityName(), *saved.Id)
	respondJSON(w, http.StatusCreated, saved)
}

// checkId enforces the id rules shared by PUT and PATCH: the body carries an
// id, it equals the path id, and a row with that id exists.
func (res *resource) checkId(w http.ResponseWriter, r *http.Request, pathId int64, dto *dyno.DTO) bool {
	name := res.entityName()
	if dto.Id == nil {
		res.h.respondError(w, r, name, fault.BadRequest("Invalid id", name, fault.KeyIdNull))
		return false
	}
	if *dto.Id != pathId {
		res.h.respondError(w, r, name, fault.BadRequest("Invalid ID", name, fault.KeyIdInvalid))
		return false
	}
	exists, err := res.svc.Exists(r.Context(), pathId)
	if err != nil {
		res.h.respondError(w, r, name, err)
		return false
	}
	if !exists {
		res.h.respondError(w, r, name, fault.BadRequest("Entity not found", name, fault.KeyIdNotFound))
		return false
	}
	return true
}

func (res *resource) update(w http.ResponseWriter, r *http.Request) {
	pathId, ok := res.pathId(w, r)
	if !ok {
		return
	}
	dto, ok := res.decode(w, r, true)
	if !ok {
		return
	}
	slog.Debug("REST request to update", "entity", res.svc.Entity.Name, "id", pathId, "dto", dto)

	if !res.checkId(w, r, pathId, dto) {
		return
	}

	saved, err := res.svc.Save(r.Context(), dto)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	res.h.alerts.Updated(w, res.entityName(), *saved.Id)
	respondJSON(w, http.StatusOK, saved)
}

func (res *resource) partialUpdate(w http.ResponseWriter, r *http.Request) {
	if !acceptsPatch(r.Header.Get("Content-Type")) {
		respondStatus(w, r, http.StatusUnsupportedMediaType)
		return
	}
	pathId, ok := res.pathId(w, r)
	if !ok {
		return
	}
	dto, ok := res.decode(w, r, false)
	if !ok {
		return
	}
	slog.Debug("REST request to partial update", "entity", res.svc.Entity.Name, "id", pathId, "dto", dto)

	if !res.checkId(w, r, pathId, dto) {
		return
	}

	merged, err := res.svc.PartialUpdate(r.Context(), dto)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	if merged == nil {
		respondStatus(w, r, http.StatusNotFound)
		return
	}
	res.h.alerts.Updated(w, res.entityName(), *merged.Id)
	respondJSON(w, http.StatusOK, merged)
}

func acceptsPatch(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/merge-patch+json" || mt == "application/json"
}

func (res *resource) getAll(w http.ResponseWriter, r *http.Request) {
	if ref, ok := res.svc.Entity.BackRef(r.URL.Query().Get("filter")); ok {
		res.getAllUnreferenced(w, r, ref)
		return
	}

	p := parsePageable(r)
	slog.Debug("REST request to get all", "entity", res.svc.Entity.Name, "page", p.Page, "size", p.Size)

	dtos, err := res.svc.FindAll(r.Context(), p)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	total, err := res.svc.CountAll(r.Context())
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	paginationHeaders(w, r, p, total)
	respondJSON(w, http.StatusOK, dtos)
}

// getAllUnreferenced serves ?filter=<entity>-is-null, unpaged.
func (res *resource) getAllUnreferenced(w http.ResponseWriter, r *http.Request, ref schema.BackRef) {
	slog.Debug("REST request to get all unreferenced", "entity", res.svc.Entity.Name, "filter", ref.Filter)

	by, ok := res.h.byEntity[ref.Entity]
	if !ok {
		res.h.respondError(w, r, res.entityName(), fmt.Errorf("filter %s: %w", ref.Filter, fault.ErrTypeNotFound))
		return
	}
	dtos, err := res.svc.FindAllUnreferenced(r.Context(), by, ref.Field)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	respondJSON(w, http.StatusOK, dtos)
}

func (res *resource) get(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathId(w, r)
	if !ok {
		return
	}
	slog.Debug("REST request to get", "entity", res.svc.Entity.Name, "id", id)

	dto, err := res.svc.FindOne(r.Context(), id)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	if dto == nil {
		respondStatus(w, r, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, dto)
}

func (res *resource) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathId(w, r)
	if !ok {
		return
	}
	slog.Debug("REST request to delete", "entity", res.svc.Entity.Name, "id", id)

	if err := res.svc.Delete(r.Context(), id); err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	res.h.alerts.Deleted(w, res.entityName(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (res *resource) search(w http.ResponseWriter, r *http.Request) {
	values, ok := r.URL.Query()["query"]
	if !ok {
		respondProblem(w, r, Problem{
			Title:      "Required query parameter 'query' is not present",
			Status:     http.StatusBadRequest,
			Message:    "error.http.400",
			EntityName: res.entityName(),
		})
		return
	}
	query := values[0]
	p := parsePageable(r)
	slog.Debug("REST request to search", "entity", res.svc.Entity.Name, "query", query, "page", p.Page, "size", p.Size)

	dtos, err := res.svc.Search(r.Context(), query, p)
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	total, err := res.svc.SearchCount(r.Context())
	if err != nil {
		res.h.respondError(w, r, res.entityName(), err)
		return
	}
	paginationHeaders(w, r, p, total)
	respondJSON(w, http.StatusOK, dtos)
}

// parsePageable reads page, size and sort. The request is paged when page or
// size is given; malformed numbers fall back to the defaults.
func parsePageable(r *http.Request) service.Pageable {
	q := r.URL.Query()
	var p service.Pageable

	_, hasPage := q["page"]
	_, hasSize := q["size"]
	if hasPage || hasSize {
		p.Size = defaultPageSize
		if n, err := strconv.Atoi(q.Get("size")); err == nil && n > 0 {
			p.Size = min(n, maxPageSize)
		}
		if n, err := strconv.Atoi(q.Get("page")); err == nil && n >= 0 {
			p.Page = min(n, maxPage)
		}
	}

	for _, s := range q["sort"] {
		if o, ok := service.ParseOrder(s); ok {
			p.Sort = append(p.Sort, o)
		}
	}
	return p
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("respondJSON - marshal failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = w.Write(response)
}
