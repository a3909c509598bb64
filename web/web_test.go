package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
	"github.com/guyvdb/gestioneau/search/searchtest"
	"github.com/guyvdb/gestioneau/search/sqlite"
	"github.com/guyvdb/gestioneau/service"
	"github.com/guyvdb/gestioneau/store"
	"github.com/guyvdb/gestioneau/types"
)

const appName = "gestioneauApp"

type fixture struct {
	t        *testing.T
	handler  *Handler
	services map[string]*service.Service
}

func newFixture(t *testing.T, idx search.Index, basePath string) *fixture {
	t.Helper()
	registry := types.NewSystemRegistry()
	dyno.Register(registry, schema.Catalog())

	s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "web.db"), registry)
	require.NoError(t, err)
	require.NoError(t, registry.Load(s))
	t.Cleanup(func() { s.Close() })

	wt := service.NewWriteThrough(s, idx)
	f := &fixture{t: t, services: map[string]*service.Service{}}
	list := make([]*service.Service, 0)
	for _, e := range schema.Catalog() {
		typeId, err := registry.GetTypeId(e.Name)
		require.NoError(t, err)
		svc := service.New(e, typeId, s, idx, wt)
		f.services[e.Collection] = svc
		list = append(list, svc)
	}

	f.handler = NewHandler(Config{AppName: appName, BasePath: basePath}, list, map[string]Check{
		"store":  func(context.Context) error { return s.Ping() },
		"search": idx.Ping,
	})
	return f
}

// permissiveMock accepts any mirror call.
func permissiveMock() *searchtest.MockIndex {
	idx := &searchtest.MockIndex{}
	idx.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()
	idx.On("DeleteById", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	idx.On("Ping", mock.Anything).Return(nil).Maybe()
	return idx
}

func (f *fixture) do(method, path, contentType string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) count(collection string) int64 {
	f.t.Helper()
	n, err := f.services[collection].CountAll(context.Background())
	require.NoError(f.t, err)
	return n
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&m), rec.Body.String())
	return m
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var l []map[string]any
	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()
	require.NoError(t, dec.Decode(&l), rec.Body.String())
	return l
}

// sampleValues builds a payload with every field of e set.
func sampleValues(e *schema.Entity, variant int) map[string]any {
	v := map[string]any{}
	for _, f := range e.Fields {
		switch f.Kind {
		case schema.String:
			v[f.Name] = strings.Repeat(string(rune('A'+variant)), 10)
		case schema.Integer, schema.Long:
			v[f.Name] = variant + 1
		case schema.Float:
			v[f.Name] = float64(variant) + 0.5
		case schema.Instant:
			v[f.Name] = "2024-01-0" + strconv.Itoa(variant+1) + "T00:00:00Z"
		}
	}
	return v
}

func idOf(t *testing.T, m map[string]any) int64 {
	t.Helper()
	n, ok := m["id"].(json.Number)
	require.True(t, ok, "id missing in %v", m)
	id, err := n.Int64()
	require.NoError(t, err)
	return id
}

func TestCreateAndReadBackEveryEntity(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")

	for _, e := range schema.Catalog() {
		t.Run(e.Name, func(t *testing.T) {
			payload := sampleValues(e, 0)
			before := f.count(e.Collection)

			rec := f.do(http.MethodPost, "/api/"+e.Collection, "application/json", payload)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			created := decodeObject(t, rec)
			id := idOf(t, created)

			assert.Equal(t, "/api/"+e.Collection+"/"+strconv.FormatInt(id, 10), rec.Header().Get("Location"))
			assert.Equal(t, appName+"."+e.AlertName()+".created", rec.Header().Get("X-"+appName+"-alert"))
			assert.Equal(t, strconv.FormatInt(id, 10), rec.Header().Get("X-"+appName+"-params"))
			assert.Equal(t, before+1, f.count(e.Collection))

			rec = f.do(http.MethodGet, "/api/"+e.Collection+"/"+strconv.FormatInt(id, 10), "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			got := decodeObject(t, rec)
			for name, want := range payload {
				assert.Equal(t, jsonString(t, want), jsonString(t, got[name]), "%s.%s", e.Name, name)
			}
		})
	}
}

func jsonString(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestCreateCommuneMirrorsOnce(t *testing.T) {
	idx := &searchtest.MockIndex{}
	idx.On("Save", mock.Anything, mock.MatchedBy(func(d *dyno.DTO) bool {
		return d.Entity.Name == "Commune" && d.Values["libelle"] == "AAAAAAAAAA"
	})).Return(nil).Once()
	f := newFixture(t, idx, "")

	before := f.count("communes")
	rec := f.do(http.MethodPost, "/api/communes", "application/json", map[string]any{"libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, before+1, f.count("communes"))

	all, err := f.services["communes"].FindAll(context.Background(), service.Pageable{})
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "AAAAAAAAAA", all[len(all)-1].Values["libelle"])

	idx.AssertExpectations(t)
	idx.AssertNumberOfCalls(t, "Save", 1)
}

func TestCreateWithIdIsRejected(t *testing.T) {
	idx := &searchtest.MockIndex{}
	f := newFixture(t, idx, "")

	rec := f.do(http.MethodPost, "/api/communes", "application/json", map[string]any{"id": 1, "libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.idexists", rec.Header().Get("X-"+appName+"-error"))
	assert.Equal(t, "gestioneauCommune", rec.Header().Get("X-"+appName+"-params"))

	p := decodeObject(t, rec)
	assert.Equal(t, "idexists", p["errorKey"])
	assert.Equal(t, "gestioneauCommune", p["entityName"])
	assert.Zero(t, f.count("communes"))
	idx.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRequiredFieldsAreEnforced(t *testing.T) {
	idx := &searchtest.MockIndex{}
	f := newFixture(t, idx, "")

	for _, e := range schema.Catalog() {
		for _, field := range e.RequiredFields() {
			t.Run(e.Name+"/"+field, func(t *testing.T) {
				payload := sampleValues(e, 0)
				delete(payload, field)
				before := f.count(e.Collection)

				rec := f.do(http.MethodPost, "/api/"+e.Collection, "application/json", payload)
				require.Equal(t, http.StatusBadRequest, rec.Code)
				p := decodeObject(t, rec)
				assert.Equal(t, "error.validation", p["message"])
				assert.Contains(t, rec.Body.String(), `"field":"`+field+`"`)
				assert.Equal(t, before, f.count(e.Collection))

				payload[field] = nil
				rec = f.do(http.MethodPost, "/api/"+e.Collection, "application/json", payload)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, before, f.count(e.Collection))
			})
		}
	}
	idx.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestWrongFieldTypeIsRejected(t *testing.T) {
	f := newFixture(t, &searchtest.MockIndex{}, "")
	rec := f.do(http.MethodPost, "/api/previsions", "application/json",
		map[string]any{"nbLatrine": "many", "nbPuisard": 1, "nbPublic": 1, "nbScolaire": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"nbLatrine"`)
	assert.Zero(t, f.count("previsions"))

	rec = f.do(http.MethodPost, "/api/previsions", "application/json", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	rec := f.do(http.MethodPost, "/api/regions", "application/json", map[string]any{"libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := idOf(t, decodeObject(t, rec))
	path := "/api/regions/" + strconv.FormatInt(id, 10)

	t.Run("Replaces", func(t *testing.T) {
		rec := f.do(http.MethodPut, path, "application/json", map[string]any{"id": id, "libelle": "BBBBBBBBBB"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, appName+".gestioneauRegion.updated", rec.Header().Get("X-"+appName+"-alert"))
		assert.Equal(t, "BBBBBBBBBB", decodeObject(t, rec)["libelle"])
		assert.Equal(t, int64(1), f.count("regions"))
	})

	t.Run("IdNull", func(t *testing.T) {
		rec := f.do(http.MethodPut, path, "application/json", map[string]any{"libelle": "CCCCCCCCCC"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "error.idnull", rec.Header().Get("X-"+appName+"-error"))
	})

	t.Run("IdMismatch", func(t *testing.T) {
		rec := f.do(http.MethodPut, path, "application/json", map[string]any{"id": id + 1, "libelle": "CCCCCCCCCC"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "error.idinvalid", rec.Header().Get("X-"+appName+"-error"))
	})

	t.Run("BadPathId", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/regions/abc", "application/json", map[string]any{"id": id})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	got, err := f.services["regions"].FindOne(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBB", got.Values["libelle"])
}

func TestUpdateUnknownIdEveryEntity(t *testing.T) {
	idx := &searchtest.MockIndex{}
	f := newFixture(t, idx, "")

	for _, e := range schema.Catalog() {
		t.Run(e.Name, func(t *testing.T) {
			payload := sampleValues(e, 1)
			payload["id"] = 424242
			before := f.count(e.Collection)

			rec := f.do(http.MethodPut, "/api/"+e.Collection+"/424242", "application/json", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error.idnotfound", rec.Header().Get("X-"+appName+"-error"))
			assert.Equal(t, before, f.count(e.Collection))

			rec = f.do(http.MethodPatch, "/api/"+e.Collection+"/424242", "application/merge-patch+json", payload)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, before, f.count(e.Collection))
		})
	}
	idx.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPartialUpdateRegion(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	rec := f.do(http.MethodPost, "/api/regions", "application/json", map[string]any{"libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := idOf(t, decodeObject(t, rec))

	rec = f.do(http.MethodPatch, "/api/regions/"+strconv.FormatInt(id, 10), "application/merge-patch+json",
		map[string]any{"id": id, "libelle": "BBBBBBBBBB"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BBBBBBBBBB", decodeObject(t, rec)["libelle"])

	got, err := f.services["regions"].FindOne(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"libelle": "BBBBBBBBBB"}, got.Values)
}

func TestPartialUpdateKeepsOmittedFields(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	e, _ := schema.Lookup("fiche-suivi-ouvrages")
	defaults := sampleValues(e, 0)

	rec := f.do(http.MethodPost, "/api/fiche-suivi-ouvrages", "application/json", defaults)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := idOf(t, decodeObject(t, rec))

	patch := map[string]any{"id": id, "nomBenef": "BBBBBBBBBB", "toles": 9, "latitude": 3.25}
	rec = f.do(http.MethodPatch, "/api/fiche-suivi-ouvrages/"+strconv.FormatInt(id, 10), "application/json", patch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/fiche-suivi-ouvrages/"+strconv.FormatInt(id, 10), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeObject(t, rec)
	for name, want := range defaults {
		if p, patched := patch[name]; patched {
			want = p
		}
		assert.Equal(t, jsonString(t, want), jsonString(t, got[name]), name)
	}
}

func TestPartialUpdateContentType(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	rec := f.do(http.MethodPatch, "/api/regions/1", "text/plain", `{"id":1}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	rec := f.do(http.MethodGet, "/api/centres/9223372036854775807", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectionPutAndPatchAreNotAllowed(t *testing.T) {
	idx := &searchtest.MockIndex{}
	f := newFixture(t, idx, "")

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		rec := f.do(method, "/api/communes", "application/json", map[string]any{"id": 1, "libelle": "AAAAAAAAAA"})
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
	}
	assert.Zero(t, f.count("communes"))
	idx.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDelete(t *testing.T) {
	idx := permissiveMock()
	f := newFixture(t, idx, "")
	rec := f.do(http.MethodPost, "/api/communes", "application/json", map[string]any{"libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := idOf(t, decodeObject(t, rec))
	before := f.count("communes")

	rec = f.do(http.MethodDelete, "/api/communes/"+strconv.FormatInt(id, 10), "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, appName+".gestioneauCommune.deleted", rec.Header().Get("X-"+appName+"-alert"))
	assert.Equal(t, before-1, f.count("communes"))
	idx.AssertCalled(t, "DeleteById", mock.Anything, searchtest.ForEntity("Commune"), id)

	rec = f.do(http.MethodDelete, "/api/communes/"+strconv.FormatInt(id, 10), "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteSucceedsWhenMirrorFails(t *testing.T) {
	idx := &searchtest.MockIndex{}
	idx.On("Save", mock.Anything, mock.Anything).Return(errors.New("mirror down"))
	idx.On("DeleteById", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("mirror down"))
	f := newFixture(t, idx, "")

	rec := f.do(http.MethodPost, "/api/annees", "application/json", map[string]any{"libelle": "2024"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := idOf(t, decodeObject(t, rec))

	rec = f.do(http.MethodDelete, "/api/annees/"+strconv.FormatInt(id, 10), "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.count("annees"))
}

func TestGetAllPaging(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	for i := 0; i < 5; i++ {
		rec := f.do(http.MethodPost, "/api/macons", "application/json", map[string]any{"libelle": "m" + strconv.Itoa(i)})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.do(http.MethodGet, "/api/macons", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 5)
	assert.Equal(t, "5", rec.Header().Get("X-Total-Count"))
	assert.Empty(t, rec.Header().Get("Link"))

	rec = f.do(http.MethodGet, "/api/macons?page=1&size=2&sort=id,desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), idOf(t, list[0]))
	assert.Equal(t, int64(2), idOf(t, list[1]))
	assert.Equal(t, "5", rec.Header().Get("X-Total-Count"))

	link := rec.Header().Get("Link")
	assert.Contains(t, link, `rel="next"`)
	assert.Contains(t, link, `rel="prev"`)
	assert.Contains(t, link, "page=2")
	assert.Contains(t, link, `rel="last"`)
	assert.Contains(t, link, `rel="first"`)
}

func TestSearchById(t *testing.T) {
	idx, err := sqlite.Open(filepath.Join(t.TempDir(), "search.db"), schema.Catalog())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	f := newFixture(t, idx, "")

	e, _ := schema.Lookup("centres")
	rec := f.do(http.MethodPost, "/api/centres", "application/json", sampleValues(e, 0))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/api/centres", "application/json", sampleValues(e, 1))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := idOf(t, decodeObject(t, rec))

	rec = f.do(http.MethodGet, "/api/_search/centres?query=id:"+strconv.FormatInt(id, 10), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, idOf(t, list[0]))
	assert.Equal(t, "BBBBBBBBBB", list[0]["libelle"])
	assert.Equal(t, "BBBBBBBBBB", list[0]["responsable"])
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	// Deletes reach the mirror too.
	rec = f.do(http.MethodDelete, "/api/centres/"+strconv.FormatInt(id, 10), "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodGet, "/api/_search/centres?query=id:"+strconv.FormatInt(id, 10), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))
}

func TestSearchNeverReadsPrimary(t *testing.T) {
	idx := &searchtest.MockIndex{}
	idx.On("Search", mock.Anything, searchtest.ForEntity("Region"), "libelle:x", 0, 0).Return([]*dyno.DTO{}, nil).Once()
	idx.On("Count", mock.Anything, searchtest.ForEntity("Region")).Return(int64(0), nil).Once()
	f := newFixture(t, idx, "")

	rec := f.do(http.MethodGet, "/api/_search/regions?query=libelle:x", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	idx.AssertExpectations(t)
}

func TestBasePathAndHealth(t *testing.T) {
	f := newFixture(t, permissiveMock(), "/gestioneau")

	rec := f.do(http.MethodPost, "/gestioneau/api/regions", "application/json", map[string]any{"libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/gestioneau/api/regions/"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = f.do(http.MethodGet, "/api/regions", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/gestioneau/management/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP", decodeObject(t, rec)["status"])
}

func TestHealthDown(t *testing.T) {
	idx := &searchtest.MockIndex{}
	idx.On("Ping", mock.Anything).Return(errors.New("no route to host"))
	f := newFixture(t, idx, "")

	rec := f.do(http.MethodGet, "/management/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DOWN", decodeObject(t, rec)["status"])
}

func TestRequestIdIsEchoed(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	req := httptest.NewRequest(http.MethodGet, "/api/regions", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestGetAllPageBeyondRange(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	rec := f.do(http.MethodPost, "/api/regions", "application/json", map[string]any{"libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, query := range []string{
		"page=4611686018427387904&size=2",
		"page=9223372036854775807&size=2000",
		"page=3&size=2",
	} {
		rec = f.do(http.MethodGet, "/api/regions?"+query, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, query)
		assert.Empty(t, decodeList(t, rec), query)
		assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	}
}

func TestGetAllWherePrevisionIsNull(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")
	centre, _ := schema.Lookup("centres")

	var centres []int64
	for i := 0; i < 3; i++ {
		rec := f.do(http.MethodPost, "/api/centres", "application/json", sampleValues(centre, i))
		require.Equal(t, http.StatusCreated, rec.Code)
		centres = append(centres, idOf(t, decodeObject(t, rec)))
	}
	rec := f.do(http.MethodPost, "/api/annees", "application/json", map[string]any{"libelle": "2024"})
	require.Equal(t, http.StatusCreated, rec.Code)
	annee := idOf(t, decodeObject(t, rec))

	rec = f.do(http.MethodPost, "/api/previsions", "application/json", map[string]any{
		"nbLatrine": 1, "nbPuisard": 1, "nbPublic": 1, "nbScolaire": 1,
		"centreId": centres[1], "refanneeId": annee,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/centres?filter=prevision-is-null", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, centres[0], idOf(t, list[0]))
	assert.Equal(t, centres[2], idOf(t, list[1]))

	rec = f.do(http.MethodGet, "/api/annees?filter=prevision-is-null", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeList(t, rec))

	// Unknown filters list everything.
	rec = f.do(http.MethodGet, "/api/centres?filter=nope", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 3)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))
}

func TestValidationPrecedesIdRules(t *testing.T) {
	f := newFixture(t, permissiveMock(), "")

	rec := f.do(http.MethodPost, "/api/centres", "application/json", map[string]any{"id": 1, "libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.validation", decodeObject(t, rec)["message"])
	assert.Empty(t, rec.Header().Get("X-"+appName+"-error"))

	rec = f.do(http.MethodPut, "/api/centres/424242", "application/json", map[string]any{"id": 424242, "libelle": "AAAAAAAAAA"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeObject(t, rec)
	assert.Equal(t, "error.validation", p["message"])
	assert.Contains(t, rec.Body.String(), `"field":"responsable"`)

	// PATCH bodies are partial, so only the id rules apply.
	rec = f.do(http.MethodPatch, "/api/centres/424242", "application/merge-patch+json", map[string]any{"id": 424242})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.idnotfound", rec.Header().Get("X-"+appName+"-error"))
}

func TestSearchRequiresQuery(t *testing.T) {
	idx := &searchtest.MockIndex{}
	f := newFixture(t, idx, "")

	rec := f.do(http.MethodGet, "/api/_search/regions", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error.http.400", decodeObject(t, rec)["message"])
	idx.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
