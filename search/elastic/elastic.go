// Package elastic mirrors entities into Elasticsearch, one index per entity
// named after the lower cased entity name.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/guyvdb/gestioneau/dyno"
	"github.com/guyvdb/gestioneau/fault"
	"github.com/guyvdb/gestioneau/schema"
	"github.com/guyvdb/gestioneau/search"
)

var _ search.Index = (*Index)(nil)

// Largest page Elasticsearch serves by default (index.max_result_window).
const maxResultWindow = 10000

type Config struct {
	Addresses []string
	Username  string
	Password  string
	// Refresh makes every write visible to search before it returns.
	Refresh bool
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

type Index struct {
	es      *elasticsearch.Client
	refresh bool
}

func New(cfg Config) (*Index, error) {
	slog.Debug("elastic.New - create search index client", "addresses", cfg.Addresses)

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Index{es: es, refresh: cfg.Refresh}, nil
}

func indexName(e *schema.Entity) string {
	return strings.ToLower(e.Name)
}

func (i *Index) refreshParam() string {
	if i.refresh {
		return "true"
	}
	return "false"
}

func (i *Index) Save(ctx context.Context, dto *dyno.DTO) error {
	if dto.Id == nil {
		return fault.ErrIdIsNil
	}
	body, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrMarshalFailed, err)
	}

	res, err := i.es.Index(indexName(dto.Entity), bytes.NewReader(body),
		i.es.Index.WithDocumentID(strconv.FormatInt(*dto.Id, 10)),
		i.es.Index.WithRefresh(i.refreshParam()),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

func (i *Index) DeleteById(ctx context.Context, e *schema.Entity, id int64) error {
	res, err := i.es.Delete(indexName(e), strconv.FormatInt(id, 10),
		i.es.Delete.WithRefresh(i.refreshParam()),
		i.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a query_string query. A missing index yields no hits.
func (i *Index) Search(ctx context.Context, e *schema.Entity, query string, offset, limit int) ([]*dyno.DTO, error) {
	if offset < 0 {
		offset = 0
	}
	if offset >= maxResultWindow {
		return []*dyno.DTO{}, nil
	}
	if limit <= 0 || limit > maxResultWindow-offset {
		limit = maxResultWindow - offset
	}

	var q map[string]any
	if search.MatchAll(query) {
		q = map[string]any{"match_all": map[string]any{}}
	} else {
		q = map[string]any{"query_string": map[string]any{"query": strings.TrimSpace(query)}}
	}
	body, err := json.Marshal(map[string]any{
		"query": q,
		"sort":  []any{map[string]any{"id": map[string]any{"order": "asc", "unmapped_type": "long"}}},
	})
	if err != nil {
		return nil, err
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(indexName(e)),
		i.es.Search.WithBody(bytes.NewReader(body)),
		i.es.Search.WithFrom(offset),
		i.es.Search.WithSize(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return []*dyno.DTO{}, nil
	case res.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w %q: %s", fault.ErrInvalidQuery, query, readAll(res.Body))
	case res.IsError():
		return nil, responseError("search", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrUnmarshalFailed, err)
	}

	results := make([]*dyno.DTO, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		dto, err := dyno.DecodeDTO(e, hit.Source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrUnmarshalFailed, err)
		}
		results = append(results, dto)
	}
	return results, nil
}

func (i *Index) Count(ctx context.Context, e *schema.Entity) (int64, error) {
	res, err := i.es.Count(
		i.es.Count.WithContext(ctx),
		i.es.Count.WithIndex(indexName(e)),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", fault.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, responseError("count", res)
	}

	var cr struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0, fmt.Errorf("%w: %w", fault.ErrUnmarshalFailed, err)
	}
	return cr.Count, nil
}

func (i *Index) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

// Close is a no-op; the client holds no resources beyond its transport.
func (i *Index) Close() error {
	return nil
}

func responseError(op string, res *esapi.Response) error {
	return fmt.Errorf("%w: %s: %s %s", fault.ErrIndexUnavailable, op, res.Status(), readAll(res.Body))
}

func readAll(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}
