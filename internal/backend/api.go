package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/relations"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
)

var (
	_ catalog.Source   = (*Client)(nil)
	_ relations.Source = (*Client)(nil)
	_ search.Backend   = (*Client)(nil)
)

func collectionOf(op string, kind model.EntityKind) (string, error) {
	if !kind.Valid() {
		return "", apierr.Validationf(op, "unknown entity kind %d", int(kind))
	}
	return url.PathEscape(kind.Collection()), nil
}

// ListEntities fetches GET /entities/{collection}.
func (c *Client) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.RawRecord, error) {
	const op = "list_entities"
	coll, err := collectionOf(op, kind)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/entities/" + coll, idempotent: true})
	if err != nil {
		return nil, err
	}
	return decodeRecords(op, raw, "entities")
}

// ListRelations fetches GET /relations/{collection} and decodes both the
// current and the legacy record shapes. Records with an unknown relation type
// or without ids are skipped.
func (c *Client) ListRelations(ctx context.Context, kind model.EntityKind) ([]model.RelationRecord, error) {
	const op = "list_relations"
	coll, err := collectionOf(op, kind)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/relations/" + coll, idempotent: true})
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(op, raw, "relations")
	if err != nil {
		return nil, err
	}

	out := make([]model.RelationRecord, 0, len(records))
	for _, r := range records {
		rec, ok := relationFromWire(kind, r)
		if !ok {
			c.log.Warn("skipping malformed relation record", "kind", kind, "record", r)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// CreateRelation posts {typeRelation, cibleId, ...attrs} to
// /{collection}/{subjectID}/relations.
func (c *Client) CreateRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error {
	const op = "create_relation"
	coll, err := collectionOf(op, kind)
	if err != nil {
		return err
	}
	body := map[string]string{
		"typeRelation": t.String(),
		"cibleId":      objectID,
	}
	for k, v := range attrs {
		body[k] = v
	}
	path := "/" + coll + "/" + url.PathEscape(subjectID) + "/relations"
	_, err = c.do(ctx, call{op: op, method: http.MethodPost, path: path, body: body})
	return err
}

// DeleteRelation sends DELETE /{collection}/{subjectID}/relations/{type}/{objectID}.
func (c *Client) DeleteRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string) error {
	const op = "delete_relation"
	coll, err := collectionOf(op, kind)
	if err != nil {
		return err
	}
	path := "/" + coll + "/" + url.PathEscape(subjectID) + "/relations/" + url.PathEscape(t.String()) + "/" + url.PathEscape(objectID)
	_, err = c.do(ctx, call{op: op, method: http.MethodDelete, path: path, idempotent: true})
	return err
}

type searchWire struct {
	Results         []model.RawRecord `json:"results"`
	GeneratedSPARQL string            `json:"generated_sparql"`
	GeneratedQuery  string            `json:"generated_query"`
	OriginalQuery   string            `json:"original_query"`
	Count           *int              `json:"count"`
	Interpretation  json.RawMessage   `json:"interpretation"`
}

// SemanticSearch posts {query} to /semantic-search.
func (c *Client) SemanticSearch(ctx context.Context, text string) (*model.SearchResponse, error) {
	const op = "semantic_search"
	raw, err := c.do(ctx, call{
		op:         op,
		method:     http.MethodPost,
		path:       "/semantic-search",
		body:       map[string]string{"query": text},
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}

	var w searchWire
	if err := decode(op, raw, &w); err != nil {
		return nil, err
	}
	resp := &model.SearchResponse{
		Results:         w.Results,
		GeneratedSPARQL: w.GeneratedSPARQL,
		OriginalQuery:   w.OriginalQuery,
		Count:           len(w.Results),
	}
	if resp.Results == nil {
		resp.Results = []model.RawRecord{}
	}
	if resp.GeneratedSPARQL == "" {
		resp.GeneratedSPARQL = w.GeneratedQuery
	}
	if w.Count != nil {
		resp.Count = *w.Count
	}
	if len(w.Interpretation) > 0 && !bytes.Equal(w.Interpretation, []byte("null")) {
		var in model.Interpretation
		if err := json.Unmarshal(w.Interpretation, &in); err != nil {
			c.log.Debug("ignoring undecodable interpretation", "error", err)
		} else {
			resp.Interpretation = &in
		}
	}
	return resp, nil
}

// SearchSuggestions fetches GET /search-suggestions. Both a bare list and
// {"suggestions": [...]} are accepted.
func (c *Client) SearchSuggestions(ctx context.Context) ([]string, error) {
	const op = "search_suggestions"
	raw, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/search-suggestions", idempotent: true})
	if err != nil {
		return nil, err
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Suggestions []any `json:"suggestions"`
		}
		if err := decode(op, raw, &wrapped); err != nil {
			return nil, err
		}
		list = wrapped.Suggestions
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := common.ExtractScalar(v); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

var totalKeys = map[string]bool{"total": true, "total_entities": true, "totalEntities": true}

// SearchStats fetches GET /search-stats. The backend answers with a flat
// {label: count} object; a "total" entry, when present, is taken as is and
// otherwise the counts are summed.
func (c *Client) SearchStats(ctx context.Context) (*model.SearchStats, error) {
	const op = "search_stats"
	raw, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/search-stats", idempotent: true})
	if err != nil {
		return nil, err
	}

	var flat map[string]any
	if err := decode(op, raw, &flat); err != nil {
		return nil, err
	}
	if nested, ok := flat["by_kind"].(map[string]any); ok {
		total := flat["total_entities"]
		flat = nested
		if total != nil {
			flat["total"] = total
		}
	}

	stats := &model.SearchStats{ByKind: map[string]int{}}
	explicitTotal := -1
	sum := 0
	for k, v := range flat {
		n, ok := common.ParseFloat(v)
		if !ok {
			continue
		}
		if totalKeys[k] {
			explicitTotal = int(n)
			continue
		}
		stats.ByKind[k] = int(n)
		sum += int(n)
	}
	stats.TotalEntities = sum
	if explicitTotal >= 0 {
		stats.TotalEntities = explicitTotal
	}
	return stats, nil
}
