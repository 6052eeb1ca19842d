package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/dedupe"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/query"
	"github.com/agenthands/nutrigraph/internal/core/relations"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/agenthands/nutrigraph/internal/metric"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	_ catalog.Source   = (*GraphSource)(nil)
	_ relations.Source = (*GraphSource)(nil)
	_ search.Backend   = (*GraphSource)(nil)
)

const defaultSearchLimit = 50

// GraphSource serves the backend contract straight from the graph store,
// without the REST layer in between.
type GraphSource struct {
	driver     GraphDriver
	dispatcher *query.Dispatcher
	log        *logger.Logger
	metrics    *metric.Metrics
	Limit      int
}

func NewGraphSource(driver GraphDriver, dispatcher *query.Dispatcher, log *logger.Logger, m *metric.Metrics) *GraphSource {
	if dispatcher == nil {
		dispatcher = query.NewDispatcher(nil, log)
	}
	return &GraphSource{
		driver:     driver,
		dispatcher: dispatcher,
		log:        logger.OrNop(log).With("component", "graph_source"),
		metrics:    m,
		Limit:      defaultSearchLimit,
	}
}

func (g *GraphSource) run(ctx context.Context, op, q string, params map[string]interface{}) (neo4j.EagerResult, error) {
	start := time.Now()
	res, err := g.driver.ExecuteQuery(ctx, q, params)
	g.metrics.ObserveBackend(op, time.Since(start))
	if err != nil {
		return res, apierr.New(apierr.Transport, op, err)
	}
	return res, nil
}

// SaveEntity upserts one entity node. props must not contain nested maps.
func (g *GraphSource) SaveEntity(ctx context.Context, kind model.EntityKind, id string, props map[string]interface{}) error {
	if !kind.Valid() || strings.TrimSpace(id) == "" {
		return apierr.Validationf("save_entity", "kind and id are required")
	}
	all := map[string]interface{}{}
	for k, v := range props {
		all[k] = v
	}
	all["id"] = id
	_, err := g.run(ctx, "save_entity", SaveEntityQuery, map[string]interface{}{
		"id":    id,
		"type":  kind.Label(),
		"props": all,
	})
	if err != nil {
		return fmt.Errorf("failed to save entity %s: %w", id, err)
	}
	return nil
}

func (g *GraphSource) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.RawRecord, error) {
	res, err := g.run(ctx, "list_entities", ListEntitiesQuery, map[string]interface{}{"type": kind.Label()})
	if err != nil {
		return nil, err
	}
	return propsRecords(res), nil
}

func propsRecords(res neo4j.EagerResult) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		v, _ := rec.Get("props")
		props, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.RawRecord(props))
	}
	return out
}

func (g *GraphSource) ListRelations(ctx context.Context, kind model.EntityKind) ([]model.RelationRecord, error) {
	res, err := g.run(ctx, "list_relations", ListRelationsQuery, map[string]interface{}{"type": kind.Label()})
	if err != nil {
		return nil, err
	}

	out := make([]model.RelationRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		get := func(key string) string {
			v, _ := rec.Get(key)
			s, _ := common.ExtractScalar(v)
			return s
		}
		t, ok := model.ParseRelationType(get("relation_type"))
		if !ok {
			g.log.Warn("skipping relation with unknown type", "type", get("relation_type"))
			continue
		}
		r := model.RelationRecord{
			SubjectID:    get("subject_id"),
			SubjectKind:  kind,
			RelationType: t,
			ObjectID:     get("object_id"),
			ObjectKind:   t.TargetKind(),
			ObjectName:   get("object_name"),
		}
		for _, k := range []string{model.AttrQuantity, model.AttrUnit} {
			if v := get(k); v != "" {
				if r.Attributes == nil {
					r.Attributes = map[string]string{}
				}
				r.Attributes[k] = v
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// idVariants matches a canonical id as well as its single-prefixed drift.
func idVariants(kind model.EntityKind, id string) []interface{} {
	canonical := dedupe.Normalize(id)
	out := []interface{}{canonical}
	if p := kind.Prefix(); p != "" && strings.HasPrefix(canonical, p) {
		out = append(out, p+canonical)
	}
	return out
}

func count(res neo4j.EagerResult, key string) int64 {
	if len(res.Records) == 0 {
		return 0
	}
	v, _ := res.Records[0].Get(key)
	n, _ := v.(int64)
	return n
}

func (g *GraphSource) CreateRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error {
	const op = "create_relation"
	attributes := map[string]interface{}{}
	for k, v := range attrs {
		attributes[k] = v
	}
	res, err := g.run(ctx, op, CreateRelationQuery, map[string]interface{}{
		"subject_type":  kind.Label(),
		"subject_ids":   idVariants(kind, subjectID),
		"object_type":   t.TargetKind().Label(),
		"object_ids":    idVariants(t.TargetKind(), objectID),
		"relation_type": t.String(),
		"attributes":    attributes,
	})
	if err != nil {
		return err
	}
	if count(res, "created") == 0 {
		return &apierr.Error{Kind: apierr.Backend, Op: op, Err: errors.New("Entité source ou cible introuvable")}
	}
	return nil
}

func (g *GraphSource) DeleteRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string) error {
	const op = "delete_relation"
	res, err := g.run(ctx, op, DeleteRelationQuery, map[string]interface{}{
		"subject_type":  kind.Label(),
		"subject_ids":   idVariants(kind, subjectID),
		"object_ids":    idVariants(t.TargetKind(), objectID),
		"relation_type": t.String(),
	})
	if err != nil {
		return err
	}
	if count(res, "deleted") == 0 {
		return &apierr.Error{Kind: apierr.Backend, Op: op, Err: errors.New("Relation introuvable")}
	}
	return nil
}

// BuildSearchQuery turns an interpretation into a Cypher query and its
// parameters.
func BuildSearchQuery(in model.Interpretation, limit int) (string, map[string]interface{}) {
	kind := in.Kind
	if !kind.Valid() {
		kind = model.KindFood
	}
	params := map[string]interface{}{"type": kind.Label(), "limit": int64(limit)}

	var conds []string
	for i, f := range in.Filters {
		field, ok := query.PropertyField(f.Property)
		if !ok {
			continue
		}
		prop := "n." + field
		lo := fmt.Sprintf("f%d", i)
		var cond string
		switch f.Op {
		case model.OpLessEqual:
			cond = fmt.Sprintf("toFloat(%s) <= $%s", prop, lo)
			params[lo] = f.Value
		case model.OpGreaterEqual:
			cond = fmt.Sprintf("toFloat(%s) >= $%s", prop, lo)
			params[lo] = f.Value
		case model.OpBetween:
			hi := lo + "_hi"
			cond = fmt.Sprintf("toFloat(%s) >= $%s AND toFloat(%s) <= $%s", prop, lo, prop, hi)
			params[lo], params[hi] = f.Value, f.Upper
		default:
			conds = append(conds, prop+" IS NOT NULL")
			continue
		}
		if f.AllowMissing {
			cond = fmt.Sprintf("(%s IS NULL OR %s)", prop, cond)
		}
		conds = append(conds, cond)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, "\n  AND ")
	}
	return fmt.Sprintf(searchEntitiesTemplate, where), params
}

// SemanticSearch interprets text locally and runs the matching graph query.
// The generated Cypher is reported in place of the backend's SPARQL.
func (g *GraphSource) SemanticSearch(ctx context.Context, text string) (*model.SearchResponse, error) {
	in := g.dispatcher.Interpret(ctx, text)
	limit := g.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q, params := BuildSearchQuery(in, limit)

	res, err := g.run(ctx, "semantic_search", q, params)
	if err != nil {
		return nil, err
	}
	results := propsRecords(res)
	return &model.SearchResponse{
		Results:         results,
		GeneratedSPARQL: q,
		OriginalQuery:   text,
		Interpretation:  &in,
		Count:           len(results),
	}, nil
}

func (g *GraphSource) SearchSuggestions(ctx context.Context) ([]string, error) {
	return append([]string(nil), search.DefaultSuggestions...), nil
}

func (g *GraphSource) SearchStats(ctx context.Context) (*model.SearchStats, error) {
	res, err := g.run(ctx, "search_stats", SearchStatsQuery, nil)
	if err != nil {
		return nil, err
	}
	stats := &model.SearchStats{ByKind: map[string]int{}}
	for _, rec := range res.Records {
		t, _ := rec.Get("type")
		c, _ := rec.Get("count")
		label, _ := t.(string)
		n, _ := c.(int64)
		if label == "" {
			continue
		}
		stats.ByKind[label] += int(n)
		stats.TotalEntities += int(n)
	}
	return stats, nil
}
