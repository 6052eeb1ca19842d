package server

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/dedupe"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/query"
	"github.com/agenthands/nutrigraph/internal/core/relations"
	"github.com/agenthands/nutrigraph/internal/core/search"
	"github.com/agenthands/nutrigraph/internal/driver"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
)

var (
	_ catalog.Source   = (*Fixture)(nil)
	_ relations.Source = (*Fixture)(nil)
	_ search.Backend   = (*Fixture)(nil)
)

// Fixture is an in-memory knowledge base serving the backend contract.
type Fixture struct {
	dispatcher *query.Dispatcher

	mu          sync.RWMutex
	entities    map[model.EntityKind][]model.RawRecord
	relations   []model.RelationRecord
	suggestions []string
}

// NewFixture returns a Fixture loaded with the seed data.
func NewFixture(dispatcher *query.Dispatcher) *Fixture {
	if dispatcher == nil {
		dispatcher = query.NewDispatcher(nil, nil)
	}
	return &Fixture{
		dispatcher:  dispatcher,
		entities:    SeedEntities(),
		relations:   SeedRelations(),
		suggestions: append([]string(nil), SeedSuggestions...),
	}
}

func cloneRecord(r model.RawRecord) model.RawRecord {
	out := make(model.RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (f *Fixture) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.RawRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.RawRecord, 0, len(f.entities[kind]))
	for _, r := range f.entities[kind] {
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

func (f *Fixture) ListRelations(ctx context.Context, kind model.EntityKind) ([]model.RelationRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []model.RelationRecord
	for _, r := range f.relations {
		if r.SubjectKind != kind {
			continue
		}
		if r.ObjectName == "" {
			if rec, ok := f.find(r.ObjectKind, r.ObjectID); ok {
				r.ObjectName, _ = common.ExtractScalar(rec["nom"])
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// find looks an entity up by canonical id. Callers hold mu.
func (f *Fixture) find(kind model.EntityKind, id string) (model.RawRecord, bool) {
	want := dedupe.Normalize(id)
	for _, r := range f.entities[kind] {
		raw, _ := common.ExtractScalar(r["id"])
		if dedupe.Normalize(raw) == want {
			return r, true
		}
	}
	return nil, false
}

func sameTriple(r model.RelationRecord, subject string, t model.RelationType, object string) bool {
	return r.RelationType == t &&
		dedupe.Normalize(r.SubjectID) == dedupe.Normalize(subject) &&
		dedupe.Normalize(r.ObjectID) == dedupe.Normalize(object)
}

func (f *Fixture) CreateRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error {
	const op = "create_relation"
	if !t.AllowedFor(kind) {
		return apierr.Validationf(op, "Type de relation %s invalide pour %s", t, kind.Label())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.find(kind, subjectID); !ok {
		return apierr.New(apierr.Backend, op, errors.New(kind.Label()+" introuvable"))
	}
	if _, ok := f.find(t.TargetKind(), objectID); !ok {
		return apierr.New(apierr.Backend, op, errors.New(t.TargetKind().Label()+" introuvable"))
	}
	for _, r := range f.relations {
		if r.SubjectKind == kind && sameTriple(r, subjectID, t, objectID) {
			return apierr.New(apierr.Backend, op, errors.New("Relation déjà existante"))
		}
	}

	rec := model.RelationRecord{
		SubjectID: subjectID, SubjectKind: kind, RelationType: t,
		ObjectID: objectID, ObjectKind: t.TargetKind(),
	}
	if len(attrs) > 0 {
		rec.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			rec.Attributes[k] = v
		}
	}
	f.relations = append(f.relations, rec)
	return nil
}

// DeleteRelation removes every stored copy of the triple, drifted ids included.
func (f *Fixture) DeleteRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.relations[:0:0]
	for _, r := range f.relations {
		if r.SubjectKind == kind && sameTriple(r, subjectID, t, objectID) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == len(f.relations) {
		return apierr.New(apierr.Backend, "delete_relation", errors.New("Relation introuvable"))
	}
	f.relations = kept
	return nil
}

func matches(r model.RawRecord, filters []model.Filter) bool {
	for _, flt := range filters {
		field, ok := query.PropertyField(flt.Property)
		if !ok {
			continue
		}
		v, present := common.ParseFloat(r[field])
		switch {
		case !present && flt.AllowMissing:
		case !present:
			return false
		case !flt.Match(v):
			return false
		}
	}
	return true
}

// SemanticSearch filters the seed data with the keyword interpretation. Every
// hit carries the neutral score.
func (f *Fixture) SemanticSearch(ctx context.Context, text string) (*model.SearchResponse, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierr.Validationf("semantic_search", "Requête vide")
	}
	in := f.dispatcher.Interpret(ctx, text)
	generated, _ := driver.BuildSearchQuery(in, 50)

	f.mu.RLock()
	defer f.mu.RUnlock()
	results := []model.RawRecord{}
	for _, r := range f.entities[in.Kind] {
		if !matches(r, in.Filters) {
			continue
		}
		hit := cloneRecord(r)
		if _, ok := hit["type"]; !ok {
			hit["type"] = in.Kind.Label()
		}
		hit["score"] = 1.0
		results = append(results, hit)
	}
	return &model.SearchResponse{
		Results:         results,
		GeneratedSPARQL: generated,
		OriginalQuery:   text,
		Interpretation:  &in,
		Count:           len(results),
	}, nil
}

func (f *Fixture) SearchSuggestions(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.suggestions...), nil
}

func (f *Fixture) SearchStats(ctx context.Context) (*model.SearchStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := &model.SearchStats{ByKind: map[string]int{}}
	for kind, recs := range f.entities {
		if len(recs) == 0 {
			continue
		}
		stats.ByKind[kind.Label()] = len(recs)
		stats.TotalEntities += len(recs)
	}
	return stats, nil
}
