package relations

import (
	"context"
	"sync"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/model"
)

type createCall struct {
	Kind      model.EntityKind
	SubjectID string
	Type      model.RelationType
	ObjectID  string
	Attrs     map[string]string
}

// MockSource records every backend call and serves canned relations.
type MockSource struct {
	mu        sync.Mutex
	Relations []model.RelationRecord
	ListErr   error
	CreateErr error
	DeleteErr error
	Lists     int
	Creates   []createCall
	Deletes   []createCall
}

func (m *MockSource) ListRelations(ctx context.Context, kind model.EntityKind) ([]model.RelationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lists++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]model.RelationRecord, len(m.Relations))
	copy(out, m.Relations)
	return out, nil
}

func (m *MockSource) CreateRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates = append(m.Creates, createCall{kind, subjectID, t, objectID, attrs})
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Relations = append(m.Relations, model.RelationRecord{SubjectID: subjectID, SubjectKind: kind, RelationType: t, ObjectID: objectID, Attributes: attrs})
	return nil
}

func (m *MockSource) DeleteRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes = append(m.Deletes, createCall{Kind: kind, SubjectID: subjectID, Type: t, ObjectID: objectID})
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	kept := m.Relations[:0]
	for _, r := range m.Relations {
		if r.SubjectID == subjectID && r.RelationType == t && r.ObjectID == objectID {
			continue
		}
		kept = append(kept, r)
	}
	m.Relations = kept
	return nil
}

type entitySource map[model.EntityKind][]model.RawRecord

func (s entitySource) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.RawRecord, error) {
	return s[kind], nil
}

func newTestCatalog(tb interface{ Helper() }) *catalog.Catalog {
	tb.Helper()
	src := entitySource{
		model.KindFood: {
			{"id": "aliment_1", "nom": "Pomme"},
			{"id": "aliment_2", "nom": "Banane"},
		},
		model.KindNutrient: {
			{"id": "nutriment_5", "nom": "Fibres"},
			{"id": "nutriment_6", "nom": "Potassium"},
		},
		model.KindRecipe: {
			{"id": "recette_1", "nom": "Compote"},
		},
		model.KindPerson: {
			{"id": "personne_alice", "nom": "Alice"},
		},
		model.KindAllergy: {
			{"id": "allergie_1", "nom": "Arachide"},
		},
	}
	c := catalog.New(src, nil, nil)
	_ = c.RefreshAll(context.Background())
	return c
}
