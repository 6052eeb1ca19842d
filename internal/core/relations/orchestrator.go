package relations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/dedupe"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/metric"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
)

// DefaultUnit is the unit given to a nutrient quantity when none is chosen.
const DefaultUnit = "g"

// Source is the relation side of the backend contract.
type Source interface {
	ListRelations(ctx context.Context, kind model.EntityKind) ([]model.RelationRecord, error)
	CreateRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error
	DeleteRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string) error
}

// Catalog is what the orchestrator needs from the entity caches.
type Catalog interface {
	catalog.Lookup
	Entries(kind model.EntityKind) []model.EntityRef
	Loaded(kind model.EntityKind) bool
	Refresh(ctx context.Context, kind model.EntityKind) ([]model.EntityRef, error)
	RefreshAll(ctx context.Context, kinds ...model.EntityKind) error
}

// Orchestrator manages the relations of one subject kind. Its grouped view is
// only ever replaced by a full re-fetch, never patched after a mutation.
type Orchestrator struct {
	kind    model.EntityKind
	source  Source
	catalog Catalog
	log     *logger.Logger
	metrics *metric.Metrics

	mu     sync.RWMutex
	groups []model.EntityRelationGroup
}

func NewOrchestrator(kind model.EntityKind, source Source, cat Catalog, log *logger.Logger, metrics *metric.Metrics) (*Orchestrator, error) {
	if len(model.RelationTypesFor(kind)) == 0 {
		return nil, fmt.Errorf("entity kind %s has no relation types", kind)
	}
	return &Orchestrator{
		kind:    kind,
		source:  source,
		catalog: cat,
		log:     logger.OrNop(log).With("component", "relations", "kind", kind.String()),
		metrics: metrics,
		groups:  []model.EntityRelationGroup{},
	}, nil
}

func (o *Orchestrator) Kind() model.EntityKind { return o.kind }

// Types lists the relation types valid for this orchestrator's subjects.
func (o *Orchestrator) Types() []model.RelationType { return model.RelationTypesFor(o.kind) }

// Load refreshes the subject catalog and every target catalog concurrently,
// then fetches the relations.
func (o *Orchestrator) Load(ctx context.Context) error {
	kinds := []model.EntityKind{o.kind}
	for _, t := range o.Types() {
		kinds = append(kinds, t.TargetKind())
	}
	if err := o.catalog.RefreshAll(ctx, kinds...); err != nil {
		o.log.Warn("catalog load incomplete", "error", err)
	}
	return o.Refresh(ctx)
}

// Refresh re-fetches every relation of the kind and rebuilds the grouped view.
// On failure the previous view is kept and the error returned.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	records, err := o.source.ListRelations(ctx, o.kind)
	if err != nil {
		return fmt.Errorf("failed to fetch %s relations: %w", o.kind, err)
	}

	for _, r := range dedupe.RepeatedRelations(records) {
		o.log.Warn("backend returned a repeated relation", "subject", r.SubjectID, "type", r.RelationType.String(), "object", r.ObjectID)
	}

	groups := Aggregate(records, o.catalog)

	o.mu.Lock()
	o.groups = groups
	o.mu.Unlock()
	return nil
}

// Groups returns the current grouped view.
func (o *Orchestrator) Groups() []model.EntityRelationGroup {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]model.EntityRelationGroup, len(o.groups))
	copy(out, o.groups)
	return out
}

// Group returns the grouped view of one subject.
func (o *Orchestrator) Group(subjectID string) (model.EntityRelationGroup, bool) {
	id := dedupe.Normalize(subjectID)
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, g := range o.groups {
		if g.Subject.ID == id {
			return g, true
		}
	}
	return model.EntityRelationGroup{}, false
}

// Options lists the entities a relation of type t may point at.
func (o *Orchestrator) Options(t model.RelationType) []model.EntityRef {
	if !t.Valid() {
		return nil
	}
	return o.catalog.Entries(t.TargetKind())
}

// Create validates the request locally, sends it, then re-fetches all relations.
// Validation failures never reach the backend.
func (o *Orchestrator) Create(ctx context.Context, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error {
	const op = "relations.create"

	subjectID = strings.TrimSpace(subjectID)
	objectID = strings.TrimSpace(objectID)
	switch {
	case subjectID == "":
		return apierr.Validationf(op, "subject is required")
	case !t.Valid():
		return apierr.Validationf(op, "relation type is required")
	case objectID == "":
		return apierr.Validationf(op, "target is required")
	}

	subjectKind := o.subjectKind(subjectID)
	if !t.AllowedFor(subjectKind) {
		return apierr.Validationf(op, "relation %s is not allowed for a %s", t, subjectKind.Label())
	}
	if subjectKind != o.kind {
		return apierr.Validationf(op, "subject %s is a %s, not a %s", subjectID, subjectKind.Label(), o.kind.Label())
	}

	target := t.TargetKind()
	if !o.catalog.Loaded(target) {
		if _, err := o.catalog.Refresh(ctx, target); err != nil {
			return fmt.Errorf("failed to load %s options: %w", target, err)
		}
	}
	if len(o.catalog.Entries(target)) == 0 {
		return apierr.Validationf(op, "no %s available", target.Label())
	}
	if _, ok := o.catalog.Resolve(target, objectID); !ok {
		return apierr.Validationf(op, "%s is not a valid %s", objectID, target.Label())
	}

	body, err := relationAttributes(op, t, attrs)
	if err != nil {
		return err
	}

	canonSubject := dedupe.Normalize(subjectID)
	canonObject := dedupe.Normalize(objectID)
	err = o.source.CreateRelation(ctx, o.kind, canonSubject, t, canonObject, body)
	o.metrics.RecordRelationMutation("create", err)
	if err != nil {
		o.log.Warn("create relation failed", "subject", canonSubject, "type", t.String(), "object", canonObject, "error", err)
		return err
	}
	o.log.Info("relation created", "subject", canonSubject, "type", t.String(), "object", canonObject)

	o.refreshAfterMutation(ctx)
	return nil
}

// Delete removes a relation. Deleting an absent relation comes back as the
// backend's error. The relation set is re-fetched whatever the outcome.
func (o *Orchestrator) Delete(ctx context.Context, subjectID string, t model.RelationType, objectID string) error {
	const op = "relations.delete"

	subjectID = strings.TrimSpace(subjectID)
	objectID = strings.TrimSpace(objectID)
	if subjectID == "" || !t.Valid() || objectID == "" {
		return apierr.Validationf(op, "subject, relation type and target are required")
	}

	canonSubject := dedupe.Normalize(subjectID)
	canonObject := dedupe.Normalize(objectID)
	err := o.source.DeleteRelation(ctx, o.kind, canonSubject, t, canonObject)
	o.metrics.RecordRelationMutation("delete", err)
	if err != nil {
		o.log.Warn("delete relation failed", "subject", canonSubject, "type", t.String(), "object", canonObject, "error", err)
	} else {
		o.log.Info("relation deleted", "subject", canonSubject, "type", t.String(), "object", canonObject)
	}

	o.refreshAfterMutation(ctx)
	return err
}

func (o *Orchestrator) refreshAfterMutation(ctx context.Context) {
	if err := o.Refresh(ctx); err != nil {
		o.log.Warn("refresh after mutation failed", "error", err)
	}
}

func (o *Orchestrator) subjectKind(subjectID string) model.EntityKind {
	if k, ok := dedupe.KindOf(dedupe.Normalize(subjectID)); ok {
		return k
	}
	return o.kind
}

func relationAttributes(op string, t model.RelationType, attrs map[string]string) (map[string]string, error) {
	if t != model.RelationNutrient {
		return nil, nil
	}
	out := map[string]string{}
	if q := strings.TrimSpace(attrs[model.AttrQuantity]); q != "" {
		v, ok := common.ParseFloat(q)
		if !ok || v <= 0 {
			return nil, apierr.Validationf(op, "quantity %q must be a positive number", q)
		}
		out[model.AttrQuantity] = q
	}
	unit := strings.TrimSpace(attrs[model.AttrUnit])
	if unit == "" {
		unit = DefaultUnit
	}
	out[model.AttrUnit] = unit
	return out, nil
}

// ErrIncompleteDraft is returned by Submit when a field is still empty.
var ErrIncompleteDraft = errors.New("relation draft is incomplete")

// Draft is the state of the "add relation" form for one subject.
type Draft struct {
	o         *Orchestrator
	SubjectID string
	Type      model.RelationType
	ObjectID  string
	Quantity  string
	Unit      string
}

func (o *Orchestrator) NewDraft(subjectID string) *Draft {
	return &Draft{o: o, SubjectID: subjectID, Unit: DefaultUnit}
}

// SelectType changes the relation type and clears the chosen target, whose
// option list belongs to the previous type.
func (d *Draft) SelectType(t model.RelationType) {
	d.Type = t
	d.ObjectID = ""
}

func (d *Draft) SelectObject(id string) { d.ObjectID = id }

func (d *Draft) Options() []model.EntityRef { return d.o.Options(d.Type) }

func (d *Draft) Ready() bool {
	return strings.TrimSpace(d.SubjectID) != "" && d.Type.Valid() && strings.TrimSpace(d.ObjectID) != ""
}

// Submit creates the relation and resets the draft on success.
func (d *Draft) Submit(ctx context.Context) error {
	if !d.Ready() {
		return apierr.New(apierr.Validation, "relations.create", ErrIncompleteDraft)
	}
	attrs := map[string]string{model.AttrQuantity: d.Quantity, model.AttrUnit: d.Unit}
	if err := d.o.Create(ctx, d.SubjectID, d.Type, d.ObjectID, attrs); err != nil {
		return err
	}
	d.Type = model.RelationUnknown
	d.ObjectID = ""
	d.Quantity = ""
	d.Unit = DefaultUnit
	return nil
}
