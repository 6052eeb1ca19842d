// Package relations rebuilds per-entity relation views from flat triples and
// drives relation creation and deletion against the backend.
package relations

import (
	"sort"

	"github.com/agenthands/nutrigraph/internal/core/catalog"
	"github.com/agenthands/nutrigraph/internal/core/dedupe"
	"github.com/agenthands/nutrigraph/internal/core/model"
)

// Aggregate groups records by normalized subject id.
//
// Records keep the order the backend sent them in and are never deduplicated.
// Groups follow the catalog's natural order; subjects the catalog does not know
// come last, ordered by id, and are named after their id. lookup may be nil.
func Aggregate(records []model.RelationRecord, lookup catalog.Lookup) []model.EntityRelationGroup {
	groups := []model.EntityRelationGroup{}
	if len(records) == 0 {
		return groups
	}

	type slot struct {
		group    model.EntityRelationGroup
		rank     int
		resolved bool
	}
	byID := make(map[string]*slot)
	var order []*slot

	for _, r := range records {
		rec := normalizeRecord(r)

		s, ok := byID[rec.SubjectID]
		if !ok {
			s = &slot{group: model.EntityRelationGroup{
				Subject: model.EntityRef{Kind: rec.SubjectKind, ID: rec.SubjectID, DisplayName: rec.SubjectID},
			}}
			if lookup != nil {
				if ref, rank, found := lookup.ResolveRanked(rec.SubjectKind, rec.SubjectID); found {
					s.group.Subject, s.rank, s.resolved = ref, rank, true
				}
			}
			byID[rec.SubjectID] = s
			order = append(order, s)
		}

		if rec.ObjectName == "" {
			if lookup != nil {
				ref, _ := lookup.Resolve(rec.ObjectKind, rec.ObjectID)
				rec.ObjectName = ref.DisplayName
			} else {
				rec.ObjectName = model.UnknownName(rec.ObjectKind, rec.ObjectID)
			}
		}
		s.group.Relations = append(s.group.Relations, rec)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.resolved != b.resolved {
			return a.resolved
		}
		if a.group.Subject.Kind != b.group.Subject.Kind {
			return a.group.Subject.Kind < b.group.Subject.Kind
		}
		if a.resolved {
			return a.rank < b.rank
		}
		return a.group.Subject.ID < b.group.Subject.ID
	})

	for _, s := range order {
		groups = append(groups, s.group)
	}
	return groups
}

func normalizeRecord(r model.RelationRecord) model.RelationRecord {
	out := r
	out.SubjectID = dedupe.Normalize(r.SubjectID)
	out.ObjectID = dedupe.Normalize(r.ObjectID)

	if !out.SubjectKind.Valid() {
		if k, ok := dedupe.KindOf(out.SubjectID); ok {
			out.SubjectKind = k
		} else {
			out.SubjectKind = r.RelationType.SubjectKind()
		}
	}
	if !out.ObjectKind.Valid() {
		if t := r.RelationType.TargetKind(); t.Valid() {
			out.ObjectKind = t
		} else if k, ok := dedupe.KindOf(out.ObjectID); ok {
			out.ObjectKind = k
		}
	}
	if r.Attributes != nil {
		out.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}
