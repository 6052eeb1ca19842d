// Package dedupe canonicalizes the entity identifiers coming out of the triple
// store and reports identifiers that drifted apart.
package dedupe

import (
	"strings"

	"github.com/agenthands/nutrigraph/internal/core/model"
)

type prefixEntry struct {
	prefix string
	kind   model.EntityKind
}

var prefixes = func() []prefixEntry {
	out := make([]prefixEntry, 0, len(model.AllKinds()))
	for _, k := range model.AllKinds() {
		out = append(out, prefixEntry{prefix: k.Prefix(), kind: k})
	}
	return out
}()

// Normalize collapses a run of two or more copies of a known prefix at the
// start of raw into a single copy. Anything else is returned unchanged, so
// "aliment_aliment_aliment_x7" becomes "aliment_x7" and "aliment_42" stays.
func Normalize(raw string) string {
	for _, p := range prefixes {
		n := runLength(raw, p.prefix)
		if n >= 2 {
			return raw[(n-1)*len(p.prefix):]
		}
		if n == 1 {
			// Only one prefix can anchor the string.
			return raw
		}
	}
	return raw
}

func runLength(s, prefix string) int {
	n := 0
	for strings.HasPrefix(s, prefix) {
		s = s[len(prefix):]
		n++
	}
	return n
}

// KindOf returns the kind implied by the identifier's prefix.
func KindOf(id string) (model.EntityKind, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(id, p.prefix) {
			return p.kind, true
		}
	}
	return model.KindUnknown, false
}

// Duplicates reports distinct raw identifiers that normalize to the same
// canonical id. The first raw spelling seen is the original.
func Duplicates(ids []string) []model.DuplicatePair {
	first := make(map[string]string, len(ids))
	reported := make(map[string]bool)
	var pairs []model.DuplicatePair
	for _, raw := range ids {
		canon := Normalize(raw)
		orig, seen := first[canon]
		if !seen {
			first[canon] = raw
			continue
		}
		if orig == raw || reported[raw] {
			continue
		}
		reported[raw] = true
		pairs = append(pairs, model.DuplicatePair{CanonicalID: canon, OriginalID: orig, DuplicateID: raw})
	}
	return pairs
}

type relationKey struct {
	subject string
	typ     model.RelationType
	object  string
}

// RepeatedRelations returns the records that repeat an earlier
// (subject, relation type, object) triple once ids are normalized. Callers log
// them; the records themselves are kept.
func RepeatedRelations(records []model.RelationRecord) []model.RelationRecord {
	seen := make(map[relationKey]bool, len(records))
	var repeated []model.RelationRecord
	for _, r := range records {
		k := relationKey{Normalize(r.SubjectID), r.RelationType, Normalize(r.ObjectID)}
		if seen[k] {
			repeated = append(repeated, r)
			continue
		}
		seen[k] = true
	}
	return repeated
}
