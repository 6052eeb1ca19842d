package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/dedupe"
	"github.com/agenthands/nutrigraph/internal/core/model"
)

// neutralScore is what the backend sends when ranking carries no information.
const neutralScore = 1.0

// Resolver names entities the backend returned without a "nom".
type Resolver interface {
	Resolve(kind model.EntityKind, id string) (model.EntityRef, bool)
}

var reservedFields = map[string]bool{"id": true, "nom": true, "type": true, "score": true}

// FormatResult turns one backend record into a SearchResult. Scalars are read
// through common.ExtractScalar, so bare and {value} wrapped fields are equal.
func FormatResult(raw model.RawRecord, fallback model.EntityKind, resolver Resolver) model.SearchResult {
	rawID, _ := common.ExtractScalar(raw["id"])
	id := dedupe.Normalize(strings.TrimSpace(rawID))

	kind := fallback
	if label, ok := common.ExtractScalar(raw["type"]); ok {
		if k, ok := model.ParseKind(label); ok {
			kind = k
		} else if k, ok := dedupe.KindOf(id); ok {
			kind = k
		}
	} else if k, ok := dedupe.KindOf(id); ok {
		kind = k
	}

	name, ok := common.ExtractScalar(raw["nom"])
	if !ok || strings.TrimSpace(name) == "" {
		switch {
		case resolver != nil:
			ref, _ := resolver.Resolve(kind, id)
			name = ref.DisplayName
		case id != "":
			name = id
		default:
			name = model.UnknownName(kind, "?")
		}
	}

	res := model.SearchResult{
		Entity: model.EntityRef{Kind: kind, ID: id, DisplayName: name},
		Fields: map[string]string{},
	}
	if score, ok := common.ParseFloat(raw["score"]); ok {
		res.Score = &score
	}
	for k, v := range common.ExtractFields(raw) {
		if !reservedFields[k] {
			res.Fields[k] = v
		}
	}
	return res
}

// ScoreBadge returns the score text to show, or false when the score is
// absent or equal to the neutral 1.0.
func ScoreBadge(r model.SearchResult) (string, bool) {
	if r.Score == nil || *r.Score == neutralScore {
		return "", false
	}
	return strconv.FormatFloat(*r.Score, 'f', 1, 64), true
}

// Detail is one labelled, unit-suffixed attribute line of a result.
type Detail struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type detailSpec struct {
	field  string
	label  string
	format func(v string, fields map[string]string) string
}

func suffix(unit string) func(string, map[string]string) string {
	return func(v string, _ map[string]string) string { return v + unit }
}

func plain(v string, _ map[string]string) string { return v }

var detailSpecs = []detailSpec{
	{"âge", "Âge", suffix(" ans")},
	{"poids", "Poids", suffix(" kg")},
	{"taille", "Taille", suffix(" cm")},
	{"calories", "Calories", suffix(" kcal")},
	{"indexGlycemique", "Index Glycémique", plain},
	{"teneurFibres", "Fibres", suffix("g")},
	{"teneurSodium", "Sodium", suffix("mg")},
	{"dureeActivite", "Durée", suffix(" min")},
	{"tempsPréparation", "Préparation", suffix(" min")},
	{"niveauDifficulté", "Difficulté", plain},
	{"doseRecommandée", "Dose Recommandée", func(v string, f map[string]string) string {
		unit := f["unitéDose"]
		if unit == "" {
			unit = "mg"
		}
		return fmt.Sprintf("%s %s", v, unit)
	}},
	{"typeAllergie", "Type", plain},
}

// Details lists the known attributes of a result in display order. Empty
// values are skipped.
func Details(r model.SearchResult) []Detail {
	var out []Detail
	for _, spec := range detailSpecs {
		v := strings.TrimSpace(r.Fields[spec.field])
		if v == "" {
			continue
		}
		out = append(out, Detail{Field: spec.field, Label: spec.label, Value: spec.format(v, r.Fields)})
	}
	return out
}

// HistoryLabel shortens a history entry for display.
func HistoryLabel(entry string) string {
	const max = 40
	runes := []rune(entry)
	if len(runes) <= max {
		return entry
	}
	return string(runes[:max]) + "..."
}

// describe builds the text the reranker sees for a result.
func describe(r model.SearchResult) string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", r.Entity.DisplayName, r.Entity.Kind.Label())
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, r.Fields[k])
	}
	return b.String()
}
