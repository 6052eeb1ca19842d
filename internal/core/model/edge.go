package model

import (
	"fmt"
	"strings"
)

// RelationType tags how a subject relates to its object. Each type belongs to
// exactly one subject kind.
type RelationType int

const (
	RelationUnknown RelationType = iota
	RelationAllergy
	RelationCondition
	RelationPreference
	RelationGoal
	RelationNutrient
	RelationMeal
	RelationRecipe

	relationTypeCount
)

// Tone replaces per-type colour and icon switches in the presentation layer.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneAlert
	ToneWarning
	TonePositive
	ToneInfo
	ToneAccent
)

func (t Tone) String() string {
	switch t {
	case ToneAlert:
		return "alert"
	case ToneWarning:
		return "warning"
	case TonePositive:
		return "positive"
	case ToneInfo:
		return "info"
	case ToneAccent:
		return "accent"
	default:
		return "neutral"
	}
}

type relationMeta struct {
	code        string
	subject     EntityKind
	target      EntityKind
	label       string
	displayName string
	tone        Tone
}

var relationTypes = [relationTypeCount]relationMeta{
	RelationUnknown:    {code: "", label: "", displayName: "Relation"},
	RelationAllergy:    {code: "ALLERGIE", subject: KindPerson, target: KindAllergy, label: "Allergie", displayName: "Allergie", tone: ToneAlert},
	RelationCondition:  {code: "CONDITION", subject: KindPerson, target: KindCondition, label: "Condition médicale", displayName: "Condition médicale", tone: ToneWarning},
	RelationPreference: {code: "PREFERENCE", subject: KindPerson, target: KindPreference, label: "Préférence", displayName: "Préférence alimentaire", tone: TonePositive},
	RelationGoal:       {code: "OBJECTIF", subject: KindPerson, target: KindGoal, label: "Objectif", displayName: "Objectif", tone: ToneInfo},
	RelationNutrient:   {code: "NUTRIMENT", subject: KindFood, target: KindNutrient, label: "contient", displayName: "Nutriment", tone: ToneInfo},
	RelationMeal:       {code: "REPAS", subject: KindFood, target: KindMeal, label: "est dans le repas", displayName: "Repas", tone: TonePositive},
	RelationRecipe:     {code: "RECETTE", subject: KindFood, target: KindRecipe, label: "est dans la recette", displayName: "Recette", tone: ToneAccent},
}

// ParseRelationType reads a wire code such as "NUTRIMENT" (case-insensitive).
func ParseRelationType(s string) (RelationType, bool) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if code == "" {
		return RelationUnknown, false
	}
	for t := RelationAllergy; t < relationTypeCount; t++ {
		if relationTypes[t].code == code {
			return t, true
		}
	}
	return RelationUnknown, false
}

// RelationTypesFor lists the relation types a subject of the given kind may take.
func RelationTypesFor(kind EntityKind) []RelationType {
	var out []RelationType
	for t := RelationAllergy; t < relationTypeCount; t++ {
		if relationTypes[t].subject == kind {
			out = append(out, t)
		}
	}
	return out
}

// RelationSubjectKinds lists the kinds that own a relation taxonomy.
func RelationSubjectKinds() []EntityKind {
	seen := map[EntityKind]bool{}
	var out []EntityKind
	for t := RelationAllergy; t < relationTypeCount; t++ {
		k := relationTypes[t].subject
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (t RelationType) Valid() bool { return t > RelationUnknown && t < relationTypeCount }

func (t RelationType) meta() relationMeta {
	if t < 0 || t >= relationTypeCount {
		return relationTypes[RelationUnknown]
	}
	return relationTypes[t]
}

func (t RelationType) String() string { return t.meta().code }

// SubjectKind is the only kind whose entities may carry this relation type.
func (t RelationType) SubjectKind() EntityKind { return t.meta().subject }

// TargetKind is the kind of entity the relation points at.
func (t RelationType) TargetKind() EntityKind { return t.meta().target }

// Label is the relation phrase, e.g. "contient".
func (t RelationType) Label() string { return t.meta().label }

func (t RelationType) DisplayName() string { return t.meta().displayName }

func (t RelationType) Tone() Tone { return t.meta().tone }

// AllowedFor reports whether a subject of kind may carry this relation type.
func (t RelationType) AllowedFor(kind EntityKind) bool {
	return t.Valid() && t.meta().subject == kind
}

func (t RelationType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid relation type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *RelationType) UnmarshalText(b []byte) error {
	parsed, ok := ParseRelationType(string(b))
	if !ok {
		return fmt.Errorf("unknown relation type %q", string(b))
	}
	*t = parsed
	return nil
}

// RelationRecord is one (subject, relation type, object) triple from the backend.
// Ids are raw until the aggregator normalizes them.
type RelationRecord struct {
	SubjectID    string            `json:"subjectId"`
	SubjectKind  EntityKind        `json:"subjectKind"`
	RelationType RelationType      `json:"relationType"`
	ObjectID     string            `json:"objectId"`
	ObjectKind   EntityKind        `json:"objectKind"`
	ObjectName   string            `json:"objectName,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// EntityRelationGroup is the per-subject view of its relations. Groups are
// rebuilt on every fetch and never patched in place.
type EntityRelationGroup struct {
	Subject   EntityRef        `json:"subject"`
	Relations []RelationRecord `json:"relations"`
}

// Count returns the number of relations of the given type in the group.
func (g EntityRelationGroup) Count(t RelationType) int {
	n := 0
	for _, r := range g.Relations {
		if r.RelationType == t {
			n++
		}
	}
	return n
}

// Relation attribute keys used by the food–nutrient taxonomy.
const (
	AttrQuantity = "quantite"
	AttrUnit     = "unite"
)
