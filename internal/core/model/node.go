package model

import (
	"fmt"
	"strings"
)

// EntityKind is the closed set of entity types stored in the knowledge base.
type EntityKind int

const (
	KindUnknown EntityKind = iota
	KindPerson
	KindFood
	KindActivity
	KindNutrient
	KindRecipe
	KindMeal
	KindCondition
	KindAllergy
	KindPreference
	KindGoal
	KindProgram

	kindCount
)

type kindMeta struct {
	name       string
	prefix     string
	label      string
	collection string
	aliases    []string
}

// kinds is indexed by EntityKind; every kind must have an entry.
var kinds = [kindCount]kindMeta{
	KindUnknown:    {name: "Unknown", label: "Entité"},
	KindPerson:     {name: "Person", prefix: "personne_", label: "Personne", collection: "personnes", aliases: []string{"personne", "personnes"}},
	KindFood:       {name: "Food", prefix: "aliment_", label: "Aliment", collection: "aliments", aliases: []string{"aliment", "aliments"}},
	KindActivity:   {name: "Activity", prefix: "activite_", label: "Activité", collection: "activites", aliases: []string{"activite", "activites", "activitephysique", "activité"}},
	KindNutrient:   {name: "Nutrient", prefix: "nutriment_", label: "Nutriment", collection: "nutriments", aliases: []string{"nutriment", "nutriments"}},
	KindRecipe:     {name: "Recipe", prefix: "recette_", label: "Recette", collection: "recettes", aliases: []string{"recette", "recettes"}},
	KindMeal:       {name: "Meal", prefix: "repas_", label: "Repas", collection: "repas", aliases: []string{"repas"}},
	KindCondition:  {name: "Condition", prefix: "condition_", label: "Condition", collection: "conditions", aliases: []string{"conditions", "conditionmedicale"}},
	KindAllergy:    {name: "Allergy", prefix: "allergie_", label: "Allergie", collection: "allergies", aliases: []string{"allergie", "allergies"}},
	KindPreference: {name: "Preference", prefix: "preference_", label: "Préférence", collection: "preferences", aliases: []string{"preferences", "préférence", "preferencealimentaire"}},
	KindGoal:       {name: "Goal", prefix: "objectif_", label: "Objectif", collection: "objectifs", aliases: []string{"objectif", "objectifs"}},
	KindProgram:    {name: "Program", prefix: "programme_", label: "Programme", collection: "programmes", aliases: []string{"programme", "programmes"}},
}

var kindByAlias = func() map[string]EntityKind {
	m := make(map[string]EntityKind)
	for k := KindPerson; k < kindCount; k++ {
		meta := kinds[k]
		m[strings.ToLower(meta.name)] = k
		m[strings.ToLower(meta.label)] = k
		m[meta.collection] = k
		for _, a := range meta.aliases {
			m[a] = k
		}
	}
	return m
}()

// AllKinds lists every valid kind in declaration order.
func AllKinds() []EntityKind {
	out := make([]EntityKind, 0, kindCount-1)
	for k := KindPerson; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind accepts English names, French labels, REST collections and the
// type labels the search backend puts on results ("ActivitePhysique", …).
func ParseKind(s string) (EntityKind, bool) {
	k, ok := kindByAlias[strings.ToLower(strings.TrimSpace(s))]
	return k, ok
}

func (k EntityKind) Valid() bool { return k > KindUnknown && k < kindCount }

func (k EntityKind) meta() kindMeta {
	if k < 0 || k >= kindCount {
		return kinds[KindUnknown]
	}
	return kinds[k]
}

func (k EntityKind) String() string { return k.meta().name }

// Prefix is the identifier prefix the triple store gives entities of this kind.
func (k EntityKind) Prefix() string { return k.meta().prefix }

// Label is the French display label.
func (k EntityKind) Label() string { return k.meta().label }

// Collection is the REST path segment for the kind.
func (k EntityKind) Collection() string { return k.meta().collection }

// LegacyIDField is the subject field of the older relation wire shape, e.g.
// "alimentId".
func (k EntityKind) LegacyIDField() string {
	return strings.TrimSuffix(k.meta().prefix, "_") + "Id"
}

func (k EntityKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid entity kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EntityKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown entity kind %q", string(b))
	}
	*k = parsed
	return nil
}

// EntityRef identifies an entity by canonical id and carries its display name.
type EntityRef struct {
	Kind        EntityKind `json:"kind"`
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
}

// UnknownName is the placeholder shown for an id no catalog could resolve.
func UnknownName(kind EntityKind, id string) string {
	return fmt.Sprintf("%s inconnu (%s)", kind.Label(), id)
}

// EntityRecord is one entity as listed by GET /entities/{kind}.
type EntityRecord struct {
	ID     string            `json:"id"`
	Name   string            `json:"nom"`
	Fields map[string]string `json:"fields,omitempty"`
}

// RawRecord is an undecoded backend record whose scalars may be bare or wrapped.
type RawRecord map[string]any
