package server

import (
	"context"
	"fmt"

	"github.com/agenthands/nutrigraph/internal/core/model"
)

// wrap renders a scalar the way SPARQL-backed endpoints do.
func wrap(v string) map[string]any {
	return map[string]any{"type": "literal", "value": v}
}

// SeedEntities is a small knowledge base. Some ids carry a repeated prefix and
// some scalars are wrapped, as the production triple store emits them.
func SeedEntities() map[model.EntityKind][]model.RawRecord {
	return map[model.EntityKind][]model.RawRecord{
		model.KindPerson: {
			{"id": "personne_alice", "nom": "Alice", "âge": 64, "poids": 70, "taille": 162},
			{"id": "personne_personne_bob", "nom": "Bob", "âge": 32, "poids": 82},
		},
		model.KindFood: {
			{"id": "aliment_1", "nom": "Pomme", "calories": 52, "indexGlycemique": 38, "teneurFibres": 2.4, "teneurSodium": 1},
			{"id": "aliment_aliment_2", "nom": "Lentilles", "calories": 116, "indexGlycemique": 29, "teneurFibres": 7.9, "teneurSodium": 2},
			{"id": wrap("aliment_3"), "nom": wrap("Croissant"), "calories": wrap("406"), "indexGlycemique": wrap("67"), "teneurFibres": wrap("2.6"), "teneurSodium": wrap("450")},
			{"id": "aliment_4", "nom": "Brocoli", "calories": 34, "indexGlycemique": 15, "teneurFibres": 2.6, "teneurSodium": 33},
			{"id": "aliment_5", "nom": "Avocat", "calories": 160, "teneurFibres": 6.7, "teneurSodium": 7},
		},
		model.KindNutrient: {
			{"id": "nutriment_5", "nom": "Fibres"},
			{"id": "nutriment_6", "nom": "Potassium", "doseRecommandée": 3500},
			{"id": "nutriment_7", "nom": "Vitamine C", "doseRecommandée": 90, "unitéDose": "mg"},
		},
		model.KindRecipe: {
			{"id": "recette_1", "nom": "Compote", "tempsPréparation": 20, "niveauDifficulté": "facile", "calories": 90, "indexGlycemique": 40, "teneurFibres": 3},
			{"id": "recette_recette_2", "nom": "Salade de lentilles", "tempsPréparation": 15, "niveauDifficulté": "facile", "calories": 230, "teneurFibres": 9},
		},
		model.KindMeal: {
			{"id": "repas_1", "nom": "Petit-déjeuner"},
			{"id": "repas_2", "nom": "Déjeuner"},
		},
		model.KindActivity: {
			{"id": "activite_marche", "nom": "Marche", "dureeActivite": 30, "calories": 150},
			{"id": "activite_velo", "nom": "Vélo", "dureeActivite": 45, "calories": 400},
		},
		model.KindCondition: {
			{"id": "condition_diabete", "nom": "Diabète de type 2"},
		},
		model.KindAllergy: {
			{"id": "allergie_1", "nom": "Arachide", "typeAllergie": "alimentaire"},
		},
		model.KindPreference: {
			{"id": "preference_vegetarien", "nom": "Végétarien"},
		},
		model.KindGoal: {
			{"id": "objectif_perte_poids", "nom": "Perte de poids"},
		},
		model.KindProgram: {
			{"id": "programme_1", "nom": "Programme minceur"},
		},
	}
}

func SeedRelations() []model.RelationRecord {
	nutrient := func(subject, object, qty, unit string) model.RelationRecord {
		return model.RelationRecord{
			SubjectID: subject, SubjectKind: model.KindFood, RelationType: model.RelationNutrient,
			ObjectID: object, ObjectKind: model.KindNutrient,
			Attributes: map[string]string{model.AttrQuantity: qty, model.AttrUnit: unit},
		}
	}
	rel := func(kind model.EntityKind, subject string, t model.RelationType, object string) model.RelationRecord {
		return model.RelationRecord{SubjectID: subject, SubjectKind: kind, RelationType: t, ObjectID: object, ObjectKind: t.TargetKind()}
	}
	return []model.RelationRecord{
		nutrient("aliment_1", "nutriment_5", "2.4", "g"),
		nutrient("aliment_aliment_1", "nutriment_6", "107", "mg"),
		nutrient("aliment_2", "nutriment_5", "7.9", "g"),
		rel(model.KindFood, "aliment_1", model.RelationRecipe, "recette_1"),
		rel(model.KindFood, "aliment_2", model.RelationRecipe, "recette_2"),
		rel(model.KindFood, "aliment_4", model.RelationMeal, "repas_2"),
		rel(model.KindPerson, "personne_alice", model.RelationCondition, "condition_diabete"),
		rel(model.KindPerson, "personne_alice", model.RelationAllergy, "allergie_1"),
		rel(model.KindPerson, "personne_personne_bob", model.RelationGoal, "objectif_perte_poids"),
		rel(model.KindPerson, "personne_bob", model.RelationPreference, "preference_vegetarien"),
	}
}

// SeedSuggestions are the example questions the fixture offers.
var SeedSuggestions = []string{
	"Personnes de plus de 60 ans",
	"Aliments riches en fibres",
	"Recettes pour diabétiques",
	"Activités pour brûler des calories",
	"Aliments faibles en sodium",
}

// SeedWriter is a store the seed data can be written into.
type SeedWriter interface {
	SaveEntity(ctx context.Context, kind model.EntityKind, id string, props map[string]interface{}) error
	CreateRelation(ctx context.Context, kind model.EntityKind, subjectID string, t model.RelationType, objectID string, attrs map[string]string) error
}

// LoadSeed writes the seed data as stored, drifted ids included, and returns
// the number of entities written.
func LoadSeed(ctx context.Context, w SeedWriter) (int, error) {
	n := 0
	for _, kind := range model.AllKinds() {
		for _, r := range SeedEntities()[kind] {
			props := flatten(r)
			id, _ := props["id"].(string)
			if err := w.SaveEntity(ctx, kind, id, props); err != nil {
				return n, fmt.Errorf("failed to seed %s: %w", id, err)
			}
			n++
		}
	}
	for _, r := range SeedRelations() {
		if err := w.CreateRelation(ctx, r.SubjectKind, r.SubjectID, r.RelationType, r.ObjectID, r.Attributes); err != nil {
			return n, fmt.Errorf("failed to seed relation %s %s %s: %w", r.SubjectID, r.RelationType, r.ObjectID, err)
		}
	}
	return n, nil
}

// SeedIDs lists every stored seed entity id.
func SeedIDs() []string {
	var ids []string
	for _, recs := range SeedEntities() {
		for _, r := range recs {
			if id, ok := flatten(r)["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// flatten unwraps {value} scalars, which a property graph cannot hold as maps.
func flatten(r model.RawRecord) map[string]interface{} {
	props := make(map[string]interface{}, len(r))
	for k, v := range r {
		if m, ok := v.(map[string]any); ok {
			v = m["value"]
		}
		props[k] = v
	}
	return props
}
