package dedupe

import (
	"testing"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"personne_personne_personne_alice", "personne_alice"},
		{"personne_alice", "personne_alice"},
		{"aliment_aliment_aliment_x7", "aliment_x7"},
		{"aliment_aliment_1", "aliment_1"},
		{"aliment_42", "aliment_42"},
		{"nutriment_nutriment_5", "nutriment_5"},
		{"repas_repas_midi", "repas_midi"},
		{"programme_programme_programme_p1", "programme_p1"},
		{"alice", "alice"},
		{"", ""},
		// Only runs anchored at the start collapse.
		{"x_aliment_aliment_1", "x_aliment_aliment_1"},
		// A local part that looks like another kind's prefix is left alone.
		{"aliment_recette_recette_1", "aliment_recette_recette_1"},
		{"Aliment_Aliment_1", "Aliment_Aliment_1"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Normalize(tc.in), tc.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"personne_personne_personne_alice",
		"aliment_aliment_",
		"aliment_",
		"preference_preference_vegan",
		"objectif_objectif_objectif_objectif_perte",
		"condition_",
		"random",
		"activite_activite_activite_marche",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)
	}
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf("activite_marche")
	assert.True(t, ok)
	assert.Equal(t, model.KindActivity, k)

	k, ok = KindOf(Normalize("recette_recette_soupe"))
	assert.True(t, ok)
	assert.Equal(t, model.KindRecipe, k)

	_, ok = KindOf("soupe")
	assert.False(t, ok)
}

func TestDuplicates(t *testing.T) {
	pairs := Duplicates([]string{
		"aliment_1",
		"aliment_aliment_1",
		"aliment_aliment_1",
		"aliment_aliment_aliment_1",
		"aliment_2",
	})

	assert.Equal(t, []model.DuplicatePair{
		{CanonicalID: "aliment_1", OriginalID: "aliment_1", DuplicateID: "aliment_aliment_1"},
		{CanonicalID: "aliment_1", OriginalID: "aliment_1", DuplicateID: "aliment_aliment_aliment_1"},
	}, pairs)
	assert.Empty(t, Duplicates([]string{"aliment_1", "aliment_2"}))
}

func TestRepeatedRelations(t *testing.T) {
	records := []model.RelationRecord{
		{SubjectID: "aliment_1", RelationType: model.RelationNutrient, ObjectID: "nutriment_5"},
		{SubjectID: "aliment_aliment_1", RelationType: model.RelationNutrient, ObjectID: "nutriment_5"},
		{SubjectID: "aliment_1", RelationType: model.RelationRecipe, ObjectID: "nutriment_5"},
	}

	repeated := RepeatedRelations(records)

	assert.Len(t, repeated, 1)
	assert.Equal(t, "aliment_aliment_1", repeated[0].SubjectID)
}
