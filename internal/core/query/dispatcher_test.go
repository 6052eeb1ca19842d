package query

import (
	"context"
	"errors"
	"testing"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords_EntityKinds(t *testing.T) {
	cases := map[string]model.EntityKind{
		"Aliments riches en fibres":               model.KindFood,
		"Recettes pour diabétiques":               model.KindRecipe,
		"Activités pour brûler des calories":      model.KindActivity,
		"Personnes de plus de 60 ans":             model.KindPerson,
		"Quels plats préparer ce soir":            model.KindRecipe,
		"quelque chose de bon":                    model.KindFood,
		"Quels sports pratiquer avec un patient ?": model.KindActivity,
	}
	for q, want := range cases {
		assert.Equal(t, want, Keywords(q).Kind, q)
	}
}

func TestKeywords_PropertyFilters(t *testing.T) {
	in := Keywords("Aliments riches en fibres")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, model.Filter{Property: PropFibres, Modifier: ModHigh, Op: model.OpGreaterEqual, Value: 5, AllowMissing: true}, in.Filters[0])
	assert.Equal(t, "filter", in.Intent)

	in = Keywords("aliments faibles en sodium")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, model.OpLessEqual, in.Filters[0].Op)
	assert.Equal(t, 50.0, in.Filters[0].Value)
	assert.True(t, in.Filters[0].AllowMissing)

	in = Keywords("index glycémique moyen")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, model.Filter{Property: PropGlycemic, Modifier: ModMedium, Op: model.OpBetween, Value: 55, Upper: 70}, in.Filters[0])

	for _, q := range []string{"aliments à index glycémique élevé", "aliments avec un ig élevé", "IG haut"} {
		in = Keywords(q)
		require.Len(t, in.Filters, 1, q)
		assert.Equal(t, model.Filter{Property: PropGlycemic, Modifier: ModHigh, Op: model.OpGreaterEqual, Value: 70}, in.Filters[0], q)
	}

	in = Keywords("calories élevées")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, model.Filter{Property: PropCalories, Modifier: ModHigh, Op: model.OpGreaterEqual, Value: 300}, in.Filters[0])

	in = Keywords("aliments caloriques")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, ModAny, in.Filters[0].Modifier)
	assert.Empty(t, in.Filters[0].Op)

	in = Keywords("beaucoup de sel")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, ModAny, in.Filters[0].Modifier, "no high threshold for sodium")
}

func TestKeywords_ModifiersMatchWholeWords(t *testing.T) {
	in := Keywords("recettes que je peux manger avec du sel")
	assert.Equal(t, model.KindRecipe, in.Kind)
	require.Len(t, in.Filters, 1)
	assert.Equal(t, PropSodium, in.Filters[0].Property)
	assert.Equal(t, ModAny, in.Filters[0].Modifier)
	assert.Empty(t, in.Filters[0].Op)

	in = Keywords("Aliments pauvres en sel")
	require.Len(t, in.Filters, 1)
	assert.Equal(t, ModLow, in.Filters[0].Modifier)
	assert.Equal(t, 50.0, in.Filters[0].Value)
}

func TestKeywords_ConditionShortcuts(t *testing.T) {
	in := Keywords("Recettes pour diabétiques")
	assert.Equal(t, []string{"diabète"}, in.Entities)
	assert.Equal(t, "condition", in.Intent)
	require.Len(t, in.Filters, 1)
	assert.Equal(t, 55.0, in.Filters[0].Value)

	in = Keywords("Quels aliments pour perdre du poids ?")
	require.Len(t, in.Filters, 2)
	assert.Equal(t, PropCalories, in.Filters[0].Property)
	assert.Equal(t, 200.0, in.Filters[0].Value)
	assert.Equal(t, PropFibres, in.Filters[1].Property)
	assert.Equal(t, 3.0, in.Filters[1].Value)

	in = Keywords("aliments pauvres en calories pour maigrir")
	require.Len(t, in.Filters, 2)
	assert.Equal(t, 150.0, in.Filters[0].Value, "explicit property wins over the shortcut")
}

type MockClassifier struct {
	Answer model.Interpretation
	Err    error
	Calls  int
}

func (m *MockClassifier) Classify(ctx context.Context, question string) (model.Interpretation, error) {
	m.Calls++
	return m.Answer, m.Err
}

func TestInterpret_ClassifierOnlyWithoutKeyword(t *testing.T) {
	mock := &MockClassifier{Answer: model.Interpretation{Kind: model.KindNutrient, Source: "llm"}}
	d := NewDispatcher(mock, nil)

	in := d.Interpret(context.Background(), "recettes légères")
	assert.Equal(t, model.KindRecipe, in.Kind)
	assert.Zero(t, mock.Calls)

	in = d.Interpret(context.Background(), "où trouver de la vitamine C")
	assert.Equal(t, model.KindNutrient, in.Kind)
	assert.Equal(t, "llm", in.Source)
	assert.Equal(t, 1, mock.Calls)
}

func TestInterpret_ClassifierErrorKeepsKeywords(t *testing.T) {
	d := NewDispatcher(&MockClassifier{Err: errors.New("rate limited")}, nil)

	in := d.Interpret(context.Background(), "quelque chose de léger en calories")

	assert.Equal(t, model.KindFood, in.Kind)
	assert.Equal(t, "keywords", in.Source)
	require.Len(t, in.Filters, 1)
	assert.Equal(t, 150.0, in.Filters[0].Value)
}
