package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foodRecords() []model.RawRecord {
	return []model.RawRecord{
		{"id": map[string]any{"value": "aliment_aliment_2"}, "nom": map[string]any{"value": "Poire"}, "calories": "57"},
		{"id": "aliment_1", "nom": "Pomme", "calories": float64(52), "indexGlycemique": nil},
		{"id": "aliment_aliment_aliment_1", "nom": "Pomme (doublon)"},
		{"id": "aliment_3", "nom": "abricot"},
		{"nom": "sans identifiant"},
	}
}

func TestRefresh_NormalizesAndSorts(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindFood] = foodRecords()
	c := New(src, nil, nil)

	refs, err := c.Refresh(context.Background(), model.KindFood)
	require.NoError(t, err)

	assert.Equal(t, []model.EntityRef{
		{Kind: model.KindFood, ID: "aliment_3", DisplayName: "abricot"},
		{Kind: model.KindFood, ID: "aliment_2", DisplayName: "Poire"},
		{Kind: model.KindFood, ID: "aliment_1", DisplayName: "Pomme"},
	}, refs)

	rank, ok := c.Rank(model.KindFood, "aliment_aliment_1")
	require.True(t, ok)
	assert.Equal(t, 2, rank)

	fields, ok := c.Fields(model.KindFood, "aliment_1")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"calories": "52"}, fields)
}

func TestResolve(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindFood] = foodRecords()
	c := New(src, nil, nil)
	_, err := c.Refresh(context.Background(), model.KindFood)
	require.NoError(t, err)

	ref, ok := c.Resolve(model.KindFood, "aliment_aliment_aliment_2")
	assert.True(t, ok)
	assert.Equal(t, "Poire", ref.DisplayName)
	assert.Equal(t, "aliment_2", ref.ID)

	ref, ok = c.Resolve(model.KindNutrient, "nutriment_nutriment_9")
	assert.False(t, ok)
	assert.Equal(t, "nutriment_9", ref.ID)
	assert.Equal(t, "Nutriment inconnu (nutriment_9)", ref.DisplayName)
	assert.Contains(t, ref.DisplayName, ref.ID)
}

func TestResolveRanked(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindFood] = foodRecords()
	c := New(src, nil, nil)
	_, err := c.Refresh(context.Background(), model.KindFood)
	require.NoError(t, err)

	ref, rank, ok := c.ResolveRanked(model.KindFood, "aliment_aliment_2")
	require.True(t, ok)
	assert.Equal(t, "Poire", ref.DisplayName)
	wantRank, _ := c.Rank(model.KindFood, "aliment_2")
	assert.Equal(t, wantRank, rank)

	ref, _, ok = c.ResolveRanked(model.KindFood, "aliment_99")
	assert.False(t, ok)
	assert.Equal(t, "Aliment inconnu (aliment_99)", ref.DisplayName)
}

func TestRefresh_OverlappingRefreshesKeepNewest(t *testing.T) {
	src := NewMockSource()
	older := make(chan []model.RawRecord, 1)
	newer := make(chan []model.RawRecord, 1)
	src.Gates[model.KindFood] = []chan []model.RawRecord{older, newer}
	src.Started = make(chan model.EntityKind, 2)
	c := New(src, nil, nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, model.KindFood)
		first <- err
	}()
	<-src.Started

	second := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx, model.KindFood)
		second <- err
	}()
	<-src.Started

	newer <- []model.RawRecord{{"id": "aliment_2", "nom": "Poire"}}
	require.NoError(t, <-second)
	older <- []model.RawRecord{{"id": "aliment_1", "nom": "Pomme"}}
	require.NoError(t, <-first)

	entries := c.Entries(model.KindFood)
	require.Len(t, entries, 1)
	assert.Equal(t, "Poire", entries[0].DisplayName)
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindFood] = foodRecords()
	c := New(src, nil, nil)
	_, err := c.Refresh(context.Background(), model.KindFood)
	require.NoError(t, err)

	src.Errs[model.KindFood] = errors.New("backend down")
	_, err = c.Refresh(context.Background(), model.KindFood)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")

	assert.Len(t, c.Entries(model.KindFood), 3)
	assert.True(t, c.Loaded(model.KindFood))
}

func TestRefresh_ReplacesWholeList(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindFood] = foodRecords()
	c := New(src, nil, nil)
	_, err := c.Refresh(context.Background(), model.KindFood)
	require.NoError(t, err)

	src.Records[model.KindFood] = []model.RawRecord{{"id": "aliment_9", "nom": "Kiwi"}}
	_, err = c.Refresh(context.Background(), model.KindFood)
	require.NoError(t, err)

	assert.Equal(t, []model.EntityRef{{Kind: model.KindFood, ID: "aliment_9", DisplayName: "Kiwi"}}, c.Entries(model.KindFood))
	_, ok := c.Resolve(model.KindFood, "aliment_1")
	assert.False(t, ok)
}

func TestRefreshAll_IndependentKinds(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindFood] = foodRecords()
	src.Records[model.KindNutrient] = []model.RawRecord{{"id": "nutriment_5", "nom": "Fibres"}}
	src.Errs[model.KindPerson] = errors.New("timeout")
	c := New(src, nil, nil)

	err := c.RefreshAll(context.Background(), model.KindFood, model.KindNutrient, model.KindPerson)

	require.Error(t, err)
	assert.True(t, c.Loaded(model.KindFood))
	assert.True(t, c.Loaded(model.KindNutrient))
	assert.False(t, c.Loaded(model.KindPerson))
	assert.Nil(t, c.Entries(model.KindPerson))
}

func TestRefresh_NameFallsBackToID(t *testing.T) {
	src := NewMockSource()
	src.Records[model.KindGoal] = []model.RawRecord{{"id": "objectif_objectif_perte"}}
	c := New(src, nil, nil)

	refs, err := c.Refresh(context.Background(), model.KindGoal)
	require.NoError(t, err)
	assert.Equal(t, "objectif_perte", refs[0].DisplayName)
}
