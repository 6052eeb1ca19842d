package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/platform/apierr"
	"github.com/agenthands/nutrigraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apple() model.RawRecord {
	return model.RawRecord{"id": "aliment_1", "nom": "Pomme", "type": "Aliment", "score": 1.0}
}

func TestSearch_BlankIsNoop(t *testing.T) {
	b := NewMockBackend()
	s := NewSession(context.Background(), b, Options{})

	require.NoError(t, s.Search(context.Background(), "   \t"))
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, b.Queries)
}

func TestSearch_PopulatedEmptyFailed(t *testing.T) {
	b := NewMockBackend()
	b.Responses["fibres"] = respond(apple())
	b.Errs["panne"] = apierr.New(apierr.Transport, "search", errors.New("connection refused"))
	s := NewSession(context.Background(), b, Options{})
	ctx := context.Background()

	require.NoError(t, s.Search(ctx, "fibres"))
	assert.Equal(t, StatePopulated, s.State())
	require.Len(t, s.Results(), 1)
	assert.Equal(t, "Pomme", s.Results()[0].Entity.DisplayName)

	require.NoError(t, s.Search(ctx, "rien"))
	assert.Equal(t, StateEmpty, s.State())
	assert.Empty(t, s.Results())
	assert.NoError(t, s.Err())

	err := s.Search(ctx, "panne")
	require.Error(t, err)
	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, err, s.Err())
	assert.Equal(t, "panne", s.LastQuery())

	assert.Equal(t, []string{"fibres"}, s.History(), "only populated searches enter history")
}

func TestHistory_MoveToFrontNoDuplicates(t *testing.T) {
	b := NewMockBackend()
	b.Responses["a"] = respond(apple())
	b.Responses["b"] = respond(apple())
	hist := store.NewMemoryStore()
	s := NewSession(context.Background(), b, Options{History: hist})
	ctx := context.Background()

	require.NoError(t, s.Search(ctx, "a"))
	require.NoError(t, s.Search(ctx, "b"))
	require.NoError(t, s.Search(ctx, "a"))

	assert.Equal(t, []string{"a", "b"}, s.History())
	persisted, err := hist.Load(ctx, HistoryKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, persisted)
}

func TestHistory_MaxTen(t *testing.T) {
	b := NewMockBackend()
	s := NewSession(context.Background(), b, Options{})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		q := fmt.Sprintf("q%d", i)
		b.Responses[q] = respond(apple())
		require.NoError(t, s.Search(ctx, q))
	}

	h := s.History()
	assert.Len(t, h, 10)
	assert.Equal(t, "q11", h[0])
	assert.Equal(t, "q2", h[9])
	assert.Equal(t, []string{"q11", "q10", "q9", "q8", "q7"}, s.RecentHistory(5))
}

func TestHistory_SurvivesSessions(t *testing.T) {
	b := NewMockBackend()
	b.Responses["aliments riches en fibres"] = respond(apple())
	hist := store.NewMemoryStore()
	ctx := context.Background()

	first := NewSession(ctx, b, Options{History: hist})
	require.NoError(t, first.Search(ctx, "aliments riches en fibres"))
	first.Close()

	second := NewSession(ctx, b, Options{History: hist})
	assert.Equal(t, []string{"aliments riches en fibres"}, second.History())
	assert.Empty(t, second.Results())
}

func TestHistory_StoreFailureIsNotFatal(t *testing.T) {
	b := NewMockBackend()
	b.Responses["a"] = respond(apple())
	s := NewSession(context.Background(), b, Options{History: failingStore{}})

	require.NoError(t, s.Search(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, s.History())
}

func TestSearch_StaleResponseDropped(t *testing.T) {
	b := NewMockBackend()
	b.Started = make(chan string, 2)
	gateX := make(chan reply, 1)
	gateY := make(chan reply, 1)
	b.Gates["x"] = gateX
	b.Gates["y"] = gateY
	s := NewSession(context.Background(), b, Options{})
	ctx := context.Background()

	errX := make(chan error, 1)
	go func() { errX <- s.Search(ctx, "x") }()
	require.Equal(t, "x", <-b.Started)

	errY := make(chan error, 1)
	go func() { errY <- s.Search(ctx, "y") }()
	require.Equal(t, "y", <-b.Started)

	gateY <- reply{resp: respond(model.RawRecord{"id": "aliment_2", "nom": "Poire"})}
	require.NoError(t, <-errY)

	gateX <- reply{resp: respond(apple())}
	assert.ErrorIs(t, <-errX, ErrSuperseded)

	assert.Equal(t, "y", s.LastQuery())
	require.Len(t, s.Results(), 1)
	assert.Equal(t, "Poire", s.Results()[0].Entity.DisplayName)
	assert.Equal(t, []string{"y"}, s.History())
	assert.Equal(t, StatePopulated, s.State())
}

func TestSearch_StaleFailureDropped(t *testing.T) {
	b := NewMockBackend()
	b.Started = make(chan string, 2)
	gateX := make(chan reply, 1)
	b.Gates["x"] = gateX
	b.Responses["y"] = respond(apple())
	s := NewSession(context.Background(), b, Options{})
	ctx := context.Background()

	errX := make(chan error, 1)
	go func() { errX <- s.Search(ctx, "x") }()
	require.Equal(t, "x", <-b.Started)

	require.NoError(t, s.Search(ctx, "y"))
	<-b.Started

	gateX <- reply{err: errors.New("timeout")}
	assert.ErrorIs(t, <-errX, ErrSuperseded)
	assert.Equal(t, StatePopulated, s.State())
	assert.NoError(t, s.Err())
}

func TestSuggestions(t *testing.T) {
	ctx := context.Background()

	b := NewMockBackend()
	b.Suggestions = []string{"Recettes rapides à préparer", " "}
	assert.Equal(t, []string{"Recettes rapides à préparer"}, NewSession(ctx, b, Options{}).Suggestions())

	b = NewMockBackend()
	b.SuggestionsErr = errors.New("down")
	assert.Equal(t, DefaultSuggestions, NewSession(ctx, b, Options{}).Suggestions())

	b = NewMockBackend()
	assert.Equal(t, DefaultSuggestions, NewSession(ctx, b, Options{}).Suggestions())
}

func TestSearchSuggestion(t *testing.T) {
	b := NewMockBackend()
	b.Responses[DefaultSuggestions[0]] = respond(apple())
	s := NewSession(context.Background(), b, Options{})

	require.NoError(t, s.SearchSuggestion(context.Background(), 0))
	assert.Equal(t, DefaultSuggestions[0], s.LastQuery())
	assert.Equal(t, DefaultSuggestions[0], s.QueryText())
	require.NoError(t, s.SearchSuggestion(context.Background(), 99))
}

func TestInterpretation(t *testing.T) {
	b := NewMockBackend()
	b.Responses["recettes pour diabétiques"] = respond(model.RawRecord{"id": "recette_1", "nom": "Soupe"})
	backendInterp := &model.Interpretation{Kind: model.KindPerson, Intent: "age_filter"}
	b.Responses["personnes de plus de 60 ans"] = &model.SearchResponse{
		Results:        []model.RawRecord{{"id": "personne_1", "nom": "Jean"}},
		Interpretation: backendInterp,
	}
	s := NewSession(context.Background(), b, Options{})
	ctx := context.Background()

	require.NoError(t, s.Search(ctx, "recettes pour diabétiques"))
	in := s.Interpretation()
	assert.Equal(t, model.KindRecipe, in.Kind)
	assert.Equal(t, "keywords", in.Source)
	assert.Equal(t, []string{"diabète"}, in.Entities)

	require.NoError(t, s.Search(ctx, "personnes de plus de 60 ans"))
	in = s.Interpretation()
	assert.Equal(t, "age_filter", in.Intent)
	assert.Equal(t, "backend", in.Source)
}

func TestRerankOnlyWhenScoresNeutral(t *testing.T) {
	b := NewMockBackend()
	b.Responses["neutre"] = respond(
		model.RawRecord{"id": "aliment_1", "nom": "Pomme", "score": 1.0},
		model.RawRecord{"id": "aliment_2", "nom": "Lentilles", "score": map[string]any{"value": "1.0"}},
	)
	b.Responses["classé"] = respond(
		model.RawRecord{"id": "aliment_1", "nom": "Pomme", "score": 2.3},
		model.RawRecord{"id": "aliment_2", "nom": "Lentilles", "score": 1.1},
	)
	rr := &MockReranker{Order: []int{1, 0}}
	s := NewSession(context.Background(), b, Options{Reranker: rr})
	ctx := context.Background()

	require.NoError(t, s.Search(ctx, "neutre"))
	assert.Equal(t, "Lentilles", s.Results()[0].Entity.DisplayName)
	assert.Equal(t, 1, rr.Calls)

	require.NoError(t, s.Search(ctx, "classé"))
	assert.Equal(t, "Pomme", s.Results()[0].Entity.DisplayName)
	assert.Equal(t, 1, rr.Calls)
}

func TestResetAndClose(t *testing.T) {
	b := NewMockBackend()
	b.Responses["a"] = respond(apple())
	s := NewSession(context.Background(), b, Options{})
	ctx := context.Background()
	require.NoError(t, s.Search(ctx, "a"))

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Results())
	assert.Equal(t, []string{"a"}, s.History())

	s.Close()
	assert.ErrorIs(t, s.Search(ctx, "a"), ErrClosed)
}

func TestSearch_ClosedWhileInFlight(t *testing.T) {
	b := NewMockBackend()
	b.Started = make(chan string, 1)
	gate := make(chan reply, 1)
	b.Gates["a"] = gate
	s := NewSession(context.Background(), b, Options{})

	errA := make(chan error, 1)
	go func() { errA <- s.Search(context.Background(), "a") }()
	require.Equal(t, "a", <-b.Started)

	s.Close()
	gate <- reply{resp: respond(apple())}
	assert.ErrorIs(t, <-errA, ErrClosed)
	assert.Empty(t, s.History())
}

func TestSearch_HistorySavedOutsideStateLock(t *testing.T) {
	b := NewMockBackend()
	b.Responses["a"] = respond(apple())
	hs := &blockingStore{MemoryStore: store.NewMemoryStore(), saving: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(context.Background(), b, Options{History: hs})

	done := make(chan error, 1)
	go func() { done <- s.Search(context.Background(), "a") }()
	<-hs.saving

	read := make(chan State, 1)
	go func() { read <- s.State() }()
	select {
	case st := <-read:
		assert.Equal(t, StatePopulated, st)
	case <-time.After(time.Second):
		t.Fatal("State blocked on the history store")
	}
	assert.Len(t, s.Results(), 1)

	close(hs.release)
	require.NoError(t, <-done)
	saved, err := hs.Load(context.Background(), HistoryKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, saved)
}

func TestStats(t *testing.T) {
	b := NewMockBackend()
	b.Stats = &model.SearchStats{TotalEntities: 3, ByKind: map[string]int{"Aliment": 3}}
	s := NewSession(context.Background(), b, Options{})

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalEntities)
}
