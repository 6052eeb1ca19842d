package app

import (
	"context"
	"testing"

	"github.com/agenthands/nutrigraph/internal/backend"
	"github.com/agenthands/nutrigraph/internal/config"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Fixture(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Source = "fixture"

	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	assert.IsType(t, &server.Fixture{}, a.Source)
	assert.Nil(t, a.Reranker)

	orch, err := a.NewOrchestrator(model.KindPerson)
	require.NoError(t, err)
	require.NoError(t, orch.Load(ctx))
	alice, ok := orch.Group("personne_alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", alice.Subject.DisplayName)

	s, err := a.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Search(ctx, "Aliments riches en fibres"))
	assert.Len(t, s.Results(), 2)

	again, err := a.OpenHistory(ctx)
	require.NoError(t, err)
	assert.Same(t, a.History, again)
}

func TestNew_RestByDefault(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, config.Default(), nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	assert.IsType(t, &backend.Client{}, a.Source)
}

func TestNew_UnknownLLMProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "mystery"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
