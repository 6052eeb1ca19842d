package search

import (
	"context"
	"sync"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/store"
)

type reply struct {
	resp *model.SearchResponse
	err  error
}

// MockBackend answers searches from Responses, or blocks on Gates[text] until
// the test releases a reply.
type MockBackend struct {
	mu             sync.Mutex
	Responses      map[string]*model.SearchResponse
	Errs           map[string]error
	Gates          map[string]chan reply
	Started        chan string
	Suggestions    []string
	SuggestionsErr error
	Stats          *model.SearchStats
	Queries        []string
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		Responses: map[string]*model.SearchResponse{},
		Errs:      map[string]error{},
		Gates:     map[string]chan reply{},
	}
}

func (m *MockBackend) SemanticSearch(ctx context.Context, text string) (*model.SearchResponse, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, text)
	gate := m.Gates[text]
	resp, err := m.Responses[text], m.Errs[text]
	started := m.Started
	m.mu.Unlock()

	if started != nil {
		started <- text
	}
	if gate != nil {
		r := <-gate
		return r.resp, r.err
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &model.SearchResponse{OriginalQuery: text}
	}
	return resp, nil
}

func (m *MockBackend) SearchSuggestions(ctx context.Context) ([]string, error) {
	return m.Suggestions, m.SuggestionsErr
}

func (m *MockBackend) SearchStats(ctx context.Context) (*model.SearchStats, error) {
	return m.Stats, nil
}

func respond(results ...model.RawRecord) *model.SearchResponse {
	return &model.SearchResponse{Results: results, Count: len(results)}
}

type MockReranker struct {
	Order []int
	Calls int
}

func (m *MockReranker) Rank(ctx context.Context, q string, docs []string) ([]int, error) {
	m.Calls++
	return m.Order, nil
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context, key string) ([]string, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) Save(ctx context.Context, key string, entries []string) error {
	return context.DeadlineExceeded
}
func (failingStore) Close() error { return nil }

// blockingStore holds every Save until release is closed.
type blockingStore struct {
	*store.MemoryStore
	saving  chan struct{}
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, key string, entries []string) error {
	b.saving <- struct{}{}
	<-b.release
	return b.MemoryStore.Save(ctx, key, entries)
}
