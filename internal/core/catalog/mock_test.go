package catalog

import (
	"context"
	"sync"

	"github.com/agenthands/nutrigraph/internal/core/model"
)

// MockSource serves canned records per kind and counts calls. When Gates has
// channels queued for a kind, each call takes the next one and answers with
// whatever the test sends on it.
type MockSource struct {
	mu      sync.Mutex
	Records map[model.EntityKind][]model.RawRecord
	Errs    map[model.EntityKind]error
	Calls   map[model.EntityKind]int
	Gates   map[model.EntityKind][]chan []model.RawRecord
	Started chan model.EntityKind
}

func NewMockSource() *MockSource {
	return &MockSource{
		Records: map[model.EntityKind][]model.RawRecord{},
		Errs:    map[model.EntityKind]error{},
		Calls:   map[model.EntityKind]int{},
		Gates:   map[model.EntityKind][]chan []model.RawRecord{},
	}
}

func (m *MockSource) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.RawRecord, error) {
	m.mu.Lock()
	m.Calls[kind]++
	var gate chan []model.RawRecord
	if q := m.Gates[kind]; len(q) > 0 {
		gate, m.Gates[kind] = q[0], q[1:]
	}
	started := m.Started
	m.mu.Unlock()

	if started != nil {
		started <- kind
	}
	if gate != nil {
		return <-gate, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Errs[kind]; err != nil {
		return nil, err
	}
	return m.Records[kind], nil
}
