// Package catalog caches the entity lists of each kind and resolves raw
// identifiers to display names.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/nutrigraph/internal/core/common"
	"github.com/agenthands/nutrigraph/internal/core/dedupe"
	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/metric"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
)

// Source lists the entities of one kind, as GET /entities/{kind} does.
type Source interface {
	ListEntities(ctx context.Context, kind model.EntityKind) ([]model.RawRecord, error)
}

// Lookup is the read side of the catalog used by the relation aggregator.
type Lookup interface {
	Resolve(kind model.EntityKind, id string) (model.EntityRef, bool)
	// ResolveRanked returns the ref and its rank from the same snapshot.
	ResolveRanked(kind model.EntityKind, id string) (model.EntityRef, int, bool)
}

type snapshot struct {
	gen      uint64
	refs     []model.EntityRef
	fields   []map[string]string
	index    map[string]int
	loadedAt time.Time
}

// Catalog keeps one independent snapshot per kind. A snapshot is replaced as a
// whole by Refresh and stays usable until then.
type Catalog struct {
	source  Source
	log     *logger.Logger
	metrics *metric.Metrics

	mu        sync.RWMutex
	snapshots map[model.EntityKind]*snapshot
	issued    map[model.EntityKind]uint64
}

func New(source Source, log *logger.Logger, metrics *metric.Metrics) *Catalog {
	return &Catalog{
		source:    source,
		log:       logger.OrNop(log).With("component", "catalog"),
		metrics:   metrics,
		snapshots: make(map[model.EntityKind]*snapshot),
		issued:    make(map[model.EntityKind]uint64),
	}
}

// Refresh reloads the whole list for kind. On error the previous snapshot is
// kept. When refreshes of one kind overlap, the one started last wins whatever
// the order their answers arrive in.
func (c *Catalog) Refresh(ctx context.Context, kind model.EntityKind) ([]model.EntityRef, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("refresh catalog: invalid kind %d", int(kind))
	}

	c.mu.Lock()
	c.issued[kind]++
	gen := c.issued[kind]
	c.mu.Unlock()

	records, err := c.source.ListEntities(ctx, kind)
	c.metrics.RecordCatalogRefresh(kind.String(), err)
	if err != nil {
		c.log.Warn("catalog refresh failed", "kind", kind.String(), "error", err)
		return nil, fmt.Errorf("failed to refresh %s catalog: %w", kind, err)
	}

	snap := c.build(kind, records)
	snap.gen = gen

	c.mu.Lock()
	if cur := c.snapshots[kind]; cur != nil && cur.gen > gen {
		c.mu.Unlock()
		c.log.Debug("dropping stale catalog refresh", "kind", kind.String())
		return cloneRefs(cur.refs), nil
	}
	c.snapshots[kind] = snap
	c.mu.Unlock()

	c.log.Debug("catalog refreshed", "kind", kind.String(), "entries", len(snap.refs))
	return cloneRefs(snap.refs), nil
}

// RefreshAll refreshes several kinds concurrently. Each kind succeeds or fails
// on its own; the first error is returned after all refreshes finish.
func (c *Catalog) RefreshAll(ctx context.Context, kinds ...model.EntityKind) error {
	if len(kinds) == 0 {
		kinds = model.AllKinds()
	}
	var g errgroup.Group
	for _, k := range kinds {
		g.Go(func() error {
			_, err := c.Refresh(ctx, k)
			return err
		})
	}
	return g.Wait()
}

func (c *Catalog) build(kind model.EntityKind, records []model.RawRecord) *snapshot {
	type entry struct {
		ref    model.EntityRef
		fields map[string]string
	}

	var (
		entries []entry
		rawIDs  []string
		seen    = make(map[string]bool, len(records))
	)
	for _, rec := range records {
		raw, ok := common.ExtractScalar(rec["id"])
		if !ok || strings.TrimSpace(raw) == "" {
			c.log.Warn("catalog record without id", "kind", kind.String())
			continue
		}
		rawIDs = append(rawIDs, raw)
		id := dedupe.Normalize(raw)
		if seen[id] {
			continue
		}
		seen[id] = true

		name, ok := common.ExtractScalar(rec["nom"])
		if !ok || strings.TrimSpace(name) == "" {
			name = id
		}
		fields := common.ExtractFields(rec)
		delete(fields, "id")
		delete(fields, "nom")
		entries = append(entries, entry{
			ref:    model.EntityRef{Kind: kind, ID: id, DisplayName: name},
			fields: fields,
		})
	}

	for _, d := range dedupe.Duplicates(rawIDs) {
		c.log.Debug("prefix drift in catalog", "kind", kind.String(), "canonical", d.CanonicalID, "original", d.OriginalID, "duplicate", d.DuplicateID)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].ref.DisplayName), strings.ToLower(entries[j].ref.DisplayName)
		if a != b {
			return a < b
		}
		return entries[i].ref.ID < entries[j].ref.ID
	})

	snap := &snapshot{
		refs:     make([]model.EntityRef, len(entries)),
		fields:   make([]map[string]string, len(entries)),
		index:    make(map[string]int, len(entries)),
		loadedAt: time.Now(),
	}
	for i, e := range entries {
		snap.refs[i] = e.ref
		snap.fields[i] = e.fields
		snap.index[e.ref.ID] = i
	}
	return snap
}

// Resolve normalizes id and looks it up. An unknown id yields a placeholder ref
// whose display name is never blank, with ok=false.
func (c *Catalog) Resolve(kind model.EntityKind, id string) (model.EntityRef, bool) {
	canon := dedupe.Normalize(id)

	c.mu.RLock()
	snap := c.snapshots[kind]
	c.mu.RUnlock()

	if snap != nil {
		if i, ok := snap.index[canon]; ok {
			return snap.refs[i], true
		}
	}
	return model.EntityRef{Kind: kind, ID: canon, DisplayName: model.UnknownName(kind, canon)}, false
}

// ResolveRanked is Resolve plus the entity's rank, both read from one snapshot.
func (c *Catalog) ResolveRanked(kind model.EntityKind, id string) (model.EntityRef, int, bool) {
	canon := dedupe.Normalize(id)

	c.mu.RLock()
	snap := c.snapshots[kind]
	c.mu.RUnlock()

	if snap != nil {
		if i, ok := snap.index[canon]; ok {
			return snap.refs[i], i, true
		}
	}
	return model.EntityRef{Kind: kind, ID: canon, DisplayName: model.UnknownName(kind, canon)}, 0, false
}

// Rank is the position of id in the kind's natural (alphabetical) order.
func (c *Catalog) Rank(kind model.EntityKind, id string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snapshots[kind]
	if snap == nil {
		return 0, false
	}
	i, ok := snap.index[dedupe.Normalize(id)]
	return i, ok
}

// Entries returns a copy of the current snapshot for kind, in natural order.
func (c *Catalog) Entries(kind model.EntityKind) []model.EntityRef {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snapshots[kind]
	if snap == nil {
		return nil
	}
	return cloneRefs(snap.refs)
}

// Fields returns the scalar attributes loaded with an entity.
func (c *Catalog) Fields(kind model.EntityKind, id string) (map[string]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snapshots[kind]
	if snap == nil {
		return nil, false
	}
	i, ok := snap.index[dedupe.Normalize(id)]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(snap.fields[i]))
	for k, v := range snap.fields[i] {
		out[k] = v
	}
	return out, true
}

// Loaded reports whether kind has been refreshed successfully at least once.
func (c *Catalog) Loaded(kind model.EntityKind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.snapshots[kind]
	return ok
}

// LoadedAt is the time of the last successful refresh of kind.
func (c *Catalog) LoadedAt(kind model.EntityKind) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[kind]
	if !ok {
		return time.Time{}, false
	}
	return snap.loadedAt, true
}

func cloneRefs(in []model.EntityRef) []model.EntityRef {
	out := make([]model.EntityRef, len(in))
	copy(out, in)
	return out
}
