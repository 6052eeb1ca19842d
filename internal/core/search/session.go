// Package search holds the semantic search session: query state, result
// formatting, suggestions and the persisted history.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agenthands/nutrigraph/internal/core/model"
	"github.com/agenthands/nutrigraph/internal/core/query"
	"github.com/agenthands/nutrigraph/internal/llm"
	"github.com/agenthands/nutrigraph/internal/metric"
	"github.com/agenthands/nutrigraph/internal/platform/logger"
	"github.com/agenthands/nutrigraph/internal/store"
)

// HistoryKey is the store key the history list lives under.
const HistoryKey = "semanticSearchHistory"

const defaultHistorySize = 10

// DefaultSuggestions stand in when the backend cannot provide any.
var DefaultSuggestions = []string{
	"Aliments riches en fibres",
	"Aliments à faible index glycémique",
	"Aliments pour diabétiques",
	"Aliments pour perdre du poids",
	"Top 10 aliments faibles en calories",
}

// ErrSuperseded is returned by a Search whose response arrived after a newer
// Search had started. Its results are dropped.
var ErrSuperseded = errors.New("search superseded by a newer query")

// ErrClosed is returned by Search after Close.
var ErrClosed = errors.New("search session closed")

type State int

const (
	StateIdle State = iota
	StateSearching
	StatePopulated
	StateEmpty
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StatePopulated:
		return "populated"
	case StateEmpty:
		return "empty"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Backend is the search side of the backend contract.
type Backend interface {
	SemanticSearch(ctx context.Context, text string) (*model.SearchResponse, error)
	SearchSuggestions(ctx context.Context) ([]string, error)
	SearchStats(ctx context.Context) (*model.SearchStats, error)
}

type Options struct {
	// Resolver names results that came back without a name. Optional.
	Resolver Resolver
	// Dispatcher interprets the query locally when the backend sends no
	// interpretation. Defaults to keyword-only.
	Dispatcher *query.Dispatcher
	// History defaults to an in-memory store.
	History     store.HistoryStore
	HistorySize int
	// Reranker reorders results whose scores are all neutral. Optional.
	Reranker llm.RerankerClient
	Logger   *logger.Logger
	Metrics  *metric.Metrics
}

// Session is one user's search view. Create it with NewSession and discard it
// with Close; sessions share nothing.
type Session struct {
	backend     Backend
	resolver    Resolver
	dispatcher  *query.Dispatcher
	history     store.HistoryStore
	historySize int
	reranker    llm.RerankerClient
	log         *logger.Logger
	metrics     *metric.Metrics

	mu             sync.Mutex
	state          State
	queryText      string
	lastQuery      string
	ticket         uint64
	results        []model.SearchResult
	generatedQuery string
	interpretation model.Interpretation
	lastErr        error
	suggestions    []string
	entries        []string
	historyGen     uint64
	closed         bool

	saveMu   sync.Mutex
	savedGen uint64
}

// NewSession loads the persisted history and fetches suggestions once. Neither
// failure is fatal: history starts empty and suggestions fall back to
// DefaultSuggestions.
func NewSession(ctx context.Context, backend Backend, opts Options) *Session {
	s := &Session{
		backend:     backend,
		resolver:    opts.Resolver,
		dispatcher:  opts.Dispatcher,
		history:     opts.History,
		historySize: opts.HistorySize,
		reranker:    opts.Reranker,
		log:         logger.OrNop(opts.Logger).With("component", "search"),
		metrics:     opts.Metrics,
	}
	if s.dispatcher == nil {
		s.dispatcher = query.NewDispatcher(nil, opts.Logger)
	}
	if s.history == nil {
		s.history = store.NewMemoryStore()
	}
	if s.historySize <= 0 {
		s.historySize = defaultHistorySize
	}

	entries, err := s.history.Load(ctx, HistoryKey)
	if err != nil {
		s.log.Warn("could not load search history", "error", err)
	}
	if len(entries) > s.historySize {
		entries = entries[:s.historySize]
	}
	s.entries = entries

	suggestions, err := backend.SearchSuggestions(ctx)
	if err != nil {
		s.log.Warn("could not fetch suggestions, using defaults", "error", err)
	}
	suggestions = nonBlank(suggestions)
	if len(suggestions) == 0 {
		suggestions = append([]string(nil), DefaultSuggestions...)
	}
	s.suggestions = suggestions

	return s
}

// SetQuery records the text currently typed, without searching.
func (s *Session) SetQuery(text string) {
	s.mu.Lock()
	s.queryText = text
	s.mu.Unlock()
}

// Search runs text against the backend. Blank text is ignored. A newer Search
// started while this one is in flight wins: this call then returns
// ErrSuperseded and commits nothing.
func (s *Session) Search(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.ticket++
	ticket := s.ticket
	s.queryText = text
	s.lastQuery = text
	s.state = StateSearching
	s.results = nil
	s.generatedQuery = ""
	s.lastErr = nil
	s.mu.Unlock()

	resp, err := s.backend.SemanticSearch(ctx, text)

	var (
		results []model.SearchResult
		interp  model.Interpretation
	)
	if err == nil {
		interp = s.interpret(ctx, text, resp)
		results = s.format(resp, interp)
		results = s.rerank(ctx, text, results)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.RecordSearch("superseded")
		return ErrClosed
	}
	if ticket != s.ticket {
		s.mu.Unlock()
		s.metrics.RecordSearch("superseded")
		s.log.Debug("dropping stale search response", "query", text)
		return ErrSuperseded
	}

	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		s.mu.Unlock()
		s.metrics.RecordSearch("failed")
		s.log.Warn("search failed", "query", text, "error", err)
		return err
	}

	s.results = results
	s.interpretation = interp
	s.generatedQuery = resp.GeneratedSPARQL
	if len(results) == 0 {
		s.state = StateEmpty
		s.mu.Unlock()
		s.metrics.RecordSearch("empty")
		return nil
	}

	s.state = StatePopulated
	s.entries = pushFront(s.entries, text, s.historySize)
	s.historyGen++
	gen := s.historyGen
	entries := append([]string(nil), s.entries...)
	s.mu.Unlock()

	s.metrics.RecordSearch("populated")
	s.persistHistory(ctx, gen, entries)
	return nil
}

// persistHistory writes entries outside the state lock. A write older than
// one already stored is skipped.
func (s *Session) persistHistory(ctx context.Context, gen uint64, entries []string) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if gen <= s.savedGen {
		return
	}
	if err := s.history.Save(ctx, HistoryKey, entries); err != nil {
		s.log.Warn("could not persist search history", "error", err)
		return
	}
	s.savedGen = gen
}

func (s *Session) interpret(ctx context.Context, text string, resp *model.SearchResponse) model.Interpretation {
	if resp != nil && resp.Interpretation != nil && resp.Interpretation.Kind.Valid() {
		in := *resp.Interpretation
		if in.Source == "" {
			in.Source = "backend"
		}
		return in
	}
	return s.dispatcher.Interpret(ctx, text)
}

func (s *Session) format(resp *model.SearchResponse, interp model.Interpretation) []model.SearchResult {
	if resp == nil {
		return []model.SearchResult{}
	}
	out := make([]model.SearchResult, 0, len(resp.Results))
	for _, raw := range resp.Results {
		out = append(out, FormatResult(raw, interp.Kind, s.resolver))
	}
	return out
}

func (s *Session) rerank(ctx context.Context, text string, results []model.SearchResult) []model.SearchResult {
	if s.reranker == nil || len(results) < 2 {
		return results
	}
	for _, r := range results {
		if _, shown := ScoreBadge(r); shown {
			return results
		}
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = describe(r)
	}
	order, err := s.reranker.Rank(ctx, text, docs)
	if err != nil || len(order) != len(results) {
		return results
	}
	out := make([]model.SearchResult, 0, len(results))
	seen := make([]bool, len(results))
	for _, i := range order {
		if i < 0 || i >= len(results) || seen[i] {
			return results
		}
		seen[i] = true
		out = append(out, results[i])
	}
	return out
}

// pushFront moves entry to the front, removing earlier copies, and keeps at
// most max entries.
func pushFront(entries []string, entry string, max int) []string {
	out := make([]string, 0, max)
	out = append(out, entry)
	for _, e := range entries {
		if e == entry {
			continue
		}
		if len(out) == max {
			break
		}
		out = append(out, e)
	}
	return out
}

// SearchSuggestion runs the i-th suggestion as a query.
func (s *Session) SearchSuggestion(ctx context.Context, i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.suggestions) {
		s.mu.Unlock()
		return nil
	}
	text := s.suggestions[i]
	s.mu.Unlock()
	return s.Search(ctx, text)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) QueryText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryText
}

func (s *Session) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// Err is the error of the last failed search, verbatim.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Results() []model.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SearchResult(nil), s.results...)
}

// GeneratedQuery is the graph query the backend ran for the last search.
func (s *Session) GeneratedQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generatedQuery
}

// Interpretation describes how the last successful query was understood.
func (s *Session) Interpretation() model.Interpretation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interpretation
}

func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggestions...)
}

// History returns past queries, most recent first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

// RecentHistory returns at most n of the most recent queries.
func (s *Session) RecentHistory(n int) []string {
	h := s.History()
	if n >= 0 && len(h) > n {
		h = h[:n]
	}
	return h
}

// Stats fetches the per-kind entity counts shown next to the search box.
func (s *Session) Stats(ctx context.Context) (*model.SearchStats, error) {
	return s.backend.SearchStats(ctx)
}

// Reset returns the session to Idle. History and suggestions are kept; an
// in-flight search is dropped when it lands.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticket++
	s.state = StateIdle
	s.queryText = ""
	s.lastQuery = ""
	s.results = nil
	s.generatedQuery = ""
	s.interpretation = model.Interpretation{}
	s.lastErr = nil
}

// Close discards the session. The history store is owned by the caller and is
// left open.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ticket++
	s.results = nil
}

func nonBlank(in []string) []string {
	var out []string
	for _, v := range in {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
