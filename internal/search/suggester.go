package search

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"omomoney/internal/cache"
	"omomoney/internal/core"
	applog "omomoney/internal/log"
)

// DefaultDebounce is the input pause after which a pass runs.
const DefaultDebounce = 400 * time.Millisecond

// State of a Suggester.
type State int

const (
	StateIdle State = iota
	StateDebouncing
	StateComputing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateComputing:
		return "computing"
	case StateReady:
		return "ready"
	default:
		return "idle"
	}
}

// Corpus is the text a pass draws candidates from. Revision identifies the
// store state it was read at and keys the pass cache.
type Corpus struct {
	Revision uint64
	Entries  []core.Entry
	Items    []core.Item
}

// Result is what a Suggester exposes after each transition.
type Result struct {
	Query       string
	Suggestions []Suggestion
	Loading     bool
	State       State
	Generation  uint64
}

// Options configures a Suggester. Zero values are usable.
type Options struct {
	Debounce time.Duration
	// Cache memoizes passes by corpus revision, query and exclusion.
	Cache  cache.Cache[[]Suggestion]
	Logger *applog.Logger
	// OnPublish receives every completed result (Idle or Ready). It runs
	// with the publish lock held and must not call Query or Clear.
	OnPublish func(Result)
}

// Suggester computes suggestions for the latest query after a debounce.
// Only the newest query's result is ever published.
type Suggester struct {
	source   func() Corpus
	debounce time.Duration
	cache    cache.Cache[[]Suggestion]
	logger   *applog.Logger
	publish  func(Result)

	// pubMu is held from generation bump to callback, so a superseded pass
	// cannot publish once a newer query has started.
	pubMu sync.Mutex

	mu       sync.Mutex
	gen      uint64
	timer    *time.Timer
	current  Result
	selected *Suggestion
	closed   bool
}

// NewSuggester builds a Suggester reading its corpus from source at the
// start of every pass.
func NewSuggester(source func() Corpus, opts Options) *Suggester {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	return &Suggester{
		source:   source,
		debounce: opts.Debounce,
		cache:    opts.Cache,
		logger:   opts.Logger.WithComponent(applog.ComponentSearch),
		publish:  opts.OnPublish,
	}
}

// Query restarts the debounce for query and returns its generation. A blank
// query resets to Idle and publishes an empty result immediately.
func (s *Suggester) Query(query, excludeExact string) uint64 {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.gen++
	gen := s.gen
	s.stopTimer()

	if strings.TrimSpace(query) == "" {
		s.current = Result{Query: query, State: StateIdle, Generation: gen}
		res := s.current
		s.mu.Unlock()
		s.emit(res)
		return gen
	}

	s.current.Query = query
	s.current.Loading = true
	s.current.State = StateDebouncing
	s.current.Generation = gen
	s.timer = time.AfterFunc(s.debounce, func() {
		s.run(gen, query, excludeExact)
	})
	s.mu.Unlock()
	return gen
}

// Clear drops any pending pass, the current list and the selection. A
// purgeable pass cache is emptied as well.
func (s *Suggester) Clear() {
	s.Query("", "")
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	if p, ok := s.cache.(cache.Purger); ok {
		p.Purge()
	}
}

// Select marks the suggestion with id from the current list as chosen.
func (s *Suggester) Select(id uuid.UUID) (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range s.current.Suggestions {
		if sg.ID == id {
			chosen := sg
			s.selected = &chosen
			return chosen, true
		}
	}
	return Suggestion{}, false
}

// Selected returns the last selected suggestion, if any.
func (s *Suggester) Selected() (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return Suggestion{}, false
	}
	return *s.selected, true
}

// Cache returns the pass cache, or nil when passes are not memoized.
func (s *Suggester) Cache() cache.Cache[[]Suggestion] {
	return s.cache
}

// Current returns the latest state, including in-progress ones.
func (s *Suggester) Current() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.current
	res.Suggestions = append([]Suggestion(nil), s.current.Suggestions...)
	return res
}

// Close cancels any pending pass. Later queries are ignored.
func (s *Suggester) Close() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	s.stopTimer()
}

func (s *Suggester) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Suggester) stale(gen uint64) bool {
	return s.closed || gen != s.gen
}

func (s *Suggester) run(gen uint64, query, excludeExact string) {
	s.mu.Lock()
	if s.stale(gen) {
		s.mu.Unlock()
		return
	}
	s.current.State = StateComputing
	s.mu.Unlock()

	start := time.Now()
	suggestions := s.compute(query, excludeExact)

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if s.stale(gen) {
		s.mu.Unlock()
		s.logger.Debug("Dropped superseded suggestions", applog.FieldGeneration, gen)
		return
	}
	s.timer = nil
	s.current = Result{
		Query:       query,
		Suggestions: suggestions,
		State:       StateReady,
		Generation:  gen,
	}
	res := s.current
	s.mu.Unlock()

	s.logger.Debug("Suggestions ready",
		applog.FieldQuery, query,
		applog.FieldResults, len(suggestions),
		applog.FieldGeneration, gen,
		applog.FieldDuration, time.Since(start).Milliseconds())
	s.emit(res)
}

func (s *Suggester) compute(query, excludeExact string) []Suggestion {
	corpus := s.source()
	if s.cache == nil {
		return Generate(query, corpus.Entries, corpus.Items, excludeExact)
	}
	key := fmt.Sprintf("%d|%s|%s", corpus.Revision, query, excludeExact)
	if hit, ok := s.cache.Get(key); ok {
		return hit
	}
	out := Generate(query, corpus.Entries, corpus.Items, excludeExact)
	s.cache.Set(key, out)
	return out
}

func (s *Suggester) emit(res Result) {
	if s.publish != nil {
		s.publish(res)
	}
}
