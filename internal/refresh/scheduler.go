package refresh

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/david/assembly-tracker/internal/cache"
)

// State of a cached dataset.
type State int

const (
	NotLoaded State = iota
	Loading
	Fresh
	Stale
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "not_loaded"
	}
}

// Loader rebuilds a dataset for a member.
type Loader func(ctx context.Context, memberName string) (any, error)

type dataset struct {
	name string
	load Loader

	mu     sync.Mutex // guards loaded and loading
	loaded bool
	// loading is set while the first load runs; reads answer "loading".
	loading bool

	// gate serializes loads and refreshes of this dataset.
	gate sync.Mutex
}

// Scheduler owns the cached datasets and decides on every read whether to
// serve the cache or rebuild it.
type Scheduler struct {
	Cache          cache.Service
	Policy         RefreshPolicy
	Clock          Clock
	DefaultMember  string
	RefreshTimeout time.Duration

	mu       sync.RWMutex
	datasets map[string]*dataset
}

// Register adds a dataset cached under name.
func (s *Scheduler) Register(name string, load Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.datasets == nil {
		s.datasets = make(map[string]*dataset)
	}
	s.datasets[name] = &dataset{name: name, load: load}
}

func (s *Scheduler) dataset(name string) (*dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
	return ds, nil
}

func (s *Scheduler) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preload starts the initial load of every dataset in the background for
// the default member. It returns a channel closed when all loads finish.
func (s *Scheduler) Preload(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, name := range s.names() {
		ds, _ := s.dataset(name)
		if !ds.beginLoading() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.initialLoad(ctx, ds, s.DefaultMember)
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// beginLoading moves NotLoaded to Loading; false if already past NotLoaded.
func (ds *dataset) beginLoading() bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.loaded || ds.loading {
		return false
	}
	ds.loading = true
	return true
}

func (ds *dataset) status() (loaded, loading bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.loaded, ds.loading
}

func (s *Scheduler) initialLoad(ctx context.Context, ds *dataset, member string) {
	ds.gate.Lock()
	defer ds.gate.Unlock()

	log.Printf("[Scheduler] Loading %s for %s", ds.name, member)
	err := s.rebuild(ctx, ds, member)

	ds.mu.Lock()
	ds.loading = false
	if err == nil {
		ds.loaded = true
	}
	ds.mu.Unlock()

	if err != nil {
		log.Printf("[Scheduler] ❌ Initial load of %s failed: %v", ds.name, err)
		return
	}
	log.Printf("[Scheduler] %s loaded", ds.name)
}

// rebuild runs the loader and publishes its result. Callers hold ds.gate.
func (s *Scheduler) rebuild(ctx context.Context, ds *dataset, member string) error {
	ctx, cancel := s.detached(ctx)
	defer cancel()

	value, err := ds.load(ctx, member)
	if err != nil {
		return err
	}
	s.Cache.Set(ds.name, value)
	s.Cache.SetLastRefresh(ds.name, s.Clock.Now())
	return nil
}

// detached keeps a refresh alive when the request that triggered it goes
// away; the refresh timeout still bounds it.
func (s *Scheduler) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.RefreshTimeout > 0 {
		return context.WithTimeout(ctx, s.RefreshTimeout)
	}
	return context.WithCancel(ctx)
}

// Get returns the dataset value and true once it has been loaded. Before
// that it returns false without blocking; a dataset whose load failed is
// retried in the background. When the policy calls for a refresh, the
// calling reader rebuilds the dataset synchronously while concurrent
// readers keep getting the previous value.
func (s *Scheduler) Get(ctx context.Context, name, member string) (any, bool, error) {
	ds, err := s.dataset(name)
	if err != nil {
		return nil, false, err
	}

	loaded, loading := ds.status()
	if !loaded {
		if !loading && ds.beginLoading() {
			go s.initialLoad(ctx, ds, member)
		}
		return nil, false, nil
	}

	value, ok := s.Cache.Get(name)
	if !ok {
		return nil, false, nil
	}
	if !s.Policy.ShouldRefresh(s.Clock.Now(), s.Cache.LastRefresh(name)) {
		return value, true, nil
	}

	if !ds.gate.TryLock() {
		return value, true, nil
	}
	defer ds.gate.Unlock()

	// Another reader may have refreshed between the check and the lock.
	if !s.Policy.ShouldRefresh(s.Clock.Now(), s.Cache.LastRefresh(name)) {
		current, _ := s.Cache.Get(name)
		return current, true, nil
	}

	log.Printf("[Scheduler] Refresh time reached, rebuilding %s for %s", name, member)
	if err := s.rebuild(ctx, ds, member); err != nil {
		log.Printf("[Scheduler] ❌ Refresh of %s failed, serving previous data: %v", name, err)
		return value, true, nil
	}
	current, _ := s.Cache.Get(name)
	return current, true, nil
}

// ForceRefresh rebuilds a dataset now, waiting for any refresh in progress.
func (s *Scheduler) ForceRefresh(ctx context.Context, name, member string) (any, error) {
	ds, err := s.dataset(name)
	if err != nil {
		return nil, err
	}

	ds.gate.Lock()
	defer ds.gate.Unlock()

	if err := s.rebuild(ctx, ds, member); err != nil {
		return nil, fmt.Errorf("refresh %s: %w", name, err)
	}
	ds.mu.Lock()
	ds.loaded = true
	ds.mu.Unlock()

	value, _ := s.Cache.Get(name)
	return value, nil
}

// DatasetStatus describes one dataset for status endpoints.
type DatasetStatus struct {
	Dataset         string     `json:"dataset"`
	State           string     `json:"state"`
	Loaded          bool       `json:"loaded"`
	LastRefreshDate *time.Time `json:"last_refresh_date"`
}

// Status reports every registered dataset, sorted by name.
func (s *Scheduler) Status() []DatasetStatus {
	now := s.Clock.Now()
	var out []DatasetStatus
	for _, name := range s.names() {
		ds, _ := s.dataset(name)
		loaded, loading := ds.status()

		st := DatasetStatus{Dataset: name, Loaded: loaded}
		if last := s.Cache.LastRefresh(name); !last.IsZero() {
			st.LastRefreshDate = &last
		}
		switch {
		case loaded && SameDay(now, s.Cache.LastRefresh(name)):
			st.State = Fresh.String()
		case loaded:
			st.State = Stale.String()
		case loading:
			st.State = Loading.String()
		default:
			st.State = NotLoaded.String()
		}
		out = append(out, st)
	}
	return out
}
