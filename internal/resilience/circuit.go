// Package resilience bounds model calls with retries and per-model circuit breakers.
package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the position of a breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets probe calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	// Threshold is the number of consecutive counted failures that opens
	// the breaker. Zero disables the breaker. Default: 5.
	Threshold int

	// Cooldown is how long an open breaker rejects calls. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of half-open successes that close it, and the
	// number of calls admitted concurrently while half-open. Default: 1.
	Probes int

	// Counts decides which failures count toward Threshold. Defaults to
	// IsTransient so that bad requests never open a breaker.
	Counts func(err error) bool

	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to BreakerState)
}

// DefaultBreakerConfig returns the defaults described on BreakerConfig.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		Probes:    1,
	}
}

// Breaker guards calls to one model.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	openedAt  time.Time
	successes int
	probing   int

	now func() time.Time
}

// NewBreaker creates a closed breaker named after the model it guards.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold < 0 {
		cfg.Threshold = 0
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Counts == nil {
		cfg.Counts = IsTransient
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// Guard runs fn through b. When b is open, fn is not called and
// ErrBreakerOpen is returned.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	probe, err := b.admit()
	if err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err, probe)
	return val, err
}

// State returns the current state, reporting an expired open breaker as
// half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.probing = 0
	if b.state != BreakerClosed {
		b.transition(BreakerClosed)
	}
}

// admit reports whether the call may run and whether it runs as a
// half-open probe.
func (b *Breaker) admit() (bool, error) {
	if b.cfg.Threshold == 0 {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrBreakerOpen
		}
		b.probing = 0
		b.transition(BreakerHalfOpen)
	}
	if b.probing >= b.cfg.Probes {
		return false, ErrBreakerOpen
	}
	b.probing++
	return true, nil
}

func (b *Breaker) record(err error, probe bool) {
	if b.cfg.Threshold == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe && b.probing > 0 {
		b.probing--
	}

	if err == nil || !b.cfg.Counts(err) {
		switch b.state {
		case BreakerHalfOpen:
			b.successes++
			if b.successes >= b.cfg.Probes {
				b.failures = 0
				b.successes = 0
				b.probing = 0
				b.transition(BreakerClosed)
			}
		case BreakerClosed:
			b.failures = 0
		}
		return
	}

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.Threshold {
			b.openedAt = b.now()
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.successes = 0
		b.probing = 0
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Breakers holds one breaker per model id.
type Breakers struct {
	mu  sync.RWMutex
	set map[string]*Breaker
	cfg BreakerConfig
}

// NewBreakers creates an empty set. Transitions are logged unless cfg
// already observes them.
func NewBreakers(cfg BreakerConfig) *Breakers {
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = logTransition
	}
	return &Breakers{set: make(map[string]*Breaker), cfg: cfg}
}

// Get returns the breaker for model, creating it on first use.
func (bs *Breakers) Get(model string) *Breaker {
	bs.mu.RLock()
	b, ok := bs.set[model]
	bs.mu.RUnlock()
	if ok {
		return b
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok = bs.set[model]; ok {
		return b
	}
	b = NewBreaker(model, bs.cfg)
	bs.set[model] = b
	return b
}

// BreakerStatus is a point-in-time view of one breaker.
type BreakerStatus struct {
	Model string `json:"model"`
	State string `json:"state"`
}

// Snapshot lists every known breaker, sorted by model id.
func (bs *Breakers) Snapshot() []BreakerStatus {
	bs.mu.RLock()
	out := make([]BreakerStatus, 0, len(bs.set))
	for name, b := range bs.set {
		out = append(out, BreakerStatus{Model: name, State: b.State().String()})
	}
	bs.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

func logTransition(name string, from, to BreakerState) {
	zap.L().Warn("circuit breaker state change",
		zap.String("model", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
