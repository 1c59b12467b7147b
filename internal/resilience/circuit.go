package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

// CircuitState is the breaker's position.
type CircuitState int

const (
	// CircuitClosed lets attempts through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects attempts until the cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen admits probe attempts to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when an attempt is rejected because its source
// is cooling down.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig tunes when a source is pulled out of rotation.
type CircuitBreakerConfig struct {
	// FailureThreshold is the failed-attempt streak that opens the breaker.
	// A streak this long is the signature of a broken browser install or a
	// target that started blocking us, not per-zone noise.
	FailureThreshold int

	// ResetTimeout is the cooldown before a probe attempt is admitted.
	ResetTimeout time.Duration

	// HalfOpenProbes is how many probe attempts must succeed before the
	// source re-enters normal rotation.
	HalfOpenProbes int

	// ShouldTrip filters which errors count toward the streak. Nil counts
	// every error.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions, for logging.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig mirrors the engine defaults: three failed
// launches in a row, one minute of cooldown.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
		HalfOpenProbes:   1,
	}
}

// CircuitBreaker tracks the consecutive-failure streak for one source.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	failStreak     int
	lastFailure    time.Time
	probeSuccesses int

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a breaker, filling unset tunables from the
// defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = def.HalfOpenProbes
	}
	return &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Execute runs one attempt through the breaker. While the breaker is open
// the attempt is rejected with ErrCircuitOpen and fn never runs; otherwise
// fn's result feeds the streak.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.observe(err)
	return err
}

// State returns the current position, promoting open to half-open once the
// cooldown has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed, for manual recovery after an operator
// fixes the underlying browser or target problem.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.failStreak = 0
	cb.probeSuccesses = 0
	if old != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(old, CircuitClosed)
	}
}

// Counters reports the streak and state for observability.
func (cb *CircuitBreaker) Counters() (failStreak int, state CircuitState) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failStreak, cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.lastFailure) < cb.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen)
		return nil
	default:
		// Closed and half-open both admit; half-open results are weighed
		// as probes in observe.
		return nil
	}
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	counts := err != nil
	if counts && cb.cfg.ShouldTrip != nil {
		counts = cb.cfg.ShouldTrip(err)
	}

	if !counts {
		switch cb.state {
		case CircuitHalfOpen:
			cb.probeSuccesses++
			if cb.probeSuccesses >= cb.cfg.HalfOpenProbes {
				cb.transition(CircuitClosed)
				cb.failStreak = 0
				cb.probeSuccesses = 0
			}
		case CircuitClosed:
			cb.failStreak = 0
		}
		return
	}

	cb.failStreak++
	cb.lastFailure = cb.nowFunc()

	switch cb.state {
	case CircuitClosed:
		if cb.failStreak >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// A failed probe restarts the cooldown.
		cb.transition(CircuitOpen)
		cb.probeSuccesses = 0
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// SourceBreakers holds one breaker per acquisition source, so a directory
// that starts blocking us cannot cool down the maps workers.
type SourceBreakers struct {
	mu       sync.RWMutex
	breakers map[model.Source]*CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewSourceBreakers creates the per-source breaker registry.
func NewSourceBreakers(cfg CircuitBreakerConfig) *SourceBreakers {
	return &SourceBreakers{
		breakers: make(map[model.Source]*CircuitBreaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for source, creating it on first use.
func (sb *SourceBreakers) Get(source model.Source) *CircuitBreaker {
	sb.mu.RLock()
	cb, ok := sb.breakers[source]
	sb.mu.RUnlock()
	if ok {
		return cb
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if cb, ok = sb.breakers[source]; ok {
		return cb
	}
	cb = NewCircuitBreaker(sb.cfg)
	sb.breakers[source] = cb
	return cb
}

// States snapshots every breaker, keyed by source.
func (sb *SourceBreakers) States() map[model.Source]CircuitState {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	states := make(map[model.Source]CircuitState, len(sb.breakers))
	for source, cb := range sb.breakers {
		states[source] = cb.State()
	}
	return states
}
