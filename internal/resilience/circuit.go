// Package resilience guards outbound webhook delivery: a failure-ratio
// circuit breaker plus the jittered backoff the delivery worker retries with.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is what a delivery attempt gets while the breaker is
// refusing calls to its target.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker trips when the observed failure ratio for a target crosses the
// threshold. An open breaker lets one probe through after the cool-off; the
// probe's outcome decides between closing again and another cool-off round.
type Breaker struct {
	mu        sync.Mutex
	state     State
	fails     int
	successes int
	openedAt  time.Time

	minRequests int
	tripRatio   float64
	coolOff     time.Duration
	target      string
}

// NewBreaker builds a closed breaker. Non-positive arguments fall back to
// conservative defaults instead of producing a breaker that can never trip.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	b := &Breaker{
		state:       Closed,
		minRequests: minRequests,
		tripRatio:   failureRatio,
		coolOff:     openFor,
	}
	if b.minRequests <= 0 {
		b.minRequests = 1
	}
	if b.tripRatio <= 0 {
		b.tripRatio = 0.5
	}
	if b.tripRatio > 1 {
		b.tripRatio = 1
	}
	if b.coolOff <= 0 {
		b.coolOff = 30 * time.Second
	}
	return b
}

// WithTarget names the guarded dependency for metric labels and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	b.publishStateLocked()
	return b
}

// Allow reports whether a delivery may go out. Once the cool-off has passed
// an open breaker flips to half-open and admits the caller as the probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if time.Since(b.openedAt) < b.coolOff {
		return false
	}
	b.transitionLocked(ctx, HalfOpen)
	return true
}

// Report feeds a delivery outcome back into the state machine.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		// Stale report from a call admitted before the trip.
		return
	case HalfOpen:
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.transitionLocked(ctx, Open)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.fails++
	}
	total := b.fails + b.successes
	if total < b.minRequests {
		return
	}
	if float64(b.fails)/float64(total) >= b.tripRatio {
		b.transitionLocked(ctx, Open)
		return
	}
	if total > b.minRequests*2 {
		b.decayLocked()
	}
}

// decayLocked halves the counters so one bad minute hours ago cannot keep
// weighing on the ratio forever.
func (b *Breaker) decayLocked() {
	b.successes = int(math.Ceil(float64(b.successes) * 0.5))
	b.fails = int(math.Ceil(float64(b.fails) * 0.5))
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.publishStateLocked()
		return
	}
	b.state = next
	b.fails = 0
	b.successes = 0
	switch next {
	case Open:
		b.openedAt = time.Now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishStateLocked()

	label := b.label()
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(label, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	evt := b.logger(ctx).Info().
		Str("target", label).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishStateLocked() {
	if BreakerState == nil {
		return
	}
	var v float64
	switch b.state {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	BreakerState.WithLabelValues(b.label()).Set(v)
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

var nopLogger = zerolog.Nop()

func (b *Breaker) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil {
		return l
	}
	return &nopLogger
}

// Backoff is the delivery retry schedule: exponential from base, with a
// symmetric jitter fraction so stalled receivers do not get hit by every
// worker at once.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base * time.Duration(1<<uint(attempt-1))
	if jitterPct <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitterPct
	return d + time.Duration(delta)
}
