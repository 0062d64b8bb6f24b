package dialer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"autodialer-platform/internal/calllog"
)

// Outcome weights are contractual: callers and tests rely on these exact
// proportions in aggregate over many calls.
const (
	simAnsweredWeight = 0.6
	simQueuedWeight   = 0.2 // remainder is failed

	simMinCallSeconds = 5.0
	simMaxCallSeconds = 60.0
)

var simFailureReasons = []string{
	"no answer",
	"line busy",
	"invalid number",
	"network error",
}

// SimulatedGateway produces probabilistic call outcomes: 60% answered with a
// realistic duration, 20% queued, 20% failed with a synthetic reason. The
// random source is injected so tests can pin exact sequences.
type SimulatedGateway struct {
	mu  sync.Mutex
	rng *rand.Rand

	// latency window mimicking real call setup; zero disables the delay.
	minDelay time.Duration
	maxDelay time.Duration
}

func NewSimulatedGateway(src rand.Source, minDelay, maxDelay time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		rng:      rand.New(src),
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) PlaceCall(ctx context.Context, number string) (Outcome, error) {
	if err := g.sleep(ctx); err != nil {
		return Outcome{
			Status:       calllog.StatusFailed,
			Message:      "call failed: canceled",
			ErrorMessage: err.Error(),
		}, nil
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	duration := simMinCallSeconds + g.rng.Float64()*(simMaxCallSeconds-simMinCallSeconds)
	reason := simFailureReasons[g.rng.Intn(len(simFailureReasons))]
	g.mu.Unlock()

	switch {
	case roll < simAnsweredWeight:
		return Outcome{
			Status:   calllog.StatusAnswered,
			Duration: duration,
			Message:  "call answered and completed successfully",
		}, nil
	case roll < simAnsweredWeight+simQueuedWeight:
		return Outcome{
			Status:  calllog.StatusQueued,
			Message: "call is queued - line busy or ringing",
		}, nil
	default:
		return Outcome{
			Status:       calllog.StatusFailed,
			Message:      fmt.Sprintf("call failed: %s", reason),
			ErrorMessage: reason,
		}, nil
	}
}

func (g *SimulatedGateway) sleep(ctx context.Context) error {
	if g.maxDelay <= 0 {
		return nil
	}
	g.mu.Lock()
	d := g.minDelay
	if window := g.maxDelay - g.minDelay; window > 0 {
		d += time.Duration(g.rng.Int63n(int64(window)))
	}
	g.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
