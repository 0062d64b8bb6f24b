package dialer

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"autodialer-platform/internal/calllog"
)

func TestSimulatedGateway_ProportionsConverge(t *testing.T) {
	g := NewSimulatedGateway(rand.NewSource(1), 0, 0)
	ctx := context.Background()

	const n = 10000
	counts := map[calllog.Status]int{}
	for i := 0; i < n; i++ {
		out, err := g.PlaceCall(ctx, "12345678900")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		counts[out.Status]++
	}

	checks := []struct {
		status calllog.Status
		want   float64
	}{
		{calllog.StatusAnswered, 0.60},
		{calllog.StatusQueued, 0.20},
		{calllog.StatusFailed, 0.20},
	}
	for _, c := range checks {
		got := float64(counts[c.status]) / n
		if math.Abs(got-c.want) > 0.02 {
			t.Fatalf("%s proportion %0.3f, want %0.2f +/- 0.02", c.status, got, c.want)
		}
	}
}

func TestSimulatedGateway_AnsweredDurationInRange(t *testing.T) {
	g := NewSimulatedGateway(rand.NewSource(7), 0, 0)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		out, err := g.PlaceCall(ctx, "12345678900")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if out.Status != calllog.StatusAnswered {
			continue
		}
		if out.Duration < simMinCallSeconds || out.Duration >= simMaxCallSeconds {
			t.Fatalf("duration %v outside [%v,%v)", out.Duration, simMinCallSeconds, simMaxCallSeconds)
		}
	}
}

func TestSimulatedGateway_FailedCarriesReason(t *testing.T) {
	g := NewSimulatedGateway(rand.NewSource(42), 0, 0)
	ctx := context.Background()

	sawFailure := false
	for i := 0; i < 200; i++ {
		out, err := g.PlaceCall(ctx, "12345678900")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if out.Status != calllog.StatusFailed {
			continue
		}
		sawFailure = true
		if out.ErrorMessage == "" {
			t.Fatalf("failed outcome must carry an error message")
		}
	}
	if !sawFailure {
		t.Fatalf("expected at least one failure in 200 draws")
	}
}

func TestSimulatedGateway_DeterministicWithFixedSeed(t *testing.T) {
	ctx := context.Background()

	draw := func() []calllog.Status {
		g := NewSimulatedGateway(rand.NewSource(99), 0, 0)
		var seq []calllog.Status
		for i := 0; i < 50; i++ {
			out, _ := g.PlaceCall(ctx, "12345678900")
			seq = append(seq, out.Status)
		}
		return seq
	}

	a, b := draw(), draw()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sequences diverge at %d: %s vs %s", i, a[i], b[i])
		}
	}
}
