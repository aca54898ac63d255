package resilience

import (
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("endpoint unavailable")

func failTimes(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Execute(func() error { return errUpstream })
	}
}

func TestBreakerPassesThroughWhileClosed(t *testing.T) {
	b := NewBreaker(3, time.Second)

	called := false
	if err := b.Execute(func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn was not invoked")
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := NewBreaker(3, time.Second)
	failTimes(b, 3)

	err := b.Execute(func() error {
		t.Fatal("fn invoked while circuit open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.clock = func() time.Time { return now }

	failTimes(b, 2)
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("before cooldown: got %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Second)

	probed := false
	if err := b.Execute(func() error {
		probed = true
		return nil
	}); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !probed {
		t.Fatal("probe fn was not invoked")
	}

	// A single failure must not re-trip a freshly closed circuit.
	failTimes(b, 1)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("after probe success: %v", err)
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.clock = func() time.Time { return now }

	failTimes(b, 2)
	now = now.Add(2 * time.Second)
	failTimes(b, 1)

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("after failed probe: got %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := NewBreaker(3, time.Second)

	failTimes(b, 2)
	_ = b.Execute(func() error { return nil })
	failTimes(b, 2)

	called := false
	if err := b.Execute(func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn was not invoked")
	}
}
