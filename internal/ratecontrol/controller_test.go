package ratecontrol

import (
	"math/rand"
	"testing"
	"time"
)

func TestNewStartsAtBase(t *testing.T) {
	t.Parallel()

	c := New(DefaultConfig())
	if got := c.State(); got != (State{Delay: 200 * time.Millisecond}) {
		t.Fatalf("unexpected initial state: %+v", got)
	}
}

func TestOnFailureGrowsWithStreak(t *testing.T) {
	t.Parallel()

	c := New(DefaultConfig())
	c.OnSuccess()

	c.OnFailure()
	if c.Delay() != 300*time.Millisecond {
		t.Fatalf("expected 300ms after first failure, got %v", c.Delay())
	}
	if s := c.State(); s.SuccessStreak != 0 || s.FailureStreak != 1 {
		t.Fatalf("unexpected streaks: %+v", s)
	}

	c.OnFailure()
	if c.Delay() != 600*time.Millisecond {
		t.Fatalf("expected 600ms after second failure, got %v", c.Delay())
	}

	c.OnFailure()
	if c.Delay() != 1500*time.Millisecond {
		t.Fatalf("expected 1500ms after third failure, got %v", c.Delay())
	}

	c.OnFailure()
	if c.Delay() != 2*time.Second {
		t.Fatalf("expected cap at 2s, got %v", c.Delay())
	}
}

func TestOnSuccessDecreasesAfterThreshold(t *testing.T) {
	t.Parallel()

	c := New(DefaultConfig())
	c.OnFailure()
	before := c.Delay()

	for i := 0; i < 4; i++ {
		if c.OnSuccess() {
			t.Fatalf("delay changed before threshold at success %d", i+1)
		}
	}
	if !c.OnSuccess() {
		t.Fatalf("expected delay change on fifth success")
	}
	if c.Delay() != before-20*time.Millisecond {
		t.Fatalf("expected %v, got %v", before-20*time.Millisecond, c.Delay())
	}
	if c.State().SuccessStreak != 0 {
		t.Fatalf("success streak should reset after adjustment")
	}
}

func TestOnSuccessFloorsAtBase(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Step = time.Second
	c := New(cfg)
	c.OnFailure()

	for i := 0; i < 5; i++ {
		c.OnSuccess()
	}
	if c.Delay() != cfg.BaseDelay {
		t.Fatalf("expected floor at base, got %v", c.Delay())
	}

	for i := 0; i < 10; i++ {
		if c.OnSuccess() {
			t.Fatalf("delay should not move at base")
		}
	}
}

func TestEscalate(t *testing.T) {
	t.Parallel()

	c := New(DefaultConfig())
	c.Escalate(1.5)
	if c.Delay() != 300*time.Millisecond {
		t.Fatalf("expected 300ms, got %v", c.Delay())
	}
	for i := 0; i < 10; i++ {
		c.Escalate(1.5)
	}
	if c.Delay() != 2*time.Second {
		t.Fatalf("expected cap, got %v", c.Delay())
	}
}

func TestDelayStaysInBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	c := New(cfg)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		before := c.State()
		if rng.Intn(3) == 0 {
			c.OnFailure()
			after := c.State()
			if after.Delay < before.Delay {
				t.Fatalf("failure decreased delay: %v -> %v", before.Delay, after.Delay)
			}
			if after.SuccessStreak != 0 {
				t.Fatalf("failure must reset success streak")
			}
		} else {
			c.OnSuccess()
		}

		if d := c.Delay(); d < cfg.BaseDelay || d > cfg.MaxDelay {
			t.Fatalf("delay %v escaped [%v, %v]", d, cfg.BaseDelay, cfg.MaxDelay)
		}
	}
}
