// Package ratecontrol tunes request cadence against an upstream with unknown rate limits.
//
// The controller is additive-decrease/multiplicative-increase: a run of successes shaves a fixed
// step off the delay, every failure multiplies it by a factor that grows with the failure streak.
// It performs no I/O; callers sleep for Delay() between requests.
package ratecontrol

import "time"

// Config holds the tuning constants.
type Config struct {
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	Step             time.Duration
	SuccessThreshold int
}

// DefaultConfig returns the reference tuning: 200ms floor, 2s ceiling, 20ms step, 5 successes.
func DefaultConfig() Config {
	return Config{
		BaseDelay:        200 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		Step:             20 * time.Millisecond,
		SuccessThreshold: 5,
	}
}

// State is a snapshot of the controller.
type State struct {
	Delay         time.Duration
	SuccessStreak int
	FailureStreak int
}

// Controller is not safe for concurrent use.
type Controller struct {
	cfg   Config
	state State
}

// New starts a controller at the base delay.
func New(cfg Config) *Controller {
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Controller{cfg: cfg, state: State{Delay: cfg.BaseDelay}}
}

// Delay is the wait before the next request.
func (c *Controller) Delay() time.Duration {
	return c.state.Delay
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state
}

// OnSuccess records a successful request and reports whether the delay changed.
func (c *Controller) OnSuccess() bool {
	c.state.SuccessStreak++
	c.state.FailureStreak = 0

	if c.state.SuccessStreak < c.cfg.SuccessThreshold || c.state.Delay <= c.cfg.BaseDelay {
		return false
	}

	c.state.Delay = max(c.cfg.BaseDelay, c.state.Delay-c.cfg.Step)
	c.state.SuccessStreak = 0
	return true
}

// OnFailure records a failed request: delay *= 1 + 0.5*failureStreak, capped at MaxDelay.
func (c *Controller) OnFailure() {
	c.state.FailureStreak++
	c.state.SuccessStreak = 0
	c.grow(1 + 0.5*float64(c.state.FailureStreak))
}

// Escalate records a failure with a fixed growth factor instead of the streak-scaled one.
func (c *Controller) Escalate(factor float64) {
	c.state.FailureStreak++
	c.state.SuccessStreak = 0
	c.grow(factor)
}

// Reset returns to the initial state.
func (c *Controller) Reset() {
	c.state = State{Delay: c.cfg.BaseDelay}
}

func (c *Controller) grow(factor float64) {
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(float64(c.state.Delay) * factor)
	c.state.Delay = min(c.cfg.MaxDelay, max(c.cfg.BaseDelay, next))
}
