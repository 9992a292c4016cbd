package processmgr

import (
	"math"
	"time"
)

// RetryPolicy derives the delay before the next spawn from the number of
// consecutive failures: Base·Factor^(n-1), capped at Max.
//
// A run that stayed alive for at least HealthyAfter is not part of a crash
// loop; the failure count restarts from zero before the delay is computed.
type RetryPolicy struct {
	Base         time.Duration `json:"base" yaml:"base"`
	Max          time.Duration `json:"max" yaml:"max"`
	Factor       float64       `json:"factor" yaml:"factor"`
	HealthyAfter time.Duration `json:"healthy_after" yaml:"healthy_after"`
}

// DefaultRetryPolicy: 1s, 2s, 4s … 30s; reset after 30s of uptime.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:         time.Second,
		Max:          30 * time.Second,
		Factor:       2,
		HealthyAfter: 30 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	if p.HealthyAfter <= 0 {
		p.HealthyAfter = d.HealthyAfter
	}
	return p
}

// Delay returns the wait after the given number of consecutive failures.
// It is monotone non-decreasing in failures and never exceeds Max.
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures <= 1 {
		return p.Base
	}
	d := float64(p.Base) * math.Pow(p.Factor, float64(failures-1))
	if d >= float64(p.Max) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.Max
	}
	return time.Duration(d)
}

// RetryState is the supervisor's restart bookkeeping.
type RetryState struct {
	ConsecutiveFailures int           `json:"consecutive_failures"`
	NextBackoff         time.Duration `json:"next_backoff"`
}

// afterExit folds one exited run into the state.
func (r RetryState) afterExit(p RetryPolicy, lifetime time.Duration) RetryState {
	n := r.ConsecutiveFailures
	if lifetime >= p.HealthyAfter {
		n = 0
	}
	n++
	return RetryState{ConsecutiveFailures: n, NextBackoff: p.Delay(n)}
}
