// Package retry defines backoff policies shared by the relay client.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines a backoff strategy.
type Policy struct {
	InitialDelay    time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffStrategy BackoffType   `json:"backoff_strategy" yaml:"backoff_strategy"`
	JitterFactor    float64       `json:"jitter_factor" yaml:"jitter_factor"` // 0.0-1.0
}

// BackoffType identifies the backoff strategy.
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"       // Same delay each time
	BackoffLinear      BackoffType = "linear"      // Delay increases linearly
	BackoffExponential BackoffType = "exponential" // Delay doubles each time
)

// PollPolicy returns the throttling policy used while watching a job: start at
// the poll interval and double up to the ceiling. No jitter, so delays never
// decrease within one watch.
func PollPolicy(interval, ceiling time.Duration) Policy {
	if ceiling < interval {
		ceiling = interval
	}
	return Policy{
		InitialDelay:    interval,
		MaxDelay:        ceiling,
		BackoffStrategy: BackoffExponential,
	}
}

// FixedPolicy returns a policy that always waits the same delay.
func FixedPolicy(delay time.Duration) Policy {
	return Policy{
		InitialDelay:    delay,
		MaxDelay:        delay,
		BackoffStrategy: BackoffFixed,
	}
}

// CalculateDelay calculates the delay for a given attempt (1-based).
func (p Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var delay time.Duration

	switch p.BackoffStrategy {
	case BackoffFixed:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		// cap the exponent so the multiplication cannot overflow
		exp := math.Min(float64(attempt-1), 30)
		delay = p.InitialDelay * time.Duration(math.Pow(2, exp))
	default:
		delay = p.InitialDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.JitterFactor > 0 {
		jitter := float64(delay) * p.JitterFactor * (rand.Float64()*2 - 1) // -jitter to +jitter
		delay = time.Duration(float64(delay) + jitter)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// Next returns the delay that follows current under this policy: doubled (or
// stepped) and capped, never below current.
func (p Policy) Next(current time.Duration) time.Duration {
	if current <= 0 {
		return p.CalculateDelay(1)
	}
	var next time.Duration
	switch p.BackoffStrategy {
	case BackoffExponential:
		next = current * 2
	case BackoffLinear:
		next = current + p.InitialDelay
	default:
		next = current
	}
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	if next < current {
		next = current
	}
	return next
}
