package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/janhq/jan-relay/pkg/relay/retry"
)

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name     string
		policy   retry.Policy
		attempt  int
		expected time.Duration
	}{
		{
			name:     "fixed backoff - attempt 5",
			policy:   retry.FixedPolicy(100 * time.Millisecond),
			attempt:  5,
			expected: 100 * time.Millisecond,
		},
		{
			name: "linear backoff - attempt 3",
			policy: retry.Policy{
				BackoffStrategy: retry.BackoffLinear,
				InitialDelay:    100 * time.Millisecond,
				MaxDelay:        time.Second,
			},
			attempt:  3,
			expected: 300 * time.Millisecond,
		},
		{
			name:     "exponential backoff - attempt 3",
			policy:   retry.PollPolicy(time.Second, time.Minute),
			attempt:  3,
			expected: 4 * time.Second,
		},
		{
			name:     "exponential backoff - capped",
			policy:   retry.PollPolicy(3*time.Second, 15*time.Second),
			attempt:  10,
			expected: 15 * time.Second,
		},
		{
			name:     "attempt zero",
			policy:   retry.PollPolicy(time.Second, time.Minute),
			attempt:  0,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.CalculateDelay(tt.attempt))
		})
	}
}

func TestPolicy_JitterStaysInBounds(t *testing.T) {
	p := retry.Policy{
		BackoffStrategy: retry.BackoffFixed,
		InitialDelay:    time.Second,
		JitterFactor:    0.5,
	}
	for i := 0; i < 50; i++ {
		d := p.CalculateDelay(1)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestPolicy_NextNeverDecreases(t *testing.T) {
	p := retry.PollPolicy(3*time.Second, 15*time.Second)

	var got []time.Duration
	delay := time.Duration(0)
	for i := 0; i < 5; i++ {
		delay = p.Next(delay)
		got = append(got, delay)
	}
	assert.Equal(t, []time.Duration{
		3 * time.Second, 6 * time.Second, 12 * time.Second, 15 * time.Second, 15 * time.Second,
	}, got)

	assert.Equal(t, 20*time.Second, p.Next(20*time.Second), "a delay above the ceiling is kept")
	assert.Equal(t, 5*time.Second, retry.FixedPolicy(5*time.Second).Next(5*time.Second))
}

func TestPollPolicy_CeilingBelowInterval(t *testing.T) {
	p := retry.PollPolicy(10*time.Second, time.Second)
	assert.Equal(t, 10*time.Second, p.MaxDelay)
	assert.Equal(t, 10*time.Second, p.CalculateDelay(4))
}
