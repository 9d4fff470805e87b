package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// step is one recorded outcome: true for success.
type step bool

const (
	ok   step = true
	fail step = false
)

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		steps    []step
		wantOpen bool
	}{
		{"fresh breaker is closed", nil, nil, false},
		{"below threshold stays closed", []Option{WithFailureThreshold(3)}, []step{fail, fail}, false},
		{"threshold opens", []Option{WithFailureThreshold(3)}, []step{fail, fail, fail}, true},
		{"success resets the failure run", []Option{WithFailureThreshold(3)}, []step{fail, fail, ok, fail, fail}, false},
		{"one success does not close", []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, []step{fail, ok}, true},
		{"success run closes", []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, []step{fail, ok, ok}, false},
		{"failure while open restarts the success run", []Option{WithFailureThreshold(1), WithSuccessThreshold(2)}, []step{fail, ok, fail, ok}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := New("ledger", tc.opts...)
			for _, s := range tc.steps {
				if s {
					b.RecordSuccess()
				} else {
					b.RecordFailure()
				}
			}
			assert.Equal(t, tc.wantOpen, b.IsOpen())
		})
	}
}

func TestBreakerReportsStateChanges(t *testing.T) {
	b := New("ledger", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "ledger", b.Name())

	down, change := b.RecordFailure()
	assert.False(t, down)
	assert.Equal(t, StateChange{}, change)

	down, change = b.RecordFailure()
	assert.True(t, down)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	down, change = b.RecordFailure()
	assert.True(t, down)
	assert.False(t, change.Opened, "already open")

	usable, change := b.RecordSuccess()
	assert.True(t, usable)
	assert.True(t, change.Closed)

	b.RecordFailure()
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerAdmitsProbeAfterCooldown(t *testing.T) {
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	b := New("ledger",
		WithFailureThreshold(1),
		WithCooldown(30*time.Second),
		WithClock(func() time.Time { return now }),
	)

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow(), "a failed probe restarts the cooldown")
}
