package processmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()

	want := []time.Duration{1, 1, 2, 4, 8, 16, 30, 30}
	for n, w := range want {
		assert.Equal(t, w*time.Second, p.Delay(n), "failures=%d", n)
	}
	assert.Equal(t, p.Max, p.Delay(10_000))
}

func TestRetryPolicy_WithDefaults(t *testing.T) {
	p := RetryPolicy{Base: 5 * time.Second, Max: time.Second}.withDefaults()
	assert.Equal(t, 5*time.Second, p.Max)
	assert.Equal(t, 2.0, p.Factor)
	assert.Equal(t, 30*time.Second, p.HealthyAfter)
}

func TestRetryState_AfterExit(t *testing.T) {
	p := DefaultRetryPolicy()
	var r RetryState

	r = r.afterExit(p, 0)
	assert.Equal(t, RetryState{ConsecutiveFailures: 1, NextBackoff: time.Second}, r)
	r = r.afterExit(p, time.Second)
	assert.Equal(t, RetryState{ConsecutiveFailures: 2, NextBackoff: 2 * time.Second}, r)

	// ran long enough: not part of a crash loop
	r = r.afterExit(p, p.HealthyAfter)
	assert.Equal(t, RetryState{ConsecutiveFailures: 1, NextBackoff: time.Second}, r)
}

func TestState_String(t *testing.T) {
	for _, s := range States() {
		assert.NotEqual(t, "unknown", s.String())
	}
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateStopped.IsTerminal())
	assert.False(t, StateBackoff.IsTerminal())
}
