package web

import (
	"testing"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayCappedAtSixtySeconds(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
	assert.Equal(t, 32*time.Second, backoffDelay(5))
	assert.Equal(t, 60*time.Second, backoffDelay(6))
	assert.Equal(t, 60*time.Second, backoffDelay(10))
}

func TestNeedsIdleWaiter(t *testing.T) {
	assert.True(t, NeedsIdleWaiter(db.WaitStrategyNetworkIdle))
	assert.True(t, NeedsIdleWaiter(db.WaitStrategyCombined))
	assert.False(t, NeedsIdleWaiter(db.WaitStrategyTimeout))
	assert.False(t, NeedsIdleWaiter(db.WaitStrategyLoad))
	assert.False(t, NeedsIdleWaiter(db.WaitStrategyDOMContentLoaded))
}

func TestWaitIdleReturnsWhenWaiterCompletes(t *testing.T) {
	ok := waitIdle(func() {}, time.Second)
	assert.True(t, ok)
}

func TestWaitIdleTimesOutOnStuckWaiter(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	ok := waitIdle(func() { <-block }, 50*time.Millisecond)
	assert.False(t, ok)
}

func TestWaitIdleNilWaiter(t *testing.T) {
	assert.False(t, waitIdle(nil, time.Second))
}
