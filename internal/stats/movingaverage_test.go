package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMovingAverage_PartialWindow(t *testing.T) {
	avg := NewMovingAverage(4)

	assert.InDelta(t, 0.0, avg.Average(), 1e-9, "empty average must be zero")
	assert.False(t, avg.Full())

	avg.Add(0.5)
	avg.Add(0.7)

	assert.InDelta(t, 0.6, avg.Average(), 1e-9)
	assert.False(t, avg.Full())
}

func TestMovingAverage_EvictsOldest(t *testing.T) {
	avg := NewMovingAverage(3)

	avg.Add(1)
	avg.Add(2)
	avg.Add(3)

	assert.True(t, avg.Full())
	assert.InDelta(t, 2.0, avg.Average(), 1e-9)

	// 1 falls out of the window.
	avg.Add(6)

	assert.InDelta(t, (2.0+3.0+6.0)/3.0, avg.Average(), 1e-9)
	assert.True(t, avg.Full())
}

func TestMovingAverage_Flush(t *testing.T) {
	avg := NewMovingAverage(2)

	avg.Add(0.9)
	avg.Add(0.9)

	avg.Flush()

	assert.False(t, avg.Full())
	assert.InDelta(t, 0.0, avg.Average(), 1e-9)

	avg.Add(0.25)

	assert.InDelta(t, 0.25, avg.Average(), 1e-9)
}

func TestNewMovingAverage_ClampsWindow(t *testing.T) {
	avg := NewMovingAverage(0)

	assert.Equal(t, 1, avg.Window())

	avg.Add(0.5)

	assert.True(t, avg.Full())
}
