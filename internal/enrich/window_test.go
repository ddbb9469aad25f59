package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowTrailingSum(t *testing.T) {
	w := newWindow(7)
	assert.Zero(t, w.sum(), "empty window sums to zero")

	for i := 1; i <= 7; i++ {
		w.push(i)
	}
	assert.Equal(t, 28, w.sum())

	// The eighth push evicts the oldest value.
	w.push(10)
	assert.Equal(t, 28-1+10, w.sum())

	for i := 0; i < 7; i++ {
		w.push(0)
	}
	assert.Zero(t, w.sum(), "window drains after seven zero days")
}
