//go:build linux && amd64

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHitsSaturatesAtMany(t *testing.T) {
	h := HitsZero
	h = h.Next()
	assert.Equal(t, HitsOnce, h)
	h = h.Next()
	assert.Equal(t, HitsTwice, h)
	h = h.Next()
	assert.Equal(t, HitsMany, h)
	h = h.Next()
	assert.Equal(t, HitsMany, h)
}

func TestReadBaseOffsetRejectsMissingProcess(t *testing.T) {
	_, err := readBaseOffset(-1)
	assert.Error(t, err)
}
