package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, argmax([]float32{0.9, 0.05, 0.05}))
	assert.Equal(t, 1, argmax([]float32{0.1, 0.8, 0.1}))
	assert.Equal(t, 2, argmax([]float32{0.1, 0.2, 0.7}))
	// ties resolve to the first index, keeping inference deterministic
	assert.Equal(t, 0, argmax([]float32{0.5, 0.5, 0.0}))
	assert.Equal(t, 0, argmax(nil))
}
