package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		assert.False(t, id.Empty())
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, "ff", ID(255).String())
}
