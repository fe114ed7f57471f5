package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptVersion(t *testing.T) {
	assert.True(t, AcceptVersion(3, 3))

	// Stale client
	assert.False(t, AcceptVersion(2, 3))

	// Client claims a future version it cannot have seen
	assert.False(t, AcceptVersion(4, 3))
}
