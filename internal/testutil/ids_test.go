package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDGenerator_Order(t *testing.T) {
	gen := NewSequentialIDGenerator("")

	assert.Equal(t, "00000000-0000-4000-8000-000000000001", gen.Generate())
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", gen.Generate())
}

func TestSequentialIDGenerator_Prefix(t *testing.T) {
	gen := NewSequentialIDGenerator("deadbeef")
	assert.Equal(t, "deadbeef-0000-4000-8000-000000000001", gen.Generate())
}

func TestSequentialIDGenerator_ParsesAsUUID(t *testing.T) {
	gen := NewSequentialIDGenerator("")
	_, err := uuid.Parse(gen.Generate())
	require.NoError(t, err)
}
