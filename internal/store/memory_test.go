package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestMemoryBackend_Isolated(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	c := sampleCollection()
	require.NoError(t, b.Save(ctx, c))
	c.Bks["https://go.dev/"].Tags[0] = "mutated"

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lang", got.Bks["https://go.dev/"].Tags[0])

	got.EtagVersion = 99
	again, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), again.EtagVersion)
	assert.Equal(t, 1, b.Saves())
}
