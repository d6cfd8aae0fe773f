package opregion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"amlvm/engine"
	"amlvm/opregion"
)

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := opregion.NewMemory()
	node := &engine.NamedNode{FieldOpRegion: "GPE0", FieldOffset: 4, FieldWidth: 32}

	require.NoError(t, m.Write(context.Background(), node, engine.IntegerObject(0xDEADBEEF)))
	got, err := m.Read(context.Background(), node)
	require.NoError(t, err)
	v, err := got.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0xDEADBEEF), v)
}

func TestControllerReadWriteRoundTrip(t *testing.T) {
	c := opregion.NewController()
	defer c.Close()
	node := &engine.NamedNode{FieldOpRegion: "EC0", FieldOffset: 1, FieldWidth: 8}

	require.NoError(t, c.Write(context.Background(), node, engine.IntegerObject(0x7A)))
	got, err := c.Read(context.Background(), node)
	require.NoError(t, err)
	v, err := got.AsInteger()
	require.NoError(t, err)
	require.Equal(t, uint64(0x7A), v)
}
