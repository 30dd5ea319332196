package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundtrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Read(ctx, KeyOrders)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Write(ctx, KeyOrders, []byte(`[{"order_id":"ORD-1"}]`)))
	got, err := m.Read(ctx, KeyOrders)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"order_id":"ORD-1"}]`, string(got))

	// Replacement, not merge.
	require.NoError(t, m.Write(ctx, KeyOrders, []byte(`[]`)))
	got, err = m.Read(ctx, KeyOrders)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestMemoryReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Write(ctx, KeySales, []byte(`[1]`)))

	got, err := m.Read(ctx, KeySales)
	require.NoError(t, err)
	got[0] = 'X'

	again, err := m.Read(ctx, KeySales)
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(again), "callers must not be able to mutate the stored document")
}

func TestFileRoundtrip(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	_, err = f.Read(ctx, KeyInventory)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Write(ctx, KeyInventory, []byte(`[{"id":1,"stock":10}]`)))
	got, err := f.Read(ctx, KeyInventory)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"stock":10}]`, string(got))
}

func TestFileWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Write(ctx, KeySales, []byte(`[]`)))
	require.NoError(t, f.Write(ctx, KeySales, []byte(`[{"id":"SALE-1"}]`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, KeySales+".json", entries[0].Name())
}

func TestFileKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Write(ctx, KeyOrders, []byte(`["o"]`)))
	require.NoError(t, f.Write(ctx, KeySales, []byte(`["s"]`)))

	o, err := f.Read(ctx, KeyOrders)
	require.NoError(t, err)
	s, err := f.Read(ctx, KeySales)
	require.NoError(t, err)
	assert.Equal(t, `["o"]`, string(o))
	assert.Equal(t, `["s"]`, string(s))

	_, err = os.Stat(filepath.Join(dir, KeyOrders+".json"))
	assert.NoError(t, err)
}
