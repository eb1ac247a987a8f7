package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayContract runs the behaviour every Gateway must share.
func gatewayContract(t *testing.T, gw Gateway) {
	t.Helper()
	ctx := context.Background()

	_, err := gw.Load(ctx, KeyProducts)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, gw.Save(ctx, KeyProducts, []byte(`[{"barcode":"A1"}]`)))
	got, err := gw.Load(ctx, KeyProducts)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"barcode":"A1"}]`, string(got))

	require.NoError(t, gw.Save(ctx, KeyProducts, []byte(`[]`)))
	got, err = gw.Load(ctx, KeyProducts)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	assert.ErrorIs(t, gw.Save(ctx, "", []byte("x")), ErrEmptyKey)
}

func TestMemoryStore(t *testing.T) {
	gatewayContract(t, NewMemoryStore())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, s.Save(context.Background(), "k", data))
	data[0] = 'z'

	got, _ := s.Load(context.Background(), "k")
	assert.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "data"))
	require.NoError(t, err)
	gatewayContract(t, s)
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), KeyTransactions, []byte("[]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "transactions.json", entries[0].Name())
}
