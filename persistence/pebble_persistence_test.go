package persistence

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemPebble(t *testing.T, fs vfs.FS) *Pebble {
	t.Helper()
	p, err := NewPebble("db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	return p
}

func TestPebble(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, p *Pebble)
	}{
		{
			name: "write_read",
			fn:   testPebbleWriteRead,
		},
		{
			name: "metadata_only",
			fn:   testPebbleMetadataOnly,
		},
		{
			name: "delete",
			fn:   testPebbleDelete,
		},
		{
			name: "keys",
			fn:   testPebbleKeys,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newMemPebble(t, vfs.NewMem())
			defer p.Close()

			tc.fn(t, p)
		})
	}
}

func testPebbleWriteRead(t *testing.T, p *Pebble) {
	require.NoError(t, p.Write("s", kvstore.NewStringItem("value", time.Now())))
	require.NoError(t, p.Write("set", kvstore.NewStringSetItem(kvstore.NewStringSet("a", "b"), time.Now())))

	item, err := p.Read("s", true)
	require.NoError(t, err)
	assert.Equal(t, "value", item.Data)

	item, err = p.Read("set", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, item.Set.Values())

	_, err = p.Read("missing", true)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func testPebbleMetadataOnly(t *testing.T, p *Pebble) {
	require.NoError(t, p.Write("s", kvstore.NewStringItem("value", time.Now())))

	item, err := p.Read("s", false)
	require.NoError(t, err)
	assert.Equal(t, kvstore.StringKind, item.Kind)
	assert.False(t, item.Loaded())
	assert.Empty(t, item.Data)
}

func testPebbleDelete(t *testing.T, p *Pebble) {
	require.NoError(t, p.Write("s", kvstore.NewStringItem("value", time.Now())))
	require.NoError(t, p.Delete("s"))
	require.NoError(t, p.Delete("s"))

	_, err := p.Read("s", true)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func testPebbleKeys(t *testing.T, p *Pebble) {
	for _, k := range []string{"b", "a", "", "c"} {
		require.NoError(t, p.Write(k, kvstore.NewStringItem(k, time.Now())))
	}
	keys, err := p.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"", "a", "b", "c"}, keys)
}

func TestPebble_StoreRestart(t *testing.T) {
	fs := vfs.NewMem()

	p := newMemPebble(t, fs)
	s, err := kvstore.New(kvstore.WithPersistenceOption(p))
	require.NoError(t, err)
	require.NoError(t, s.Edit().PutString("k", "v").PutInt("n", 3).Commit())
	s.Close()

	s2, err := kvstore.New(kvstore.WithPersistenceOption(newMemPebble(t, fs)))
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.GetString("k", "")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	n, err := s2.GetInt("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
