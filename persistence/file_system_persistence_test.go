package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataDir = "testdata"

func TestMain(m *testing.M) {
	// Setup: Create testdata directory
	if err := os.MkdirAll(testDataDir, 0755); err != nil {
		panic(err)
	}

	// Run tests
	code := m.Run()

	// Teardown: Remove testdata directory
	if err := os.RemoveAll(testDataDir); err != nil {
		panic(err)
	}

	os.Exit(code)
}

func newTestFilesystem(t *testing.T, name string) (*Filesystem, string) {
	t.Helper()
	testDir := filepath.Join(testDataDir, name)
	require.NoError(t, os.MkdirAll(testDir, 0755))
	t.Cleanup(func() { os.RemoveAll(testDir) })

	p, err := New(testDir)
	require.NoError(t, err)
	return p, testDir
}

func TestPersistor_NewAndClose(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_new_close")
	require.NotNil(t, p.rootFS)

	// Test Close doesn't panic and properly closes the resource
	assert.NotPanics(t, func() {
		p.Close()
	})

	// After close, operations should fail
	_, err := p.Keys()
	assert.Error(t, err, "operations after close should fail")
}

func TestPersistor_NewMissingFolder(t *testing.T) {
	_, err := New(filepath.Join(testDataDir, "does_not_exist"))
	assert.Error(t, err)
}

func TestPersistor_Write(t *testing.T) {
	p, testDir := newTestFilesystem(t, "test_write")
	defer p.Close()

	key := "test_key"
	err := p.Write(key, kvstore.NewStringItem("test_value", time.Now()))
	assert.NoError(t, err)

	// Verify the directory and files were created
	keyDir := filepath.Join(testDir, keyFolder(key))
	_, err = os.Stat(keyDir)
	assert.NoError(t, err, "key directory should exist")

	_, err = os.Stat(filepath.Join(keyDir, metaDataFilename))
	assert.NoError(t, err, "metadata file should exist")

	_, err = os.Stat(filepath.Join(keyDir, dataFilename))
	assert.NoError(t, err, "data file should exist")
}

func TestPersistor_KeysWithSeparators(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_separators")
	defer p.Close()

	// Encoded keys often carry '/', '+' and '='.
	key := "a/b+c==/../d"
	require.NoError(t, p.Write(key, kvstore.NewStringItem("v", time.Now())))

	keys, err := p.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	item, err := p.Read(key, true)
	require.NoError(t, err)
	assert.Equal(t, "v", item.Data)
}

func TestPersistor_OpaqueKeys(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_opaque_keys")
	defer p.Close()

	keys := []string{"", "a\x00b", "\xff\xfe"}
	for _, key := range keys {
		require.NoError(t, p.Write(key, kvstore.NewStringItem("v", time.Now())))
		item, err := p.Read(key, true)
		require.NoError(t, err)
		assert.Equal(t, "v", item.Data)
	}

	got, err := p.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, got)

	require.NoError(t, p.Delete(""))
	_, err = p.Read("", false)
	assert.Error(t, err)
}

func TestPersistor_Read(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_read")
	defer p.Close()

	key := "test_key"
	require.NoError(t, p.Write(key, kvstore.NewStringItem("test_value", time.Now())))

	// Read with value
	readValue, err := p.Read(key, true)
	assert.NoError(t, err)
	assert.NotNil(t, readValue)
	assert.Equal(t, "test_value", readValue.Data)
	assert.Equal(t, kvstore.StringKind, readValue.Kind)
	assert.True(t, readValue.Loaded())

	// Read without value (metadata only)
	readMetadata, err := p.Read(key, false)
	assert.NoError(t, err)
	assert.NotNil(t, readMetadata)
	assert.Empty(t, readMetadata.Data, "data should not be loaded when readValue is false")
	assert.False(t, readMetadata.Loaded())
	assert.Equal(t, kvstore.StringKind, readMetadata.Kind)
}

func TestPersistor_ReadStringSet(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_read_set")
	defer p.Close()

	key := "set_key"
	require.NoError(t, p.Write(key, kvstore.NewStringSetItem(kvstore.NewStringSet("b", "a"), time.Now())))

	readValue, err := p.Read(key, true)
	require.NoError(t, err)
	assert.Equal(t, kvstore.StringSetKind, readValue.Kind)
	assert.Equal(t, []string{"a", "b"}, readValue.Set.Values())
}

func TestPersistor_ReadNonExistent(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_read_nonexistent")
	defer p.Close()

	_, err := p.Read("non_existent_key", true)
	assert.Error(t, err)
}

func TestPersistor_Delete(t *testing.T) {
	p, testDir := newTestFilesystem(t, "test_delete")
	defer p.Close()

	key := "test_key"
	require.NoError(t, p.Write(key, kvstore.NewStringItem("test_value", time.Now())))

	// Verify it exists
	keyDir := filepath.Join(testDir, keyFolder(key))
	_, err := os.Stat(keyDir)
	require.NoError(t, err)

	// Delete
	assert.NoError(t, p.Delete(key))

	// Verify it's gone
	_, err = os.Stat(keyDir)
	assert.True(t, os.IsNotExist(err), "key directory should be removed after delete")

	// Deleting again is not an error
	assert.NoError(t, p.Delete(key))
}

func TestPersistor_Keys(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_keys")
	defer p.Close()

	// Initially empty
	keys, err := p.Keys()
	assert.NoError(t, err)
	assert.Empty(t, keys)

	// Write multiple keys
	expectedKeys := []string{"key1", "key2", "key3"}
	for _, key := range expectedKeys {
		require.NoError(t, p.Write(key, kvstore.NewStringItem("value_"+key, time.Now())))
	}

	// Get keys
	keys, err = p.Keys()
	assert.NoError(t, err)
	assert.ElementsMatch(t, expectedKeys, keys)
}

func TestPersistor_WriteReadDeleteCycle(t *testing.T) {
	p, _ := newTestFilesystem(t, "test_cycle")
	defer p.Close()

	key := "cycle_key"

	// Write
	assert.NoError(t, p.Write(key, kvstore.NewStringItem("original_data", time.Now())))

	// Read
	readValue, err := p.Read(key, true)
	assert.NoError(t, err)
	assert.Equal(t, "original_data", readValue.Data)

	// Update, switching type
	assert.NoError(t, p.Write(key, kvstore.NewStringSetItem(kvstore.NewStringSet("updated"), time.Now())))

	// Read again
	readValue, err = p.Read(key, true)
	assert.NoError(t, err)
	assert.Equal(t, kvstore.StringSetKind, readValue.Kind)
	assert.True(t, readValue.Set.Contains("updated"))

	// Delete
	assert.NoError(t, p.Delete(key))

	// Verify deleted
	_, err = p.Read(key, true)
	assert.Error(t, err)
}

func TestPersistor_NoResourceLeak(t *testing.T) {
	testDir := filepath.Join(testDataDir, "test_leak")
	require.NoError(t, os.MkdirAll(testDir, 0755))
	defer os.RemoveAll(testDir)

	// Create and close multiple persistors to test for resource leaks
	for i := 0; i < 100; i++ {
		p, err := New(testDir)
		require.NoError(t, err)

		key := "leak_test_key"
		require.NoError(t, p.Write(key, kvstore.NewStringItem("leak_test_value", time.Now())))

		_, err = p.Read(key, true)
		require.NoError(t, err)

		// Close should clean up resources
		p.Close()
	}
}
