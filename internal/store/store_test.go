package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreMemory(t *testing.T) {
	t.Run("lookup on empty store", func(t *testing.T) {
		s, err := Open("")
		require.NoError(t, err)
		_, ok := s.LookupByHash("123")
		assert.False(t, ok)
	})

	t.Run("merge stores a fresh entry", func(t *testing.T) {
		s, err := Open("")
		require.NoError(t, err)

		stored, err := s.Merge(Entry{Key: "song", KeyHash: "42", Value: "a"})
		require.NoError(t, err)
		assert.Equal(t, "a", stored.Value)

		got, ok := s.LookupByHash("42")
		require.True(t, ok)
		assert.Equal(t, "song", got.Key)
		assert.Equal(t, "a", got.Value)
	})

	t.Run("merge concatenates in order", func(t *testing.T) {
		s, err := Open("")
		require.NoError(t, err)

		_, err = s.Merge(Entry{Key: "song", KeyHash: "42", Value: "a"})
		require.NoError(t, err)
		stored, err := s.Merge(Entry{Key: "song", KeyHash: "42", Value: "b"})
		require.NoError(t, err)
		assert.Equal(t, "ab", stored.Value)

		got, _ := s.LookupByHash("42")
		assert.Equal(t, "ab", got.Value)
	})

	t.Run("remove deletes the entry", func(t *testing.T) {
		s, err := Open("")
		require.NoError(t, err)

		_, err = s.Merge(Entry{Key: "song", KeyHash: "42", Value: "a"})
		require.NoError(t, err)
		require.NoError(t, s.RemoveByHash("42"))

		_, ok := s.LookupByHash("42")
		assert.False(t, ok)
	})

	t.Run("remove of absent hash is a no-op", func(t *testing.T) {
		s, err := Open("")
		require.NoError(t, err)
		assert.NoError(t, s.RemoveByHash("nope"))
	})

	t.Run("entries snapshots the shard", func(t *testing.T) {
		s, err := Open("")
		require.NoError(t, err)

		_, err = s.Merge(Entry{Key: "a", KeyHash: "1", Value: "x"})
		require.NoError(t, err)
		_, err = s.Merge(Entry{Key: "b", KeyHash: "2", Value: "y"})
		require.NoError(t, err)

		assert.Len(t, s.Entries(), 2)
	})
}

func TestDocumentStorePersistence(t *testing.T) {
	t.Run("wal replay restores the shard", func(t *testing.T) {
		dir := t.TempDir()

		s, err := Open(dir)
		require.NoError(t, err)
		_, err = s.Merge(Entry{Key: "song", KeyHash: "42", Value: "a"})
		require.NoError(t, err)
		_, err = s.Merge(Entry{Key: "gone", KeyHash: "7", Value: "x"})
		require.NoError(t, err)
		require.NoError(t, s.RemoveByHash("7"))
		require.NoError(t, s.wal.close())

		reopened, err := Open(dir)
		require.NoError(t, err)
		got, ok := reopened.LookupByHash("42")
		require.True(t, ok)
		assert.Equal(t, "a", got.Value)
		_, ok = reopened.LookupByHash("7")
		assert.False(t, ok)
	})

	t.Run("snapshot then reopen", func(t *testing.T) {
		dir := t.TempDir()

		s, err := Open(dir)
		require.NoError(t, err)
		_, err = s.Merge(Entry{Key: "song", KeyHash: "42", Value: "ab"})
		require.NoError(t, err)
		require.NoError(t, s.Snapshot())
		// Post-snapshot mutations land in the truncated WAL.
		_, err = s.Merge(Entry{Key: "song", KeyHash: "42", Value: "c"})
		require.NoError(t, err)
		require.NoError(t, s.wal.close())

		reopened, err := Open(dir)
		require.NoError(t, err)
		got, ok := reopened.LookupByHash("42")
		require.True(t, ok)
		assert.Equal(t, "abc", got.Value)
	})

	t.Run("close flushes a final snapshot", func(t *testing.T) {
		dir := t.TempDir()

		s, err := Open(dir)
		require.NoError(t, err)
		_, err = s.Merge(Entry{Key: "song", KeyHash: "42", Value: "a"})
		require.NoError(t, err)
		require.NoError(t, s.Close())

		reopened, err := Open(dir)
		require.NoError(t, err)
		got, ok := reopened.LookupByHash("42")
		require.True(t, ok)
		assert.Equal(t, "a", got.Value)
	})
}
