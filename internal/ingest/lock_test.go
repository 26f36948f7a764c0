package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLock_AcquireAndRelease(t *testing.T) {
	// Given a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "data")
	lock := NewIndexLock(dir)

	// When the lock is acquired
	acquired, err := lock.TryLock()

	// Then it succeeds and the lock file exists
	require.NoError(t, err)
	assert.True(t, acquired)
	_, err = os.Stat(lock.Path())
	require.NoError(t, err)

	require.NoError(t, lock.Unlock())
}

func TestIndexLock_SecondHolderFailsFast(t *testing.T) {
	dir := t.TempDir()
	first := NewIndexLock(dir)
	second := NewIndexLock(dir)

	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	// A second holder on the same directory does not block, it reports busy
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)

	// Once released the lock can be taken over
	require.NoError(t, first.Unlock())
	acquired, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, second.Unlock())
}

func TestIndexLock_UnlockWhenNotHeld(t *testing.T) {
	lock := NewIndexLock(t.TempDir())

	require.NoError(t, lock.Unlock())
}
