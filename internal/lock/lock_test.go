package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	l := New(dir)

	release, err := l.Acquire("rotate", "host1/databases/db1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "rotate-host1%2Fdatabases%2Fdb1.lock"))

	// A second handle on the same file cannot take the lock.
	_, err = New(dir).Acquire("rotate", "host1/databases/db1")
	assert.ErrorIs(t, err, ErrLocked)

	// Other commands and other targets are independent.
	other, err := l.Acquire("backup", "host1/databases/db1")
	require.NoError(t, err)
	other()
	other, err = l.Acquire("rotate", "host1/databases/db2")
	require.NoError(t, err)
	other()

	release()
	again, err := l.Acquire("rotate", "host1/databases/db1")
	require.NoError(t, err)
	again()
}

func TestPathIsUniquePerKey(t *testing.T) {
	l := New(t.TempDir())
	a := l.Path("rotate", "a/databases/b_files_c")
	b := l.Path("rotate", "a_databases_b/files/c")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, l.Path("rotate", "h/files/x%2Fy"), l.Path("rotate", "h/files/x/y"))

	release, err := l.Acquire("rotate", "a/databases/b_files_c")
	require.NoError(t, err)
	defer release()
	other, err := l.Acquire("rotate", "a_databases_b/files/c")
	require.NoError(t, err)
	other()
}
