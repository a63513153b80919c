package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Masomo", CleanString("  Masomo \n"))
	assert.Equal(t, "masomo", CleanString(" MASOMO ", true))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "session.json")

	require.NoError(t, WriteFileAtomic(name, []byte("first"), 0o600))
	require.NoError(t, WriteFileAtomic(name, []byte("second"), 0o600))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file left behind")
}

func TestWriteFileAtomic_missingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "nope", "f.txt"), []byte("x"), 0o644)
	assert.Error(t, err)
}
