package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLogOutput(t *testing.T) {
	assert.Equal(t, os.Stderr, openLogOutput("-"))

	path := filepath.Join(t.TempDir(), "rsicalc.log")
	w := openLogOutput(path)
	f, ok := w.(*os.File)
	require.True(t, ok)
	defer f.Close()

	_, err := f.WriteString("hello\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	assert.Equal(t, os.Stderr, openLogOutput(filepath.Join(t.TempDir(), "missing", "x.log")))
}
