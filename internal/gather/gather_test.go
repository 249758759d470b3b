package gather

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGatherConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "2.ae.log"), "second\n")
	writeFile(t, filepath.Join(dir, "a", "1.ae.log"), "first\n")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "not a trace\n")

	out, err := Gather(context.Background(), dir, false)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(out))
}

func TestGatherRemovesConsumedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.ae.log")
	writeFile(t, path, "data\n")

	_, err := Gather(context.Background(), dir, true)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}
