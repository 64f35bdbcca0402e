package seedwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/covfuzz/internal/obslog"
)

func TestLoadExistingLoadsAllFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"), []byte("beta"), 0o644))

	logger, _ := obslog.Default(false)
	w, err := New(dir, logger)
	require.NoError(t, err)
	defer w.Close()

	samples, err := w.LoadExisting()
	require.NoError(t, err)
	require.Len(t, samples, 2)

	var contents []string
	for _, s := range samples {
		contents = append(contents, string(s.Bytes()))
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, contents)
}

func TestLoadExistingSkipsAlreadySeenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("alpha"), 0o644))

	logger, _ := obslog.Default(false)
	w, err := New(dir, logger)
	require.NoError(t, err)
	defer w.Close()

	first, err := w.LoadExisting()
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := w.LoadExisting()
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRunDeliversNewlyCreatedFile(t *testing.T) {
	dir := t.TempDir()
	logger, _ := obslog.Default(false)
	w, err := New(dir, logger)
	require.NoError(t, err)
	defer w.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new-seed"), []byte("fresh"), 0o644))

	select {
	case sample := <-w.Samples():
		assert.Equal(t, "fresh", string(sample.Bytes()))
	case <-time.After(2 * time.Second):
		t.Fatal("no sample delivered for the new seed file")
	}

	close(stop)
	<-done
}
