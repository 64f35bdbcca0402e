package elfinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRejectsNonELF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-elf")
	require.NoError(t, os.WriteFile(path, []byte("not an elf file"), 0o755))

	_, err := Analyze(path)
	require.Error(t, err)

	var eerr *Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, CodeBadFormat, eerr.Code)
}

func TestAnalyzeRejectsMissingFile(t *testing.T) {
	_, err := Analyze(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	var eerr *Error
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, CodeIO, eerr.Code)
}

func TestBaseOffsetMemoizesFirstValue(t *testing.T) {
	info := &Info{Path: "fake"}

	_, ok := info.BaseOffset()
	assert.False(t, ok)

	info.SetBaseOffset(0x400000)
	info.SetBaseOffset(0x999999) // must not overwrite

	got, ok := info.BaseOffset()
	require.True(t, ok)
	assert.Equal(t, uint64(0x400000), got)
}
