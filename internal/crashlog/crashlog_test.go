package crashlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/covfuzz/internal/tracer"
)

func TestNewCrashNameIsTwelveHexChars(t *testing.T) {
	name, err := NewCrashName()
	require.NoError(t, err)
	assert.Len(t, name, 12)
	for _, r := range name {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestRecordNewWritesArtifactForCrash(t *testing.T) {
	dir := t.TempDir()
	start := time.Now()
	p, err := NewAt(dir, filepath.Join(dir, "fuzzing.log"), start)
	require.NoError(t, err)
	defer p.Close()

	err = p.RecordNew(tracer.Result{Kind: tracer.ResultSignal}, []byte("boom"), "deadbeefcafe", start.Add(time.Second))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "deadbeefcafe"))
	require.NoError(t, err)
	assert.Equal(t, "boom", string(data))

	events := readEvents(t, dir)
	require.Len(t, events, 1)
	assert.Equal(t, "NewPath", events[0]["type"])
	assert.Equal(t, "deadbeefcafe", events[0]["trace_id"])
	kindMap := events[0]["kind"].(map[string]interface{})
	assert.Equal(t, "Crash", kindMap["type"])
}

func TestRecordNewForExitCodeSkipsArtifact(t *testing.T) {
	dir := t.TempDir()
	p, err := NewAt(dir, filepath.Join(dir, "fuzzing.log"), time.Now())
	require.NoError(t, err)
	defer p.Close()

	err = p.RecordNew(tracer.Result{Kind: tracer.ResultCode, Code: 7}, []byte("data"), "aaaaaaaaaaaa", time.Now())
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "aaaaaaaaaaaa"))
	assert.True(t, os.IsNotExist(statErr))

	events := readEvents(t, dir)
	require.Len(t, events, 1)
	kindMap := events[0]["kind"].(map[string]interface{})
	assert.Equal(t, "ExitCode", kindMap["type"])
	assert.EqualValues(t, 7, kindMap["code"])
}

func TestRecordSizeImprovementOverwritesArtifact(t *testing.T) {
	dir := t.TempDir()
	p, err := NewAt(dir, filepath.Join(dir, "fuzzing.log"), time.Now())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.RecordNew(tracer.Result{Kind: tracer.ResultSignal}, []byte("longlongcrash"), "0123456789ab", time.Now()))
	require.NoError(t, p.RecordSizeImprovement("0123456789ab", []byte("short"), 8))

	data, err := os.ReadFile(filepath.Join(dir, "0123456789ab"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))

	events := readEvents(t, dir)
	require.Len(t, events, 2)
	assert.Equal(t, "SizeImprovement", events[1]["type"])
	assert.EqualValues(t, 8, events[1]["delta"])
}

func readEvents(t *testing.T, dir string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "fuzzing.log"))
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	return out
}
