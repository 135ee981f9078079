package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Defaults(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(Config{Level: "debug", Encoding: "json", OutputPath: path})
	require.NoError(t, err)

	log.Debug("job claimed")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp"`)
	assert.Contains(t, string(data), `"level":"DEBUG"`)
	assert.Contains(t, string(data), `"msg":"job claimed"`)
}

func TestNew_AttachesServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(Config{OutputPath: path, Service: "pinksync", Env: "production"})
	require.NoError(t, err)

	ForJob(log, "job-1", "abc").Info("job completed")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"pinksync"`)
	assert.Contains(t, string(data), `"env":"production"`)
	assert.Contains(t, string(data), `"job_id":"job-1"`)
	assert.Contains(t, string(data), `"fingerprint":"abc"`)
	assert.NotContains(t, string(data), `"caller"`)
}

func TestForJob_OmitsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(Config{OutputPath: path})
	require.NoError(t, err)

	ForJob(log, "", "abc").Info("cache lookup")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"job_id"`)
	assert.Contains(t, string(data), `"fingerprint":"abc"`)
}
