package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	t.Setenv("GOOMS_SERVER_URL", "")
	t.Setenv("GOOMS_TOKEN", "")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.BaseBackoff)

	_, err = loadConfig(filepath.Join(t.TempDir(), "none.yaml"), true)
	assert.Error(t, err)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://erp.example.com/
db_path: /tmp/queue.db
interval: 1m
max_retries: 5
base_backoff: 500ms
`), 0o600))
	t.Setenv("GOOMS_SERVER_URL", "")
	t.Setenv("GOOMS_TOKEN", "secret-token")

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://erp.example.com", cfg.ServerURL)
	assert.Equal(t, "secret-token", cfg.Token)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.BaseBackoff)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retries: 0\n"), 0o600))

	_, err := loadConfig(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retries")
}

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCommands_EnqueueListStats(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("db_path: "+filepath.Join(dir, "queue.db")+"\nlog_level: error\n"), 0o600))

	id := strings.TrimSpace(run(t, cfgPath, "enqueue", "create", "sales", `{"product_id":1,"location_id":3,"quantity":"6"}`))
	assert.Len(t, id, 36)

	run(t, cfgPath, "enqueue", "delete", "financial_transactions", "--record-id", "9")

	list := run(t, cfgPath, "list")
	assert.Contains(t, list, id)
	assert.Contains(t, list, "record_id: \"9\"")

	stats := run(t, cfgPath, "stats")
	assert.Contains(t, stats, "pending: 2")
	assert.Contains(t, stats, "failed: 0")
}
