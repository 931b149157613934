package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appKeys = []string{
	"APP_ENV", "GO_ENV", "APP_MODE", "APP_GITHUB_TOKEN", "APP_GITHUB_CLIENT_ID",
	"APP_GITHUB_PRIVATE_KEY", "APP_GITHUB_INSTALLATION_ID", "APP_REDIS_URL",
	"APP_TOP_LIMIT", "APP_REQUESTS_PER_SECOND", "APP_REDIS_CLAIM_IDLE",
}

// isolate runs the test in an empty directory with the app variables unset.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range appKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("APP_GITHUB_TOKEN", "tok")

	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, ModeOnce, cfg.Mode)
	assert.Equal(t, 100, cfg.TopLimit)
	assert.Equal(t, 100, cfg.RequestsPerSecond)
	assert.Equal(t, 100, cfg.ConcurrencyLimit)
	assert.Equal(t, 2, cfg.MaxTokensMultiplier)
	assert.Equal(t, 100*time.Millisecond, cfg.MinSleepTime)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 1, cfg.CommitPages)
	assert.Equal(t, time.Minute, cfg.RedisClaimIdle)
	assert.False(t, cfg.UsesGithubApp())
}

func TestLoadRequiresGithubCredentials(t *testing.T) {
	isolate(t)

	_, err := NewLoader("APP").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GithubToken")
}

func TestLoadGithubAppCredentials(t *testing.T) {
	isolate(t)
	t.Setenv("APP_GITHUB_CLIENT_ID", "Iv1.abc")
	t.Setenv("APP_GITHUB_PRIVATE_KEY", `-----BEGIN KEY-----\nabc\n-----END KEY-----`)
	t.Setenv("APP_GITHUB_INSTALLATION_ID", "42")

	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)
	assert.True(t, cfg.UsesGithubApp())
	assert.Equal(t, int64(42), cfg.GithubInstallationID)
	assert.Equal(t, "-----BEGIN KEY-----\nabc\n-----END KEY-----", string(cfg.GithubPrivateKeyPEM()))
}

func TestLoadAppCredentialsNeedKey(t *testing.T) {
	isolate(t)
	t.Setenv("APP_GITHUB_CLIENT_ID", "Iv1.abc")

	_, err := NewLoader("APP").Load()
	require.Error(t, err)
}

func TestLoadWorkerNeedsRedis(t *testing.T) {
	isolate(t)
	t.Setenv("APP_GITHUB_TOKEN", "tok")
	t.Setenv("APP_MODE", "worker")

	_, err := NewLoader("APP").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RedisURL")

	t.Setenv("APP_REDIS_URL", "redis://localhost:6379/0")
	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)
	assert.Equal(t, ModeWorker, cfg.Mode)
}

func TestLoadRejectsOutOfRangeLimit(t *testing.T) {
	isolate(t)
	t.Setenv("APP_GITHUB_TOKEN", "tok")
	t.Setenv("APP_TOP_LIMIT", "250")

	_, err := NewLoader("APP").Load()
	require.Error(t, err)
}

func TestLoadRejectsZeroRate(t *testing.T) {
	isolate(t)
	t.Setenv("APP_GITHUB_TOKEN", "tok")
	t.Setenv("APP_REQUESTS_PER_SECOND", "0")

	_, err := NewLoader("APP").Load()
	require.Error(t, err)
}

func TestLoadReadsDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("APP_GITHUB_TOKEN=from-file\nAPP_TOP_LIMIT=7\n"), 0o600))

	cfg, err := NewLoader("APP").Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.GithubToken)
	assert.Equal(t, 7, cfg.TopLimit)
}
