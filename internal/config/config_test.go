package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"cninfo", "sse", "bse"}, cfg.Crawl.Markets)
	assert.Equal(t, 4, cfg.Crawl.Concurrency)
	assert.Equal(t, time.Second, cfg.Crawl.HostDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "data/snapshots", cfg.Paths.SnapshotsDir)
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crawl:
  markets: ["sse"]
  limit: 25
logging:
  level: debug
`), 0o644))

	t.Setenv("CNP_CRAWL_LIMIT", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"sse"}, cfg.Crawl.Markets, "file value survives")
	assert.Equal(t, 10, cfg.Crawl.Limit, "env overrides file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port, "default fills unset field")
}

func TestLoad_RejectsUnknownMarket(t *testing.T) {
	t.Setenv("CNP_CRAWL_MARKETS", "cninfo,nasdaq")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoad_RejectsBadSnapshotDate(t *testing.T) {
	t.Setenv("CNP_CRAWL_SNAPSHOT_DATE", "08/28/2026")

	_, err := Load("")
	require.Error(t, err)
}

func TestEffectiveSnapshotDate(t *testing.T) {
	c := CrawlConfig{SnapshotDate: "2026-01-02"}
	assert.Equal(t, "2026-01-02", c.EffectiveSnapshotDate())

	c.SnapshotDate = ""
	assert.Equal(t, time.Now().Format("2006-01-02"), c.EffectiveSnapshotDate())
}

func TestNormalizedMarkets(t *testing.T) {
	c := CrawlConfig{Markets: []string{" CNINFO ", "sse", ""}}
	assert.Equal(t, []string{"cninfo", "sse"}, c.NormalizedMarkets())
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	p := PathsConfig{
		SnapshotsDir: filepath.Join(base, "snap"),
		StateDir:     filepath.Join(base, "state"),
		LogsDir:      filepath.Join(base, "logs"),
	}
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.SnapshotsDir, p.StateDir, p.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	assert.Equal(t, filepath.Join(p.SnapshotsDir, "2026-08-28"), p.SnapshotDir("2026-08-28"))
}
