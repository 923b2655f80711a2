package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abelbrown/insight/internal/analytics"
	"github.com/abelbrown/insight/internal/segment"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPITimeout, "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, analytics.DefaultBaseURL, cfg.API.BaseURL)
	require.Equal(t, 60*time.Second, cfg.Timeout())

	wf := cfg.Workflow()
	require.Equal(t, segment.KMeans, wf.Algorithm)
	require.Equal(t, segment.DefaultNClusters, wf.KMeans.NClusters)
	require.Zero(t, wf.Features.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPITimeout, "")
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Defaults.Algorithm = "dbscan"
	cfg.Defaults.Eps = 0.8
	cfg.Defaults.Features = []string{"Age", "Average Rating"}
	require.NoError(t, cfg.Save(dir))

	got, err := Load(dir)
	require.NoError(t, err)

	wf := got.Workflow()
	require.Equal(t, segment.DBSCAN, wf.Algorithm)
	require.Equal(t, 0.8, wf.DBSCAN.Eps)
	require.Equal(t, segment.DefaultMinSamples, wf.DBSCAN.MinSamples)
	require.Equal(t, []string{"Age", "Average Rating"}, wf.Features.Values())
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvAPIURL, "http://localhost:9000")
	t.Setenv(EnvAPITimeout, "5")

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Timeout())

	t.Setenv(EnvAPITimeout, "soon")
	_, err = Load(dir)
	require.Error(t, err)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(ConfigPath(dir), []byte("{not json"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestDataDirAndExportDir(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/insight-test")
	require.Equal(t, "/tmp/insight-test", DataDir())

	cfg := DefaultConfig()
	require.Equal(t, filepath.Join("/data", "exports"), cfg.ExportDir("/data"))
	cfg.UI.ExportDir = "/elsewhere"
	require.Equal(t, "/elsewhere", cfg.ExportDir("/data"))
}

func TestWorkflowIgnoresUnknownAlgorithm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Defaults.Algorithm = "spectral"
	cfg.Defaults.NClusters = 42

	wf := cfg.Workflow()
	require.Equal(t, segment.KMeans, wf.Algorithm)
	// Out-of-range values survive so validation can report them.
	require.Equal(t, 42, wf.KMeans.NClusters)
}
