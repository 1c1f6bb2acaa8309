package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl  string `json:"base_url"`
	AgencyId int    `json:"agency_id"`
	Api      struct {
		Timeout       int    `json:"timeout"`
		RequestMethod string `json:"request_method"`
	} `json:"api"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	err := os.WriteFile(path, []byte(`{
		// comments are allowed
		base_url: "https://example.policetocitizen.com",
		agency_id: 386,
		api: { timeout: 30, request_method: "POST" },
	}`), 0644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, "https://example.policetocitizen.com", cfg.BaseUrl)
	require.Equal(t, 386, cfg.AgencyId)
	require.Equal(t, 30, cfg.Api.Timeout)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		base_url: "https://example.policetocitizen.com",
		agency_id: 386,
		api: { timeout: 30, request_method: "POST" },
	}`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		api: { request_method: "GET" },
	}`), 0644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "GET", cfg.Api.RequestMethod)
	// untouched values survive the merge
	require.Equal(t, 386, cfg.AgencyId)
	require.Equal(t, 30, cfg.Api.Timeout)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}
