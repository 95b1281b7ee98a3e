package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	def := DefaultSettings()
	assert.Equal(t, def.Targets, s.Targets)
	assert.Equal(t, 3, s.DownloadMaxRetries)
	assert.Equal(t, model.QualityLossless, s.Quality())
	assert.Equal(t, model.BulkZip, s.Mode())
}

func TestLoad_YAMLOverridesAndReplacesTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
targets:
  - name: only
    base_url: https://only.example/v1
    weight: 5
    requires_proxy: true
preferred_quality: HI_RES_LOSSLESS
bulk_mode: csv
download_max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	require.Len(t, s.Targets, 1)
	assert.Equal(t, "only", s.Targets[0].Name)
	assert.True(t, s.Targets[0].RequiresProxy)
	assert.Equal(t, model.QualityHiResLossless, s.Quality())
	assert.Equal(t, model.BulkCSV, s.Mode())
	assert.Equal(t, 5, s.DownloadMaxRetries)
	// untouched keys keep defaults
	assert.Equal(t, 2.0, s.DownloadRetryExponent)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLOUDSTREAM_PREFERRED_QUALITY", "HIGH")
	t.Setenv("CLOUDSTREAM_CONVERT_AAC_TO_MP3", "true")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, model.QualityHigh, s.Quality())
	assert.True(t, s.ConvertAACToMP3)
}

func TestLoad_InvalidQuality(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"preferred_quality":"ULTRA"}`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	s := DefaultSettings()
	s.UseProxy = true
	s.ProxyURL = "http://localhost:8080/api/proxy"
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.UseProxy)
	assert.Equal(t, s.ProxyURL, loaded.ProxyURL)
	assert.Equal(t, s.Targets, loaded.Targets)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"no targets", func(s *Settings) { s.Targets = nil }},
		{"duplicate names", func(s *Settings) { s.Targets = append(s.Targets, s.Targets[0]) }},
		{"proxy without url", func(s *Settings) { s.UseProxy = true; s.ProxyURL = "" }},
		{"bad mode", func(s *Settings) { s.BulkMode = "tar" }},
		{"zero retries", func(s *Settings) { s.DownloadMaxRetries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
	assert.NoError(t, DefaultSettings().Validate())
}

func TestModelTargets(t *testing.T) {
	s := DefaultSettings()
	targets := s.ModelTargets()
	require.Len(t, targets, len(s.Targets))
	total := 0
	for _, target := range targets {
		assert.True(t, target.Valid(), target.Name)
		total += target.Weight
	}
	assert.Equal(t, 100, total)
}

func TestProxyHosts(t *testing.T) {
	s := DefaultSettings()
	s.Targets = []TargetSettings{
		{Name: "a", BaseURL: "https://A.example/v1", Weight: 1},
		{Name: "b", BaseURL: "https://a.example/v2", Weight: 1},
		{Name: "c", BaseURL: "https://c.example", Weight: 1},
	}
	s.ImageHost = "https://img.example/images"
	assert.Equal(t, []string{"a.example", "c.example", "img.example"}, s.ProxyHosts())

	s.AllowedProxyHosts = []string{"only.example"}
	assert.Equal(t, []string{"only.example"}, s.ProxyHosts())
}
