package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/internal/engine"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"github.com/spf13/viper"
)

// TargetSettings is the configured form of a mirror.
type TargetSettings struct {
	Name          string `mapstructure:"name" json:"name"`
	BaseURL       string `mapstructure:"base_url" json:"base_url"`
	Weight        int    `mapstructure:"weight" json:"weight"`
	RequiresProxy bool   `mapstructure:"requires_proxy" json:"requires_proxy"`
	Category      string `mapstructure:"category" json:"category"`
}

// Settings holds all configuration options.
type Settings struct {
	// Mirror settings
	Targets             []TargetSettings `mapstructure:"targets" json:"targets"`
	ProxyURL            string           `mapstructure:"proxy_url" json:"proxy_url"`
	UseProxy            bool             `mapstructure:"use_proxy" json:"use_proxy"`
	FailoverOnRateLimit bool             `mapstructure:"failover_on_rate_limit" json:"failover_on_rate_limit"`
	RequestTimeout      float64          `mapstructure:"request_timeout" json:"request_timeout"`
	UserAgent           string           `mapstructure:"user_agent" json:"user_agent"`

	// Quality settings
	PreferredQuality string `mapstructure:"preferred_quality" json:"preferred_quality"`
	ConvertAACToMP3  bool   `mapstructure:"convert_aac_to_mp3" json:"convert_aac_to_mp3"`
	EmbedMetadata    bool   `mapstructure:"embed_metadata" json:"embed_metadata"`

	// Download settings
	DownloadsPath          string  `mapstructure:"downloads_path" json:"downloads_path"`
	DownloadMaxRetries     int     `mapstructure:"download_max_retries" json:"download_max_retries"`
	DownloadRetryCooldown  float64 `mapstructure:"download_retry_cooldown" json:"download_retry_cooldown"`
	DownloadRetryExponent  float64 `mapstructure:"download_retry_exponent" json:"download_retry_exponent"`
	MaxConcurrentDownloads int     `mapstructure:"max_concurrent_downloads" json:"max_concurrent_downloads"`

	// Bulk settings
	BulkMode                string `mapstructure:"bulk_mode" json:"bulk_mode"` // individual, zip, csv
	DownloadCoverSeparately bool   `mapstructure:"download_cover_separately" json:"download_cover_separately"`
	CreatePlaylist          bool   `mapstructure:"create_playlist" json:"create_playlist"`
	PlaylistFormat          string `mapstructure:"playlist_format" json:"playlist_format"` // m3u, pls
	M3UExtended             bool   `mapstructure:"m3u_extended" json:"m3u_extended"`

	// Cover art settings
	ImageHost             string `mapstructure:"image_host" json:"image_host"`
	CoverSizes            []int  `mapstructure:"cover_sizes" json:"cover_sizes"`
	SaveCoverArtInTags    bool   `mapstructure:"save_cover_art_in_tags" json:"save_cover_art_in_tags"`
	CoverArtInTagsResize  bool   `mapstructure:"cover_art_in_tags_resize" json:"cover_art_in_tags_resize"`
	CoverArtInTagsMaxSize int    `mapstructure:"cover_art_in_tags_max_size" json:"cover_art_in_tags_max_size"`
	ConvertCoverArtToJPG  bool   `mapstructure:"convert_cover_art_to_jpg" json:"convert_cover_art_to_jpg"`

	// Tag settings
	ModifyTags bool `mapstructure:"modify_tags" json:"modify_tags"`

	// Engine settings
	FFmpegPath     string `mapstructure:"ffmpeg_path" json:"ffmpeg_path"`
	EngineAssetURL string `mapstructure:"engine_asset_url" json:"engine_asset_url"`
	EngineAssetDir string `mapstructure:"engine_asset_dir" json:"engine_asset_dir"`
	MP3Quality     int    `mapstructure:"mp3_quality" json:"mp3_quality"`

	// Server settings
	ServerAddr        string   `mapstructure:"server_addr" json:"server_addr"`
	ServerMode        string   `mapstructure:"server_mode" json:"server_mode"` // debug / release
	AllowedProxyHosts []string `mapstructure:"allowed_proxy_hosts" json:"allowed_proxy_hosts"`

	// Logging settings
	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" json:"log_format"`
	LogOutput string `mapstructure:"log_output" json:"log_output"`
	LogFile   string `mapstructure:"log_file" json:"log_file"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		Targets: []TargetSettings{
			{Name: "monochrome", BaseURL: "https://api.monochrome.tf", Weight: 30, Category: "hifi"},
			{Name: "arran", BaseURL: "https://arran.monochrome.tf", Weight: 20, Category: "hifi"},
			{Name: "triton", BaseURL: "https://triton.squid.wtf", Weight: 20, Category: "hifi"},
			{Name: "spotisaver", BaseURL: "https://hifi-one.spotisaver.net", Weight: 20, Category: "hifi"},
			{Name: "binimum", BaseURL: "https://tidal-api.binimum.org", Weight: 10, Category: "community"},
		},
		RequestTimeout: 30,
		UserAgent:      "cloudstream/1.0",

		PreferredQuality: string(model.QualityLossless),
		EmbedMetadata:    true,

		DownloadsPath:          filepath.Join(homeDir, "Music", "cloudstream"),
		DownloadMaxRetries:     3,
		DownloadRetryCooldown:  1.0,
		DownloadRetryExponent:  2.0,
		MaxConcurrentDownloads: 2,

		BulkMode:       string(model.BulkZip),
		PlaylistFormat: "m3u",
		M3UExtended:    true,

		ImageHost:             "https://resources.tidal.com/images",
		CoverSizes:            []int{1280, 640, 320, 160},
		SaveCoverArtInTags:    true,
		CoverArtInTagsResize:  true,
		CoverArtInTagsMaxSize: 1000,
		ConvertCoverArtToJPG:  true,

		ModifyTags: true,

		EngineAssetDir: filepath.Join(os.TempDir(), "cloudstream-engine"),
		MP3Quality:     2,

		ServerAddr: ":8080",
		ServerMode: "release",

		LogLevel:  "info",
		LogFormat: "console",
		LogOutput: "stderr",
	}
}

// envKeys are the scalar settings that can be overridden from the environment.
var envKeys = []string{
	"proxy_url",
	"use_proxy",
	"failover_on_rate_limit",
	"request_timeout",
	"preferred_quality",
	"convert_aac_to_mp3",
	"embed_metadata",
	"downloads_path",
	"download_max_retries",
	"bulk_mode",
	"download_cover_separately",
	"ffmpeg_path",
	"engine_asset_url",
	"engine_asset_dir",
	"server_addr",
	"server_mode",
	"log_level",
	"log_format",
	"log_output",
	"log_file",
}

// Load reads settings from a YAML, JSON or TOML file, layered over
// DefaultSettings and under CLOUDSTREAM_* environment variables.
//
// A missing file is not an error; defaults and environment are used.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("CLOUDSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	settings := DefaultSettings()
	// Lists from the file replace the defaults instead of merging element-wise.
	if v.IsSet("targets") {
		settings.Targets = nil
	}
	if v.IsSet("cover_sizes") {
		settings.CoverSizes = nil
	}
	if v.IsSet("allowed_proxy_hosts") {
		settings.AllowedProxyHosts = nil
	}

	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (s *Settings) Validate() error {
	if len(s.Targets) == 0 {
		return errors.New("config: at least one target is required")
	}
	seen := make(map[string]bool, len(s.Targets))
	for i, t := range s.Targets {
		if t.Name == "" {
			return fmt.Errorf("config: target %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
	}
	if _, err := model.ParseQuality(s.PreferredQuality); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, ok := model.ParseBulkMode(s.BulkMode); !ok {
		return fmt.Errorf("config: unknown bulk mode %q", s.BulkMode)
	}
	if s.UseProxy && s.ProxyURL == "" {
		return errors.New("config: use_proxy requires proxy_url")
	}
	if s.DownloadMaxRetries < 1 {
		return errors.New("config: download_max_retries must be at least 1")
	}
	return nil
}

// ModelTargets converts the configured mirrors.
func (s *Settings) ModelTargets() []model.Target {
	targets := make([]model.Target, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = model.Target{
			Name:          t.Name,
			BaseURL:       t.BaseURL,
			Weight:        t.Weight,
			RequiresProxy: t.RequiresProxy,
			Category:      t.Category,
		}
	}
	return targets
}

// ProxyHosts returns the hosts the passthrough proxy may relay to. Without
// an explicit list these are the mirror hosts and the image host.
func (s *Settings) ProxyHosts() []string {
	if len(s.AllowedProxyHosts) > 0 {
		return append([]string(nil), s.AllowedProxyHosts...)
	}
	var hosts []string
	seen := map[string]bool{}
	add := func(raw string) {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			return
		}
		h := strings.ToLower(u.Hostname())
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	for _, t := range s.Targets {
		add(t.BaseURL)
	}
	add(s.ImageHost)
	return hosts
}

// Quality returns the preferred quality, defaulting to lossless.
func (s *Settings) Quality() model.Quality {
	q, err := model.ParseQuality(s.PreferredQuality)
	if err != nil {
		return model.QualityLossless
	}
	return q
}

// Mode returns the configured bulk mode, defaulting to zip.
func (s *Settings) Mode() model.BulkMode {
	m, ok := model.ParseBulkMode(s.BulkMode)
	if !ok {
		return model.BulkZip
	}
	return m
}

// Timeout returns RequestTimeout as a duration.
func (s *Settings) Timeout() time.Duration {
	if s.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.RequestTimeout * float64(time.Second))
}

// ToTagConfig converts settings to the tagger configuration.
func (s *Settings) ToTagConfig() *audio.TagConfig {
	cfg := audio.DefaultTagConfig()
	cfg.ModifyTags = s.ModifyTags
	return cfg
}

// ToEngineConfig converts settings to the transcoding engine configuration.
func (s *Settings) ToEngineConfig() engine.Config {
	return engine.Config{
		BinaryPath: s.FFmpegPath,
		AssetURL:   s.EngineAssetURL,
		AssetDir:   s.EngineAssetDir,
		MP3Quality: s.MP3Quality,
	}
}

// ToLoggerConfig converts settings to the logger configuration.
func (s *Settings) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:    s.LogLevel,
		Format:   s.LogFormat,
		Output:   s.LogOutput,
		FilePath: s.LogFile,
	}
}
