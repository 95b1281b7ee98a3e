// Package config provides configuration management for the pipeline.
//
// This package handles:
//   - Loading settings from YAML, JSON or TOML files via viper
//   - Environment overrides with the CLOUDSTREAM_ prefix
//   - Saving settings as JSON
//   - Conversion into the option types of other packages
//
// # Loading
//
//	settings, err := config.Load("config.yaml")
//	// A missing file yields DefaultSettings()
//
// # Environment
//
//	CLOUDSTREAM_PROXY_URL=http://localhost:8080/api/proxy
//	CLOUDSTREAM_PREFERRED_QUALITY=HI_RES_LOSSLESS
//	CLOUDSTREAM_LOG_LEVEL=debug
//
// # Targets
//
// The mirror list is part of the configuration. Each entry carries a name,
// base URL, weight, proxy flag and service category:
//
//	targets:
//	  - name: monochrome
//	    base_url: https://api.monochrome.tf
//	    weight: 30
package config
