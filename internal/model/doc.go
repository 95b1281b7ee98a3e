// Package model defines the core data structures shared by the resolution
// and download pipeline.
//
// # Track and Album
//
// Track is a single playable item. When a track belongs to an album, the
// Album pointer is shared by every track produced from the same lookup:
//
//	album := &model.Album{ID: "77646168", Title: "Random Access Memories"}
//	track := &model.Track{ID: "77646170", Title: "Get Lucky", Album: album}
//
// # Quality
//
// Quality names the upstream tiers. Tiers map onto file extensions:
//
//	model.QualityLossless.Extension(false) // "flac"
//	model.QualityHigh.Extension(true)      // "mp3"
//
// # File Names
//
// Track.FileName produces the deterministic, sanitized name used for saved
// files and archive entries:
//
//	name := track.FileName(model.QualityLossless, false)
//	// "08 Get Lucky (Radio Edit) - Daft Punk, Pharrell Williams.flac"
//
// # Jobs
//
// DownloadTask tracks one in-flight download. BulkJob aggregates a batch,
// with a monotonically increasing completion counter and an append-only
// failure list.
package model
