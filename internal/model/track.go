package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Track represents a single playable track.
//
// Example:
//
//	track := &Track{
//	    ID:          "77646170",
//	    Title:       "Get Lucky",
//	    Version:     "Radio Edit",
//	    Artists:     []Artist{{ID: "4558", Name: "Daft Punk"}},
//	    TrackNumber: 8,
//	}
//	track.FileName(QualityLossless, false) // "08 Get Lucky (Radio Edit) - Daft Punk.flac"
type Track struct {
	// ID is the upstream track identifier.
	ID string

	// Title is the track title, without version suffix.
	Title string

	// Version is an optional qualifier such as "Remastered".
	Version string

	// Artists are the credited artists in upstream order.
	Artists []Artist

	// Album is a back-reference to the parent album, if known.
	Album *Album

	// Duration is the track length in seconds.
	Duration int

	// TrackNumber is the position on its volume (1-indexed). Zero if unknown.
	TrackNumber int

	// VolumeNumber is the disc number. Zero if unknown.
	VolumeNumber int

	// AudioQuality is the best tier the upstream advertises for the track.
	AudioQuality Quality

	// ISRC is the International Standard Recording Code, if known.
	ISRC string

	// ReplayGain is the track gain in dB, if known.
	ReplayGain *float64

	// Copyright is the upstream copyright line, if any.
	Copyright string
}

// ArtistNames joins the track artist names with ", ".
// Falls back to the album artists when the track has none.
func (t *Track) ArtistNames() string {
	if names := joinArtists(t.Artists); names != "" {
		return names
	}
	return t.Album.ArtistNames()
}

// FullTitle returns the title with the version appended in parentheses.
func (t *Track) FullTitle() string {
	if t.Version == "" {
		return t.Title
	}
	return fmt.Sprintf("%s (%s)", t.Title, t.Version)
}

// AlbumTitle returns the album title or an empty string.
func (t *Track) AlbumTitle() string {
	if t.Album == nil {
		return ""
	}
	return t.Album.Title
}

// FormattedDuration renders Duration as "m:ss".
func (t *Track) FormattedDuration() string {
	d := t.Duration
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%d:%02d", d/60, d%60)
}

// FileName computes the file name for this track.
//
// The format is "{NN} {title}[ (version)] - {artist}.{ext}" where NN is the
// zero-padded track number. Title and artist are sanitized independently.
// The result depends only on its inputs, so repeated calls are identical.
func (t *Track) FileName(quality Quality, convertToMP3 bool) string {
	return t.FileNameWithExt(quality.Extension(convertToMP3))
}

// FileNameWithExt is FileName with an explicit extension.
func (t *Track) FileNameWithExt(ext string) string {
	title := SanitizeFileName(t.Title)
	if v := SanitizeFileName(t.Version); v != "" {
		title = fmt.Sprintf("%s (%s)", title, v)
	}
	artist := SanitizeFileName(t.ArtistNames())
	if artist == "" {
		artist = "Unknown Artist"
	}
	return fmt.Sprintf("%02d %s - %s.%s", t.TrackNumber, title, artist, ext)
}

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFileName strips path-unsafe characters and collapses whitespace.
func SanitizeFileName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	return strings.TrimRight(name, ".")
}
