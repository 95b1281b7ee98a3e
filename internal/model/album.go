package model

import (
	"strings"
	"time"
)

// Artist is a performer credited on a track or album.
type Artist struct {
	ID   string
	Name string
}

// Album represents an album with its metadata.
//
// Tracks produced by a single album lookup all point at the same Album,
// so Album.ID is stable across them.
type Album struct {
	// ID is the upstream album identifier.
	ID string

	// Title is the album title.
	Title string

	// CoverID is the image identifier used to build cover URLs.
	// Empty when the album has no artwork.
	CoverID string

	// Artists are the credited album artists, in upstream order.
	Artists []Artist

	// TrackCount is the number of tracks the upstream reports, if known.
	TrackCount int

	// VolumeCount is the number of discs, if known.
	VolumeCount int

	// ReleaseDate is when the album was released. Zero if unknown.
	ReleaseDate time.Time

	// Tracks holds the album's tracks once an album lookup has run.
	Tracks []*Track
}

// HasCover returns true if the album has a cover image.
func (a *Album) HasCover() bool {
	return a != nil && a.CoverID != ""
}

// ArtistNames joins the album artist names with ", ".
func (a *Album) ArtistNames() string {
	if a == nil {
		return ""
	}
	return joinArtists(a.Artists)
}

// Collection returns the album as a bulk download container.
func (a *Album) Collection() Collection {
	return Collection{
		Kind:    CollectionAlbum,
		ID:      a.ID,
		Title:   a.Title,
		Artist:  a.ArtistNames(),
		CoverID: a.CoverID,
	}
}

// Playlist is a user curated list of tracks.
type Playlist struct {
	UUID       string
	Title      string
	Creator    string
	CoverID    string
	TrackCount int
	Tracks     []*Track
}

// Collection returns the playlist as a bulk download container.
func (p *Playlist) Collection() Collection {
	return Collection{
		Kind:    CollectionPlaylist,
		ID:      p.UUID,
		Title:   p.Title,
		Artist:  p.Creator,
		CoverID: p.CoverID,
	}
}

// CollectionKind tells albums and playlists apart.
type CollectionKind string

const (
	CollectionAlbum    CollectionKind = "album"
	CollectionPlaylist CollectionKind = "playlist"
)

// Collection is the container a bulk job downloads from.
type Collection struct {
	Kind    CollectionKind
	ID      string
	Title   string
	Artist  string
	CoverID string
}

// BaseName returns the sanitized "{artist} - {title}" stem used for archive
// and export file names.
func (c Collection) BaseName() string {
	name := c.Title
	if c.Artist != "" {
		name = c.Artist + " - " + c.Title
	}
	name = SanitizeFileName(name)
	if name == "" {
		return string(c.Kind)
	}
	return name
}

func joinArtists(artists []Artist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
