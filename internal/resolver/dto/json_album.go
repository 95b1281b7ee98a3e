package dto

import (
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/model"
)

// JSONAlbumRef is an album, either embedded in a track or standalone.
type JSONAlbumRef struct {
	ID              FlexID       `json:"id"`
	Title           string       `json:"title"`
	Cover           string       `json:"cover"`
	ReleaseDate     *FlexDate    `json:"releaseDate"`
	NumberOfTracks  int          `json:"numberOfTracks"`
	NumberOfVolumes int          `json:"numberOfVolumes"`
	Artist          *JSONArtist  `json:"artist"`
	Artists         []JSONArtist `json:"artists"`
}

// ToAlbum converts JSONAlbumRef to a model.Album.
func (ja *JSONAlbumRef) ToAlbum() *model.Album {
	album := &model.Album{
		ID:          string(ja.ID),
		Title:       strings.TrimSpace(ja.Title),
		CoverID:     ja.Cover,
		Artists:     toArtists(ja.Artists, ja.Artist),
		TrackCount:  ja.NumberOfTracks,
		VolumeCount: ja.NumberOfVolumes,
	}
	if ja.ReleaseDate != nil {
		album.ReleaseDate = ja.ReleaseDate.Time
	}
	return album
}

// AlbumCache interns albums by ID for the duration of one lookup.
type AlbumCache map[string]*model.Album

// Resolve returns the cached album for ref, creating it on first sight.
// Fields missing on the cached album are filled from later references.
func (c AlbumCache) Resolve(ref *JSONAlbumRef) *model.Album {
	id := string(ref.ID)
	if existing, ok := c[id]; ok {
		fill(existing, ref.ToAlbum())
		return existing
	}
	album := ref.ToAlbum()
	c[id] = album
	return album
}

// Put interns an already converted album, merging into any earlier entry.
func (c AlbumCache) Put(album *model.Album) *model.Album {
	if existing, ok := c[album.ID]; ok {
		fill(existing, album)
		return existing
	}
	c[album.ID] = album
	return album
}

func fill(dst, src *model.Album) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.CoverID == "" {
		dst.CoverID = src.CoverID
	}
	if len(dst.Artists) == 0 {
		dst.Artists = src.Artists
	}
	if dst.TrackCount == 0 {
		dst.TrackCount = src.TrackCount
	}
	if dst.VolumeCount == 0 {
		dst.VolumeCount = src.VolumeCount
	}
	if dst.ReleaseDate.IsZero() {
		dst.ReleaseDate = src.ReleaseDate
	}
}
