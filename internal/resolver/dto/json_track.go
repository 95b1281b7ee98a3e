package dto

import (
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/model"
)

// JSONArtist is an artist credit.
type JSONArtist struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// JSONTrack is a track as returned by search, info and album endpoints.
type JSONTrack struct {
	ID           FlexID        `json:"id"`
	Title        string        `json:"title"`
	Version      *string       `json:"version"`
	Duration     float64       `json:"duration"`
	TrackNumber  int           `json:"trackNumber"`
	VolumeNumber int           `json:"volumeNumber"`
	AudioQuality string        `json:"audioQuality"`
	ISRC         string        `json:"isrc"`
	ReplayGain   *float64      `json:"replayGain"`
	Copyright    string        `json:"copyright"`
	Artist       *JSONArtist   `json:"artist"`
	Artists      []JSONArtist  `json:"artists"`
	Album        *JSONAlbumRef `json:"album"`
}

// ToTrack converts JSONTrack to a model.Track.
//
// Album references are resolved through cache so that every track from
// one lookup shares the same *model.Album.
func (jt *JSONTrack) ToTrack(cache AlbumCache) *model.Track {
	track := &model.Track{
		ID:           string(jt.ID),
		Title:        strings.TrimSpace(jt.Title),
		Duration:     int(jt.Duration),
		TrackNumber:  jt.TrackNumber,
		VolumeNumber: jt.VolumeNumber,
		AudioQuality: model.Quality(jt.AudioQuality),
		ISRC:         jt.ISRC,
		ReplayGain:   jt.ReplayGain,
		Copyright:    jt.Copyright,
		Artists:      toArtists(jt.Artists, jt.Artist),
	}
	if jt.Version != nil {
		track.Version = strings.TrimSpace(*jt.Version)
	}
	if jt.Album != nil && jt.Album.ID != "" && cache != nil {
		track.Album = cache.Resolve(jt.Album)
	}
	return track
}

// toArtists prefers the ordered list and falls back to the single credit.
func toArtists(list []JSONArtist, single *JSONArtist) []model.Artist {
	var out []model.Artist
	for _, a := range list {
		if a.Name == "" {
			continue
		}
		out = append(out, model.Artist{ID: string(a.ID), Name: a.Name})
	}
	if len(out) == 0 && single != nil && single.Name != "" {
		out = append(out, model.Artist{ID: string(single.ID), Name: single.Name})
	}
	return out
}
