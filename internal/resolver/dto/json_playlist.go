package dto

import "github.com/jsildura/cloudstream-sub000/internal/model"

// JSONPlaylist is a playlist header.
type JSONPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	SquareImage    string `json:"squareImage"`
	Image          string `json:"image"`
	NumberOfTracks int    `json:"numberOfTracks"`
	Creator        *struct {
		Name string `json:"name"`
	} `json:"creator"`
}

// ToPlaylist converts JSONPlaylist to a model.Playlist.
func (jp *JSONPlaylist) ToPlaylist() *model.Playlist {
	p := &model.Playlist{
		UUID:       jp.UUID,
		Title:      jp.Title,
		CoverID:    jp.SquareImage,
		TrackCount: jp.NumberOfTracks,
	}
	if p.CoverID == "" {
		p.CoverID = jp.Image
	}
	if jp.Creator != nil {
		p.Creator = jp.Creator.Name
	}
	return p
}
