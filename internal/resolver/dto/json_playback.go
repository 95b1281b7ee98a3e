package dto

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// JSONPlayback is the stream information returned by the track endpoint.
//
// Mirrors answer either with {"version":..., "data":{...}} or with an array
// whose elements each carry part of the information (one of them holding
// OriginalTrackUrl). ParsePlayback folds both into one value.
type JSONPlayback struct {
	TrackID           FlexID   `json:"trackId"`
	AssetPresentation string   `json:"assetPresentation"`
	AudioQuality      string   `json:"audioQuality"`
	ManifestMimeType  string   `json:"manifestMimeType"`
	Manifest          string   `json:"manifest"`
	BitDepth          int      `json:"bitDepth"`
	SampleRate        int      `json:"sampleRate"`
	TrackReplayGain   *float64 `json:"trackReplayGain"`
	AlbumReplayGain   *float64 `json:"albumReplayGain"`
	OriginalTrackURL  string   `json:"OriginalTrackUrl"`
}

// ErrNoPlayback means the body held no playback object at all.
var ErrNoPlayback = errors.New("no playback info in response")

// ParsePlayback extracts playback information from a track endpoint body.
func ParsePlayback(body []byte) (*JSONPlayback, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("playback: invalid json")
	}

	res := gjson.ParseBytes(body)
	var candidates []gjson.Result
	switch {
	case res.IsArray():
		candidates = res.Array()
	case res.Get("data").IsObject():
		candidates = []gjson.Result{res.Get("data")}
	case res.IsObject():
		candidates = []gjson.Result{res}
	}

	out := &JSONPlayback{}
	found := false
	for _, c := range candidates {
		if !c.IsObject() {
			continue
		}
		var part JSONPlayback
		if err := json.Unmarshal([]byte(c.Raw), &part); err != nil {
			continue
		}
		out.merge(&part)
		found = true
	}
	if !found {
		return nil, ErrNoPlayback
	}
	return out, nil
}

// IsPreview reports whether a body describes a preview-only asset.
func IsPreview(body []byte) bool {
	for _, path := range []string{"assetPresentation", "data.assetPresentation", "#.assetPresentation"} {
		v := gjson.GetBytes(body, path)
		if v.IsArray() {
			for _, e := range v.Array() {
				if e.String() == "PREVIEW" {
					return true
				}
			}
			continue
		}
		if v.String() == "PREVIEW" {
			return true
		}
	}
	return false
}

func (p *JSONPlayback) merge(o *JSONPlayback) {
	if p.TrackID == "" {
		p.TrackID = o.TrackID
	}
	if p.AssetPresentation == "" {
		p.AssetPresentation = o.AssetPresentation
	}
	if p.AudioQuality == "" {
		p.AudioQuality = o.AudioQuality
	}
	if p.ManifestMimeType == "" {
		p.ManifestMimeType = o.ManifestMimeType
	}
	if p.Manifest == "" {
		p.Manifest = o.Manifest
	}
	if p.BitDepth == 0 {
		p.BitDepth = o.BitDepth
	}
	if p.SampleRate == 0 {
		p.SampleRate = o.SampleRate
	}
	if p.TrackReplayGain == nil {
		p.TrackReplayGain = o.TrackReplayGain
	}
	if p.AlbumReplayGain == nil {
		p.AlbumReplayGain = o.AlbumReplayGain
	}
	if p.OriginalTrackURL == "" {
		p.OriginalTrackURL = o.OriginalTrackURL
	}
}
