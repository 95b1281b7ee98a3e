package audio

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/dhowden/tag"
)

// Metadata is the tag record written into downloaded audio.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	ReleaseDate time.Time
	TrackNumber int
	TrackTotal  int
	DiscNumber  int
	DiscTotal   int
	ISRC        string
	Copyright   string
	ReplayGain  *float64
}

// Year returns the release year, or "" when unknown.
func (m Metadata) Year() string {
	if m.ReleaseDate.IsZero() {
		return ""
	}
	return strconv.Itoa(m.ReleaseDate.Year())
}

// Date returns the release date as YYYY-MM-DD, or "" when unknown.
func (m Metadata) Date() string {
	if m.ReleaseDate.IsZero() {
		return ""
	}
	return m.ReleaseDate.Format("2006-01-02")
}

// Track returns "N/total", "N", or "" when the number is unknown.
func (m Metadata) Track() string {
	return position(m.TrackNumber, m.TrackTotal)
}

// Disc returns "N/total", "N", or "" when the number is unknown.
func (m Metadata) Disc() string {
	return position(m.DiscNumber, m.DiscTotal)
}

// ReplayGainString formats the track gain as "-7.50 dB".
func (m Metadata) ReplayGainString() string {
	if m.ReplayGain == nil {
		return ""
	}
	return fmt.Sprintf("%.2f dB", *m.ReplayGain)
}

func position(n, total int) string {
	switch {
	case n <= 0:
		return ""
	case total > 0:
		return fmt.Sprintf("%d/%d", n, total)
	default:
		return strconv.Itoa(n)
	}
}

// Container is the file format of an audio buffer.
type Container string

const (
	ContainerFLAC    Container = "flac"
	ContainerMP4     Container = "m4a"
	ContainerMP3     Container = "mp3"
	ContainerOgg     Container = "ogg"
	ContainerUnknown Container = ""
)

// DetectContainer identifies the format of an audio buffer.
//
// MP4 files are reported as ContainerMP4 whatever their brand, since
// streaming CDNs commonly serve AAC under "dash" or "isom".
func DetectContainer(data []byte) Container {
	format, fileType, err := tag.Identify(bytes.NewReader(data))
	if err == nil {
		switch {
		case fileType == tag.FLAC:
			return ContainerFLAC
		case fileType == tag.MP3:
			return ContainerMP3
		case fileType == tag.OGG:
			return ContainerOgg
		case format == tag.MP4:
			return ContainerMP4
		}
	}
	// Bare MPEG audio frames carry no tag header.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return ContainerMP3
	}
	return ContainerUnknown
}

// ReadMetadata reads back the tags of an audio buffer.
func ReadMetadata(data []byte) (Metadata, error) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, err
	}
	track, trackTotal := m.Track()
	disc, discTotal := m.Disc()
	md := Metadata{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		TrackNumber: track,
		TrackTotal:  trackTotal,
		DiscNumber:  disc,
		DiscTotal:   discTotal,
	}
	if y := m.Year(); y > 0 {
		md.ReleaseDate = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return md, nil
}
