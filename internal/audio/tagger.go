package audio

import (
	"bytes"
	"fmt"

	"github.com/bogem/id3v2"
	ioutils "github.com/jsildura/cloudstream-sub000/internal/io"
)

// TagEditAction defines how to handle individual ID3 tags.
//
// Each tag field can be configured independently to determine whether
// it should be modified, cleared, or left unchanged.
type TagEditAction int

const (
	// TagEmpty removes the frame.
	TagEmpty TagEditAction = iota

	// TagModify writes the value from the track metadata.
	TagModify

	// TagDoNotModify leaves any existing frame unchanged.
	TagDoNotModify
)

// TagConfig holds tagging configuration for each ID3 field.
//
// Example:
//
//	cfg := &TagConfig{
//	    ModifyTags:  true,
//	    Artist:      TagModify,      // Update artist from the catalogue
//	    TrackTitle:  TagModify,      // Update title from the catalogue
//	    Comments:    TagEmpty,       // Clear any existing comments
//	    AlbumArtist: TagDoNotModify, // Keep existing album artist
//	}
type TagConfig struct {
	// ModifyTags is a master switch. If false, no text frames are modified.
	ModifyTags bool

	// Artist controls the TPE1 (Lead artist) frame.
	Artist TagEditAction

	// AlbumArtist controls the TPE2 (Album artist) frame.
	AlbumArtist TagEditAction

	// Album controls the TALB (Album title) frame.
	Album TagEditAction

	// Year controls the TYER (Year) frame.
	Year TagEditAction

	// Date controls the TDRC (Recording time) frame (ID3v2.4).
	Date TagEditAction

	// TrackNumber controls the TRCK (Track number) frame.
	TrackNumber TagEditAction

	// DiscNumber controls the TPOS (Part of a set) frame.
	DiscNumber TagEditAction

	// TrackTitle controls the TIT2 (Title) frame.
	TrackTitle TagEditAction

	// ISRC controls the TSRC frame.
	ISRC TagEditAction

	// Copyright controls the TCOP frame.
	Copyright TagEditAction

	// ReplayGain controls the REPLAYGAIN_TRACK_GAIN user text frame.
	ReplayGain TagEditAction

	// Comments controls the COMM (Comments) frame.
	Comments TagEditAction
}

// DefaultTagConfig returns the default tag configuration.
//
// Every field is set to TagModify except comments, which are cleared.
func DefaultTagConfig() *TagConfig {
	return &TagConfig{
		ModifyTags:  true,
		Artist:      TagModify,
		AlbumArtist: TagModify,
		Album:       TagModify,
		Year:        TagModify,
		Date:        TagModify,
		TrackNumber: TagModify,
		DiscNumber:  TagModify,
		TrackTitle:  TagModify,
		ISRC:        TagModify,
		Copyright:   TagModify,
		ReplayGain:  TagModify,
		Comments:    TagEmpty,
	}
}

const replayGainDescription = "REPLAYGAIN_TRACK_GAIN"

// Tagger writes ID3v2.4 tags into in-memory MP3 buffers.
//
// Example:
//
//	tagger := NewTagger(DefaultTagConfig())
//	tagged, err := tagger.Tag(mp3Bytes, md, jpegBytes)
type Tagger struct {
	config *TagConfig
}

// NewTagger creates a new Tagger with the given configuration.
//
// If config is nil, DefaultTagConfig() is used.
func NewTagger(config *TagConfig) *Tagger {
	if config == nil {
		config = DefaultTagConfig()
	}
	return &Tagger{config: config}
}

// Tag returns a copy of data with its ID3 tag rewritten from md.
//
// An existing tag is parsed so that TagDoNotModify fields survive. The
// audio frames after the tag are carried over unchanged. A non-empty cover
// replaces any attached pictures with a single front cover.
func (t *Tagger) Tag(data []byte, md Metadata, cover []byte) ([]byte, error) {
	header, body := SplitID3(data)

	tag := id3v2.NewEmptyTag()
	if header != nil {
		// Unparseable (e.g. ID3v2.2) tags are replaced wholesale.
		if parsed, err := id3v2.ParseReader(bytes.NewReader(header), id3v2.Options{Parse: true}); err == nil {
			tag = parsed
		}
	}
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if t.config.ModifyTags {
		t.updateTextFrames(tag, md)
	}
	if len(cover) > 0 {
		updateArtwork(tag, cover)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 64*1024)
	if _, err := tag.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write id3 tag: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// updateTextFrames applies the per-field policy.
func (t *Tagger) updateTextFrames(tag *id3v2.Tag, md Metadata) {
	text := func(action TagEditAction, id, value string) {
		switch action {
		case TagEmpty:
			tag.DeleteFrames(id)
		case TagModify:
			if value != "" {
				tag.DeleteFrames(id)
				tag.AddTextFrame(id, id3v2.EncodingUTF8, value)
			}
		}
	}

	text(t.config.TrackTitle, "TIT2", md.Title)
	text(t.config.Artist, "TPE1", md.Artist)
	text(t.config.AlbumArtist, "TPE2", md.AlbumArtist)
	text(t.config.Album, "TALB", md.Album)
	text(t.config.Year, "TYER", md.Year())
	text(t.config.Date, "TDRC", md.Date())
	text(t.config.TrackNumber, "TRCK", md.Track())
	text(t.config.DiscNumber, "TPOS", md.Disc())
	text(t.config.ISRC, "TSRC", md.ISRC)
	text(t.config.Copyright, "TCOP", md.Copyright)

	switch t.config.ReplayGain {
	case TagEmpty:
		tag.DeleteFrames("TXXX")
	case TagModify:
		if gain := md.ReplayGainString(); gain != "" {
			tag.DeleteFrames("TXXX")
			tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
				Encoding:    id3v2.EncodingUTF8,
				Description: replayGainDescription,
				Value:       gain,
			})
		}
	}

	if t.config.Comments == TagEmpty {
		tag.DeleteFrames("COMM")
	}
}

// updateArtwork embeds cover art as the only attached picture frame.
func updateArtwork(tag *id3v2.Tag, artwork []byte) {
	tag.DeleteFrames(tag.CommonID("Attached picture"))

	mime, ok := ioutils.SniffImage(artwork)
	if !ok {
		mime = ioutils.MIMEJPEG
	}
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    mime,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}

// SplitID3 separates a leading ID3v2 tag from the audio that follows.
// header is nil when data does not start with a well-formed tag.
func SplitID3(data []byte) (header, body []byte) {
	if len(data) < 10 || string(data[:3]) != "ID3" {
		return nil, data
	}
	for _, b := range data[6:10] {
		if b&0x80 != 0 {
			return nil, data
		}
	}
	size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
	total := 10 + size
	if data[5]&0x10 != 0 {
		total += 10
	}
	if total > len(data) {
		return nil, data
	}
	return data[:total], data[total:]
}
