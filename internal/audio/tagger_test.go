package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/bogem/id3v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMP3 is a run of MPEG-1 Layer III frame headers; enough for format
// detection, never decoded.
func fakeMP3() []byte {
	frame := append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 413)...)
	return bytes.Repeat(frame, 4)
}

var jpegCover = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x11}, 64)...)

func testMetadata() Metadata {
	gain := -7.5
	return Metadata{
		Title:       "Song (Live)",
		Artist:      "A, B",
		Album:       "LP",
		AlbumArtist: "A",
		ReleaseDate: time.Date(2013, 5, 17, 0, 0, 0, 0, time.UTC),
		TrackNumber: 3,
		TrackTotal:  12,
		DiscNumber:  1,
		DiscTotal:   2,
		ISRC:        "USABC1300001",
		ReplayGain:  &gain,
	}
}

func parseTag(t *testing.T, data []byte) *id3v2.Tag {
	t.Helper()
	header, _ := SplitID3(data)
	require.NotNil(t, header, "expected an ID3 header")
	tag, err := id3v2.ParseReader(bytes.NewReader(header), id3v2.Options{Parse: true})
	require.NoError(t, err)
	return tag
}

func TestTagger_Tag(t *testing.T) {
	body := fakeMP3()
	out, err := NewTagger(nil).Tag(body, testMetadata(), jpegCover)
	require.NoError(t, err)

	_, rest := SplitID3(out)
	assert.Equal(t, body, rest, "audio frames must be carried over unchanged")

	tag := parseTag(t, out)
	assert.Equal(t, "Song (Live)", tag.Title())
	assert.Equal(t, "A, B", tag.Artist())
	assert.Equal(t, "LP", tag.Album())
	assert.Equal(t, "3/12", tag.GetTextFrame("TRCK").Text)
	assert.Equal(t, "1/2", tag.GetTextFrame("TPOS").Text)
	assert.Equal(t, "USABC1300001", tag.GetTextFrame("TSRC").Text)
	assert.Equal(t, "2013-05-17", tag.GetTextFrame("TDRC").Text)

	pics := tag.GetFrames("APIC")
	require.Len(t, pics, 1)
	pic, ok := pics[0].(id3v2.PictureFrame)
	require.True(t, ok)
	assert.Equal(t, byte(id3v2.PTFrontCover), pic.PictureType)
	assert.Equal(t, "image/jpeg", pic.MimeType)
	assert.Equal(t, jpegCover, pic.Picture)

	gains := tag.GetFrames("TXXX")
	require.Len(t, gains, 1)
	udtf, ok := gains[0].(id3v2.UserDefinedTextFrame)
	require.True(t, ok)
	assert.Equal(t, "REPLAYGAIN_TRACK_GAIN", udtf.Description)
	assert.Equal(t, "-7.50 dB", udtf.Value)
}

func TestTagger_RetagReplacesFrames(t *testing.T) {
	tagger := NewTagger(nil)
	first, err := tagger.Tag(fakeMP3(), testMetadata(), jpegCover)
	require.NoError(t, err)

	md := testMetadata()
	md.Title = "Renamed"
	second, err := tagger.Tag(first, md, jpegCover)
	require.NoError(t, err)

	_, rest := SplitID3(second)
	assert.Equal(t, fakeMP3(), rest)

	tag := parseTag(t, second)
	assert.Equal(t, "Renamed", tag.Title())
	assert.Len(t, tag.GetFrames("TIT2"), 1)
	assert.Len(t, tag.GetFrames("APIC"), 1)
}

func TestTagger_DoNotModifyKeepsExisting(t *testing.T) {
	first, err := NewTagger(nil).Tag(fakeMP3(), testMetadata(), nil)
	require.NoError(t, err)

	cfg := DefaultTagConfig()
	cfg.Artist = TagDoNotModify
	cfg.ISRC = TagEmpty
	md := testMetadata()
	md.Artist = "Someone Else"

	out, err := NewTagger(cfg).Tag(first, md, nil)
	require.NoError(t, err)

	tag := parseTag(t, out)
	assert.Equal(t, "A, B", tag.Artist())
	assert.Empty(t, tag.GetFrames("TSRC"))
	assert.Empty(t, tag.GetFrames("APIC"))
}

func TestTagger_ModifyTagsOffOnlyEmbedsCover(t *testing.T) {
	cfg := DefaultTagConfig()
	cfg.ModifyTags = false

	out, err := NewTagger(cfg).Tag(fakeMP3(), testMetadata(), jpegCover)
	require.NoError(t, err)

	tag := parseTag(t, out)
	assert.Empty(t, tag.Title())
	assert.Len(t, tag.GetFrames("APIC"), 1)
}

func TestTagger_ReadBack(t *testing.T) {
	out, err := NewTagger(nil).Tag(fakeMP3(), testMetadata(), jpegCover)
	require.NoError(t, err)

	md, err := ReadMetadata(out)
	require.NoError(t, err)
	assert.Equal(t, "Song (Live)", md.Title)
	assert.Equal(t, "A", md.AlbumArtist)
	assert.Equal(t, 3, md.TrackNumber)
	assert.Equal(t, 12, md.TrackTotal)
	assert.Equal(t, ContainerMP3, DetectContainer(out))
}

func TestSplitID3(t *testing.T) {
	body := []byte("audio")

	header, rest := SplitID3(body)
	assert.Nil(t, header)
	assert.Equal(t, body, rest)

	// 4 bytes of tag payload, syncsafe size 0x00000004.
	tagged := append([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0}, body...)
	header, rest = SplitID3(tagged)
	assert.Len(t, header, 14)
	assert.Equal(t, body, rest)

	// Size larger than the buffer is not a tag.
	broken := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0x7F, 0x7F}
	header, _ = SplitID3(broken)
	assert.Nil(t, header)
}
