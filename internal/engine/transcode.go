package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"go.uber.org/zap"
)

// MetadataFor builds the tag record for a track. The descriptor's
// ReplayGain wins over the catalogue value when both exist.
func MetadataFor(track *model.Track, desc *model.StreamDescriptor) audio.Metadata {
	md := audio.Metadata{
		Title:       track.FullTitle(),
		Artist:      track.ArtistNames(),
		Album:       track.AlbumTitle(),
		TrackNumber: track.TrackNumber,
		DiscNumber:  track.VolumeNumber,
		ISRC:        track.ISRC,
		Copyright:   track.Copyright,
		ReplayGain:  track.ReplayGain,
	}
	if a := track.Album; a != nil {
		md.AlbumArtist = a.ArtistNames()
		md.ReleaseDate = a.ReleaseDate
		md.TrackTotal = a.TrackCount
		md.DiscTotal = a.VolumeCount
	}
	if md.AlbumArtist == "" {
		md.AlbumArtist = md.Artist
	}
	if desc != nil && desc.ReplayGain != nil {
		md.ReplayGain = desc.ReplayGain
	}
	return md
}

// EmbedMetadata writes md and cover into data.
//
// MP3 is tagged natively. FLAC, MP4 and Ogg are remuxed by ffmpeg without
// re-encoding, with the cover attached as a picture stream where the
// container supports it.
func (e *Engine) EmbedMetadata(ctx context.Context, data []byte, md audio.Metadata, cover []byte) ([]byte, error) {
	container := audio.DetectContainer(data)
	switch container {
	case audio.ContainerMP3:
		return e.tagger.Tag(data, md, cover)
	case audio.ContainerUnknown:
		return nil, errors.New("embed metadata: unrecognized audio container")
	}

	bin, err := e.Load(ctx, nil)
	if err != nil {
		return nil, err
	}
	return e.transcode(ctx, bin, data, string(container), string(container), cover,
		func(in, coverPath, out string) []string { return EmbedArgs(in, coverPath, out, md, container) })
}

// ConvertToMP3 encodes data to MP3 with libmp3lame and tags the result.
func (e *Engine) ConvertToMP3(ctx context.Context, data []byte, md audio.Metadata, cover []byte) ([]byte, error) {
	container := audio.DetectContainer(data)
	if container == audio.ContainerUnknown {
		return nil, errors.New("convert: unrecognized audio container")
	}
	if container == audio.ContainerMP3 {
		return e.tagger.Tag(data, md, cover)
	}

	bin, err := e.Load(ctx, nil)
	if err != nil {
		return nil, err
	}
	out, err := e.transcode(ctx, bin, data, string(container), model.ExtMP3, nil,
		func(in, _, out string) []string { return ConvertArgs(in, out, md, e.cfg.MP3Quality) })
	if err != nil {
		return nil, err
	}
	// ffmpeg wrote the text frames; the cover goes in natively.
	if len(cover) == 0 {
		return out, nil
	}
	return e.tagger.Tag(out, md, cover)
}

// transcode runs one ffmpeg invocation over temporary files.
func (e *Engine) transcode(ctx context.Context, bin string, data []byte, inExt, outExt string, cover []byte,
	args func(in, cover, out string) []string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "cloudstream-ffmpeg-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input."+inExt)
	out := filepath.Join(dir, "output."+outExt)
	if err := os.WriteFile(in, data, 0600); err != nil {
		return nil, err
	}
	coverPath := ""
	if len(cover) > 0 {
		coverPath = filepath.Join(dir, "cover.jpg")
		if err := os.WriteFile(coverPath, cover, 0600); err != nil {
			return nil, err
		}
	}

	argv := args(in, coverPath, out)
	e.logger.Debug("running ffmpeg", zap.Strings("args", argv))
	if output, err := e.runner.Run(ctx, bin, argv...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	return result, nil
}

// EmbedArgs builds the ffmpeg arguments for a metadata remux.
func EmbedArgs(input, cover, output string, md audio.Metadata, container audio.Container) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input}
	if cover != "" && container != audio.ContainerOgg {
		args = append(args,
			"-i", cover,
			"-map", "0:a", "-map", "1:v",
			"-c", "copy",
			"-disposition:v:0", "attached_pic",
			"-metadata:s:v", "title=Album cover",
			"-metadata:s:v", "comment=Cover (front)")
	} else {
		args = append(args, "-map", "0:a", "-c", "copy")
	}
	if container == audio.ContainerMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, metadataArgs(md)...)
	return append(args, output)
}

// ConvertArgs builds the ffmpeg arguments for an MP3 encode.
func ConvertArgs(input, output string, md audio.Metadata, quality int) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", strconv.Itoa(quality),
		"-id3v2_version", "4",
		"-map_metadata", "-1",
	}
	args = append(args, metadataArgs(md)...)
	return append(args, output)
}

func metadataArgs(md audio.Metadata) []string {
	pairs := []struct{ key, value string }{
		{"title", md.Title},
		{"artist", md.Artist},
		{"album", md.Album},
		{"album_artist", md.AlbumArtist},
		{"date", md.Date()},
		{"track", md.Track()},
		{"disc", md.Disc()},
		{"isrc", md.ISRC},
		{"copyright", md.Copyright},
		{"REPLAYGAIN_TRACK_GAIN", md.ReplayGainString()},
	}
	var args []string
	for _, p := range pairs {
		if p.value != "" {
			args = append(args, "-metadata", p.key+"="+p.value)
		}
	}
	return args
}
