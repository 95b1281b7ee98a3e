package audio

import (
	"fmt"
	"path"
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/model"
)

// PlaylistFormat represents supported playlist file formats.
//
// Each format has different features and compatibility:
//   - M3U: Simple text format, widely supported
//   - PLS: INI-style format, used by Winamp
//   - WPL: XML format, Windows Media Player
//   - ZPL: XML format, Zune/Groove Music
type PlaylistFormat int

const (
	// FormatM3U creates .m3u files (most compatible).
	// Can be extended with EXTINF lines for duration/title info.
	FormatM3U PlaylistFormat = iota

	// FormatPLS creates .pls files (Winamp/SHOUTcast format).
	FormatPLS

	// FormatWPL creates .wpl files (Windows Media Player).
	FormatWPL

	// FormatZPL creates .zpl files (Zune/Groove Music).
	FormatZPL
)

// ParsePlaylistFormat converts a configuration value into a PlaylistFormat.
// Empty input yields FormatM3U.
func ParsePlaylistFormat(s string) (PlaylistFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "m3u", "m3u8":
		return FormatM3U, nil
	case "pls":
		return FormatPLS, nil
	case "wpl":
		return FormatWPL, nil
	case "zpl":
		return FormatZPL, nil
	}
	return FormatM3U, fmt.Errorf("unknown playlist format %q", s)
}

// Ext returns the file extension for the format, without the dot.
func (f PlaylistFormat) Ext() string {
	switch f {
	case FormatPLS:
		return "pls"
	case FormatWPL:
		return "wpl"
	case FormatZPL:
		return "zpl"
	}
	return "m3u"
}

// PlaylistEntry is one line of a playlist: a file next to the playlist
// plus the display information some formats carry.
type PlaylistEntry struct {
	Path     string
	Title    string
	Artist   string
	Album    string
	Duration int
}

// EntryFor builds the entry for a track stored under file.
func EntryFor(track *model.Track, file string) PlaylistEntry {
	return PlaylistEntry{
		Path:     file,
		Title:    track.FullTitle(),
		Artist:   track.ArtistNames(),
		Album:    track.AlbumTitle(),
		Duration: track.Duration,
	}
}

// PlaylistCreator generates playlist files in various formats.
//
// Entry paths are written relative (just the base name), assuming the
// playlist sits next to the tracks, as it does inside a bulk archive.
//
// Example:
//
//	creator := NewPlaylistCreator(FormatM3U, true)
//	content := creator.CreatePlaylist("Artist - Album", entries)
//
//	// Result:
//	// #EXTM3U
//	// #EXTINF:180,Artist - Song Title
//	// 01 Song Title - Artist.flac
type PlaylistCreator struct {
	format   PlaylistFormat
	extended bool // For M3U: include EXTINF lines with duration/title
}

// NewPlaylistCreator creates a new PlaylistCreator.
//
// extended only affects M3U output.
func NewPlaylistCreator(format PlaylistFormat, extended bool) *PlaylistCreator {
	return &PlaylistCreator{
		format:   format,
		extended: extended,
	}
}

// Format returns the output format.
func (p *PlaylistCreator) Format() PlaylistFormat {
	return p.format
}

// CreatePlaylist generates playlist content for entries.
func (p *PlaylistCreator) CreatePlaylist(title string, entries []PlaylistEntry) string {
	switch p.format {
	case FormatPLS:
		return p.createPLS(entries)
	case FormatWPL:
		return p.createWPL(title, entries)
	case FormatZPL:
		return p.createZPL(title, entries)
	default:
		return p.createM3U(entries)
	}
}

// createM3U generates an M3U playlist.
//
// Extended M3U format (when extended=true):
//
//	#EXTM3U
//	#EXTINF:180,Artist - Title
//	filename1.flac
func (p *PlaylistCreator) createM3U(entries []PlaylistEntry) string {
	var sb strings.Builder

	if p.extended {
		sb.WriteString("#EXTM3U\n")
	}

	for _, e := range entries {
		if p.extended {
			fmt.Fprintf(&sb, "#EXTINF:%d,%s - %s\n", e.Duration, e.Artist, e.Title)
		}
		sb.WriteString(path.Base(e.Path) + "\n")
	}

	return sb.String()
}

// createPLS generates a PLS playlist.
//
//	[playlist]
//	File1=filename1.flac
//	Title1=Song Title
//	Length1=180
//	NumberOfEntries=1
//	Version=2
func (p *PlaylistCreator) createPLS(entries []PlaylistEntry) string {
	var sb strings.Builder

	sb.WriteString("[playlist]\n")

	for i, e := range entries {
		idx := i + 1
		fmt.Fprintf(&sb, "File%d=%s\n", idx, path.Base(e.Path))
		fmt.Fprintf(&sb, "Title%d=%s\n", idx, e.Title)
		fmt.Fprintf(&sb, "Length%d=%d\n", idx, e.Duration)
	}

	fmt.Fprintf(&sb, "NumberOfEntries=%d\n", len(entries))
	sb.WriteString("Version=2\n")

	return sb.String()
}

// createWPL generates a Windows Media Player playlist.
func (p *PlaylistCreator) createWPL(title string, entries []PlaylistEntry) string {
	var sb strings.Builder

	sb.WriteString("<?wpl version=\"1.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", escapeXML(title))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, e := range entries {
		fmt.Fprintf(&sb, "      <media src=\"%s\"/>\n", escapeXML(path.Base(e.Path)))
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// createZPL generates a Zune/Groove Music playlist. Durations are in
// milliseconds.
func (p *PlaylistCreator) createZPL(title string, entries []PlaylistEntry) string {
	var sb strings.Builder

	sb.WriteString("<?zpl version=\"2.0\"?>\n")
	sb.WriteString("<smil>\n")
	sb.WriteString("  <head>\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", escapeXML(title))
	sb.WriteString("    <meta name=\"Generator\" content=\"cloudstream\"/>\n")
	fmt.Fprintf(&sb, "    <meta name=\"ItemCount\" content=\"%d\"/>\n", len(entries))
	sb.WriteString("  </head>\n")
	sb.WriteString("  <body>\n")
	sb.WriteString("    <seq>\n")

	for _, e := range entries {
		fmt.Fprintf(&sb, "      <media src=\"%s\" albumTitle=\"%s\" trackTitle=\"%s\" trackArtist=\"%s\" duration=\"%d\"/>\n",
			escapeXML(path.Base(e.Path)),
			escapeXML(e.Album),
			escapeXML(e.Title),
			escapeXML(e.Artist),
			e.Duration*1000)
	}

	sb.WriteString("    </seq>\n")
	sb.WriteString("  </body>\n")
	sb.WriteString("</smil>\n")

	return sb.String()
}

// escapeXML escapes special XML characters in a string.
func escapeXML(s string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	).Replace(s)
}
