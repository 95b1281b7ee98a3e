// Package audio provides audio buffer manipulation: container detection,
// ID3 tag writing and playlist generation.
//
// Everything operates on in-memory buffers; nothing here touches the file
// system.
//
// # ID3 Tagging
//
// Use the Tagger to write ID3v2.4 tags into MP3 data:
//
//	tagger := audio.NewTagger(audio.DefaultTagConfig())
//	tagged, err := tagger.Tag(mp3Bytes, md, coverBytes)
//
// The tagger writes:
//   - Title, Artist, Album Artist, Album
//   - Track and disc position as "N/total"
//   - Year and release date
//   - ISRC, copyright and ReplayGain
//   - Cover art as the front cover picture
//
// # Container Detection
//
// DetectContainer tells FLAC, MP4, MP3 and Ogg apart by their headers, and
// ReadMetadata reads tags back from any of them.
//
// # Playlist Generation
//
//	creator := audio.NewPlaylistCreator(audio.FormatM3U, true) // extended M3U
//	content := creator.CreatePlaylist("Artist - Album", entries)
//
// Supported formats:
//   - M3U (with optional extended info)
//   - PLS
//   - WPL (Windows Media Player)
//   - ZPL (Zune Media Player)
package audio
