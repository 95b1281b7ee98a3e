// Package engine wraps ffmpeg for metadata embedding and AAC to MP3
// conversion of in-memory audio.
//
// The engine is optional. Probe reports whether it can work at all, Load
// resolves or downloads the binary once, and every failure surfaces as an
// error the caller is expected to log and ignore:
//
//	eng := engine.New(cfg, httpClient, audio.NewTagger(nil), log)
//	if out, err := eng.EmbedMetadata(ctx, data, engine.MetadataFor(track, desc), cover); err == nil {
//	    data = out
//	}
package engine
