// Package download provides the download orchestration logic: single
// tracks, covers and bulk jobs over albums and playlists.
//
// # Manager
//
// The Manager coordinates a download:
//
//  1. Resolve a fresh stream descriptor through the resolver
//  2. Fetch the stream into memory, reporting byte progress
//  3. Retry the whole fetch with exponential backoff on any failure
//  4. Embed metadata and cover art (best-effort)
//  5. Convert lossy AAC to MP3 when requested (best-effort)
//
// # Basic Usage
//
//	manager := download.NewManager(settings, download.Deps{
//	    Resolver: res,
//	    Client:   client,
//	    Engine:   eng,
//	    Logger:   log,
//	}, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	result, err := manager.Download(ctx, track, model.QualityLossless, manager.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(result.Filename, result.Data, 0644)
//
// # Bulk Jobs
//
// DownloadBulk processes the tracks of an album or playlist strictly in
// order, in one of three modes:
//   - individual: every file is handed to BulkOptions.Save
//   - zip: files are collected into an in-memory archive
//   - csv: streams are resolved but not fetched, one row per track
//
// Failed tracks are recorded in the BulkResult and never abort the job.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// # Retry Logic
//
// Each fetch runs through a small state machine (attempting, backing-off,
// succeeded, exhausted). The delay after failure n is
// settings.DownloadRetryCooldown × settings.DownloadRetryExponent^n seconds,
// for at most settings.DownloadMaxRetries attempts.
package download
