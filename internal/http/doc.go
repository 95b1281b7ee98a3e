// Package http provides the HTTP transport shared by the router, the
// download orchestrator and the transcoding engine.
//
// The Client in this package handles:
//   - User-Agent headers and request timeouts
//   - Buffered API requests that never fail on HTTP status
//   - Streaming downloads with byte progress
//
// # Basic Usage
//
//	client := http.NewClient(30*time.Second, "cloudstream/1.0")
//
//	// API request; status handling is left to the caller
//	resp, err := client.Get(ctx, "https://mirror.example/track/?id=1", nil)
//
//	// Binary download with progress callback
//	data, err := client.DownloadBytes(ctx, streamURL, func(written, total int64) {
//	    fmt.Printf("%d / %d\n", written, total)
//	})
package http
