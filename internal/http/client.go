package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxPrealloc bounds how much DownloadBytes reserves up front.
const maxPrealloc = 64 << 20

// Client wraps resty with the pipeline's defaults.
//
// API requests share a client with a fixed timeout. Streams use a second
// client without one, so long downloads are bounded only by ctx.
type Client struct {
	api       *resty.Client
	stream    *resty.Client
	userAgent string
}

// NewClient creates a Client. A zero timeout means 30 seconds.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = "cloudstream/1.0"
	}
	return &Client{
		api: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent),
		stream: resty.New().
			SetHeader("User-Agent", userAgent),
		userAgent: userAgent,
	}
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is returned by helpers that require a 2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: &buf,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	// Zero when unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and buffers the body.
//
// Only transport failures are returned as errors; any HTTP status is
// reported through Response.StatusCode.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	req := c.api.R().SetContext(ctx)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
		URL:        url,
	}, nil
}

// Stream is an open response body. The caller must Close it.
type Stream struct {
	StatusCode    int
	Header        http.Header
	ContentLength int64
	Body          io.ReadCloser
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.Body.Close()
}

// Open starts a GET request and returns the unread body.
func (c *Client) Open(ctx context.Context, url string) (*Stream, error) {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, err
	}

	length := int64(0)
	if raw := resp.RawResponse; raw != nil && raw.ContentLength > 0 {
		length = raw.ContentLength
	}

	return &Stream{
		StatusCode:    resp.StatusCode(),
		Header:        resp.Header(),
		ContentLength: length,
		Body:          resp.RawBody(),
	}, nil
}

// DownloadBytes streams url into memory, calling onProgress after each chunk.
//
// Returns a *StatusError for non-2xx responses.
func (c *Client) DownloadBytes(ctx context.Context, url string, onProgress func(written, total int64)) ([]byte, error) {
	stream, err := c.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if stream.StatusCode < 200 || stream.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: stream.StatusCode, URL: url}
	}

	// Content-Length is only a hint; the body may be shorter than claimed.
	var buf bytes.Buffer
	if stream.ContentLength > 0 {
		buf.Grow(int(min(stream.ContentLength, maxPrealloc)))
	}

	pw := &ProgressWriter{Writer: &buf, Total: stream.ContentLength, OnUpdate: onProgress}
	if _, err := io.Copy(pw, stream.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DownloadFile streams url to destPath with an optional progress callback.
//
// The file is written to a temporary name and renamed on success, so a
// failed download never leaves a truncated file at destPath.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	stream, err := c.Open(ctx, url)
	if err != nil {
		return err
	}
	defer stream.Close()

	if stream.StatusCode < 200 || stream.StatusCode >= 300 {
		return &StatusError{StatusCode: stream.StatusCode, URL: url}
	}

	tmp := destPath + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	pw := &ProgressWriter{Writer: file, Total: stream.ContentLength, OnUpdate: onProgress}
	_, copyErr := io.Copy(pw, stream.Body)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmp)
		if copyErr != nil {
			return copyErr
		}
		return closeErr
	}

	return os.Rename(tmp, destPath)
}
