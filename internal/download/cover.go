package download

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	ioutils "github.com/jsildura/cloudstream-sub000/internal/io"
	"go.uber.org/zap"
)

// ErrNoCover is returned when no size of a cover yielded a valid image.
var ErrNoCover = errors.New("no valid cover image")

var defaultCoverSizes = []int{1280, 640, 320, 160}

// CoverURL builds the direct image host URL for a cover at size×size.
func CoverURL(host, coverID string, size int) string {
	return fmt.Sprintf("%s/%s/%dx%d.jpg", strings.TrimSuffix(host, "/"), strings.ReplaceAll(coverID, "-", "/"), size, size)
}

// DownloadCover fetches a cover image, largest size first.
//
// Each candidate is accepted only if its Content-Type is not a text or
// JSON type and its magic bytes identify JPEG, PNG or WebP. When every
// direct size fails and a proxy is configured, the largest size is tried
// once more through the proxy.
func (m *Manager) DownloadCover(ctx context.Context, coverID string) ([]byte, error) {
	if coverID == "" {
		return nil, ErrNoCover
	}
	sizes := m.settings.CoverSizes
	if len(sizes) == 0 {
		sizes = defaultCoverSizes
	}

	var lastErr error
	for _, size := range sizes {
		u := CoverURL(m.settings.ImageHost, coverID, size)
		data, err := m.fetchImage(ctx, u)
		if err == nil {
			m.logger.Debug("cover fetched", zap.String("cover", coverID), zap.Int("size", size))
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		m.logger.Debug("cover size rejected", zap.String("url", u), zap.Error(err))
	}

	if proxy := m.settings.ProxyURL; proxy != "" {
		u := proxyURL(proxy, CoverURL(m.settings.ImageHost, coverID, sizes[0]))
		data, err := m.fetchImage(ctx, u)
		if err == nil {
			m.logger.Debug("cover fetched through proxy", zap.String("cover", coverID))
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrNoCover, coverID, lastErr)
}

func (m *Manager) fetchImage(ctx context.Context, u string) ([]byte, error) {
	resp, err := m.client.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !imageContentType(ct) {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	if _, ok := ioutils.SniffImage(resp.Body); !ok {
		return nil, ioutils.ErrNotImage
	}
	return resp.Body, nil
}

// imageContentType rejects the text and JSON families that error pages use.
func imageContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(mt, "text/") && !strings.Contains(mt, "json")
}

func proxyURL(proxy, target string) string {
	sep := "?"
	if strings.Contains(proxy, "?") {
		sep = "&"
	}
	return proxy + sep + "url=" + url.QueryEscape(target)
}

// prepareCover normalizes a fetched cover for embedding in tags.
func (m *Manager) prepareCover(ctx context.Context, cover []byte) []byte {
	if len(cover) == 0 || !m.settings.SaveCoverArtInTags {
		return nil
	}
	maxSize := 0
	if m.settings.CoverArtInTagsResize {
		maxSize = m.settings.CoverArtInTagsMaxSize
	}
	mimeType, _ := ioutils.SniffImage(cover)
	if maxSize == 0 && (mimeType == ioutils.MIMEJPEG || !m.settings.ConvertCoverArtToJPG) {
		return cover
	}
	out, err := m.images.Normalize(ctx, cover, maxSize)
	if err != nil {
		m.logger.Warn("cover normalization failed, embedding original", zap.Error(err))
		return cover
	}
	return out
}

// folderCover is the cover saved next to the tracks or into an archive.
func (m *Manager) folderCover(ctx context.Context, cover []byte) []byte {
	if mimeType, _ := ioutils.SniffImage(cover); mimeType == ioutils.MIMEJPEG || !m.settings.ConvertCoverArtToJPG {
		return cover
	}
	out, err := m.images.ConvertToJPEG(ctx, cover)
	if err != nil {
		m.logger.Warn("cover conversion failed, saving original", zap.Error(err))
		return cover
	}
	return out
}
