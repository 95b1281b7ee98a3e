package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/internal/resolver"
	"github.com/jsildura/cloudstream-sub000/internal/router"
	"go.uber.org/zap"
)

// health returns the liveness status.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "cloudstream",
		"timestamp": time.Now().Unix(),
	})
}

// proxy relays an upstream GET verbatim.
func (s *Server) proxy(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only absolute http(s) urls can be proxied"})
		return
	}
	if !s.proxyAllowed(target.Hostname()) {
		c.JSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
		return
	}

	header := http.Header{}
	if rng := c.GetHeader("Range"); rng != "" {
		header.Set("Range", rng)
	}
	resp, err := s.fetcher.Get(c.Request.Context(), target.String(), header)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed"})
		return
	}

	for _, key := range []string{"Cache-Control", "Content-Range", "Accept-Ranges", "Retry-After"} {
		if v := resp.Header.Get(key); v != "" {
			c.Header(key, v)
		}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

func (s *Server) proxyAllowed(host string) bool {
	host = strings.ToLower(host)
	if len(s.cfg.AllowedProxyHosts) == 0 {
		return publicHost(host)
	}
	for _, allowed := range s.cfg.AllowedProxyHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// publicHost refuses localhost and IP literals outside public unicast space.
func publicHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return false
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return true
	}
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate()
}

// stream resolves a track into a playable descriptor.
func (s *Server) stream(c *gin.Context) {
	quality, ok := s.quality(c)
	if !ok {
		return
	}
	desc, err := s.catalog.ResolveStream(c.Request.Context(), c.Param("id"), quality)
	if err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{
		"url":     desc.URL,
		"quality": desc.Quality,
	}
	if desc.ReplayGain != nil {
		body["replay_gain"] = *desc.ReplayGain
	}
	if desc.SampleRate > 0 {
		body["sample_rate"] = desc.SampleRate
	}
	if desc.BitDepth > 0 {
		body["bit_depth"] = desc.BitDepth
	}
	c.JSON(http.StatusOK, body)
}

// downloadTrack returns one processed track as an attachment.
func (s *Server) downloadTrack(c *gin.Context) {
	ctx := c.Request.Context()
	quality, ok := s.quality(c)
	if !ok {
		return
	}
	opts := s.downloads.DefaultOptions()
	if raw := c.Query("mp3"); raw != "" {
		mp3, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mp3 must be a boolean"})
			return
		}
		opts.ConvertToMP3 = mp3
	}

	track, err := s.catalog.Track(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if (opts.EmbedMetadata || opts.ConvertToMP3) && track.Album.HasCover() {
		if cover, err := s.downloads.DownloadCover(ctx, track.Album.CoverID); err == nil {
			opts.Cover = cover
		} else {
			s.logger.Debug("cover unavailable", zap.String("track", track.ID), zap.Error(err))
		}
	}

	res, err := s.downloads.Download(ctx, track, quality, opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	attachment(c, res.Filename)
	c.Data(http.StatusOK, audioContentType(res.Filename), res.Data)
}

// exportAlbum builds a zip archive or a CSV of stream URLs for an album.
func (s *Server) exportAlbum(c *gin.Context) {
	ctx := c.Request.Context()
	quality, ok := s.quality(c)
	if !ok {
		return
	}
	mode, ok := model.ParseBulkMode(c.Query("mode"))
	if !ok || mode == model.BulkIndividual {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be zip or csv"})
		return
	}

	album, err := s.catalog.Album(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(album.Tracks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "album has no tracks"})
		return
	}

	res, err := s.downloads.DownloadBulk(ctx, album.Collection(), album.Tracks, quality, mode, s.downloads.DefaultBulkOptions())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("X-Tracks-Succeeded", strconv.Itoa(res.SuccessCount))
	c.Header("X-Tracks-Failed", strconv.Itoa(res.FailedCount))
	switch mode {
	case model.BulkCSV:
		attachment(c, res.FileName)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(res.CSV))
	default:
		if res.Archive == nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  "no track could be downloaded",
				"failed": res.FailedCount,
			})
			return
		}
		attachment(c, res.FileName)
		c.Data(http.StatusOK, "application/zip", res.Archive)
	}
}

// quality reads the quality query parameter, writing a 400 on bad input.
func (s *Server) quality(c *gin.Context) (model.Quality, bool) {
	raw := c.Query("quality")
	if raw == "" {
		return s.cfg.DefaultQuality, true
	}
	q, err := model.ParseQuality(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return q, true
}

// fail maps pipeline errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		rateLimit    *resolver.RateLimitError
		notFound     *resolver.NotFoundError
		unresolvable *resolver.ManifestUnresolvableError
		upstream     *resolver.UpstreamError
		connectivity *router.ConnectivityError
	)
	switch {
	case errors.As(err, &rateLimit):
		if rateLimit.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(rateLimit.RetryAfter.Seconds())))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &unresolvable), errors.As(err, &upstream), errors.As(err, &connectivity):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, router.ErrNoTargets):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
}

func audioContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".flac"):
		return "audio/flac"
	case strings.HasSuffix(filename, ".m4a"):
		return "audio/mp4"
	case strings.HasSuffix(filename, ".mp3"):
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
