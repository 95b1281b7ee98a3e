package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/internal/resolver/dto"
	"github.com/jsildura/cloudstream-sub000/internal/router"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultStreamAttempts = 3
	defaultRetryDelay     = 200 * time.Millisecond
)

// Executor is the part of the router the resolver needs.
type Executor interface {
	Execute(ctx context.Context, req router.Request, opts router.Options) (*router.Response, error)
	Endpoint(path string, query url.Values) string
}

// Category selects a search namespace.
type Category string

const (
	CategoryTracks    Category = "tracks"
	CategoryAlbums    Category = "albums"
	CategoryArtists   Category = "artists"
	CategoryPlaylists Category = "playlists"
)

// searchParams maps a category onto its query key.
var searchParams = map[Category]string{
	CategoryTracks:    "s",
	CategoryAlbums:    "al",
	CategoryArtists:   "a",
	CategoryPlaylists: "p",
}

// SearchResult holds normalized search hits. Only the slice matching the
// requested category is populated.
type SearchResult struct {
	Tracks    []*model.Track
	Albums    []*model.Album
	Artists   []model.Artist
	Playlists []*model.Playlist
}

// Discography is the harvested catalogue of one artist.
type Discography struct {
	Artist model.Artist
	Albums []*model.Album
	Tracks []*model.Track
}

// Resolver produces metadata and stream descriptors from mirror payloads.
type Resolver struct {
	exec       Executor
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	attempts   int
	retryDelay time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSleep replaces the delay function used between stream attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resolver) { r.sleep = sleep }
}

// WithRetryDelay sets the base delay between stream attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) { r.retryDelay = d }
}

// New creates a Resolver on top of exec.
func New(exec Executor, log *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		exec:       exec,
		logger:     logger.OrNop(log).Named("resolver"),
		sleep:      sleepContext,
		attempts:   defaultStreamAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetch runs a request through the router and maps terminal statuses.
func (r *Resolver) fetch(ctx context.Context, path string, query url.Values, opts router.Options) (*router.Response, error) {
	resp, err := r.exec.Execute(ctx, router.Request{URL: r.exec.Endpoint(path, query)}, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Target: resp.Target, RetryAfter: retryAfter(resp.Header)}
	}
	if !resp.IsSuccess() {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Target: resp.Target}
	}
	return resp, nil
}

func (r *Resolver) fetchJSON(ctx context.Context, path string, query url.Values) (any, error) {
	resp, err := r.fetch(ctx, path, query, router.Options{})
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("decode %s response from %s: %w", path, resp.Target, err)
	}
	return payload, nil
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Search queries one category and normalizes the hits.
func (r *Resolver) Search(ctx context.Context, query string, category Category) (*SearchResult, error) {
	param, ok := searchParams[category]
	if !ok {
		return nil, fmt.Errorf("unknown search category %q", category)
	}

	payload, err := r.fetchJSON(ctx, "/search/", url.Values{param: {query}})
	if err != nil {
		return nil, err
	}

	result := &SearchResult{}
	cache := dto.AlbumCache{}
	for _, raw := range FindItems(payload, string(category)) {
		obj, ok := unwrapItem(raw)
		if !ok {
			continue
		}
		switch category {
		case CategoryTracks:
			if t := r.decodeTrack(obj, cache); t != nil {
				result.Tracks = append(result.Tracks, t)
			}
		case CategoryAlbums:
			if a := r.decodeAlbum(obj); a != nil {
				result.Albums = append(result.Albums, cache.Put(a))
			}
		case CategoryArtists:
			if isArtist(obj) {
				var ja dto.JSONArtist
				if err := dto.Decode(obj, &ja); err == nil {
					result.Artists = append(result.Artists, model.Artist{ID: string(ja.ID), Name: ja.Name})
				}
			}
		case CategoryPlaylists:
			if isPlaylist(obj) {
				var jp dto.JSONPlaylist
				if err := dto.Decode(obj, &jp); err == nil {
					result.Playlists = append(result.Playlists, jp.ToPlaylist())
				}
			}
		}
	}

	r.logger.Debug("search",
		zap.String("category", string(category)),
		zap.Int("tracks", len(result.Tracks)),
		zap.Int("albums", len(result.Albums)),
		zap.Int("artists", len(result.Artists)),
		zap.Int("playlists", len(result.Playlists)))
	return result, nil
}

func (r *Resolver) decodeTrack(obj map[string]any, cache dto.AlbumCache) *model.Track {
	if !isTrackish(obj) {
		return nil
	}
	var jt dto.JSONTrack
	if err := dto.Decode(obj, &jt); err != nil {
		r.logger.Debug("skipping malformed track", zap.Error(err))
		return nil
	}
	return jt.ToTrack(cache)
}

func (r *Resolver) decodeAlbum(obj map[string]any) *model.Album {
	if !isAlbum(obj) {
		return nil
	}
	var ja dto.JSONAlbumRef
	if err := dto.Decode(obj, &ja); err != nil {
		r.logger.Debug("skipping malformed album", zap.Error(err))
		return nil
	}
	return ja.ToAlbum()
}

// Track looks up a single track's metadata.
func (r *Resolver) Track(ctx context.Context, id string) (*model.Track, error) {
	payload, err := r.fetchJSON(ctx, "/info/", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	obj := findFirst(payload, isTrackish)
	if obj == nil {
		return nil, &NotFoundError{Kind: "track", ID: id}
	}
	track := r.decodeTrack(obj, dto.AlbumCache{})
	if track == nil {
		return nil, &NotFoundError{Kind: "track", ID: id}
	}
	return track, nil
}

// Album looks up an album and its tracks. Every returned track points at
// the returned album.
func (r *Resolver) Album(ctx context.Context, id string) (*model.Album, error) {
	payload, err := r.fetchJSON(ctx, "/album/", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}

	cache := dto.AlbumCache{}
	var album *model.Album
	if obj := findFirst(payload, func(m map[string]any) bool { return isAlbum(m) && idString(m["id"]) == id }); obj != nil {
		album = r.decodeAlbum(obj)
	}
	if album == nil {
		if obj := findFirst(payload, isAlbum); obj != nil {
			album = r.decodeAlbum(obj)
		}
	}

	var tracks []*model.Track
	for _, raw := range FindItems(payload, "items") {
		obj, ok := unwrapItem(raw)
		if !ok {
			continue
		}
		if t := r.decodeTrack(obj, cache); t != nil {
			tracks = append(tracks, t)
		}
	}

	if album == nil {
		for _, t := range tracks {
			if t.Album != nil {
				album = t.Album
				break
			}
		}
	}
	if album == nil {
		return nil, &NotFoundError{Kind: "album", ID: id}
	}
	album = cache.Put(album)
	for _, t := range tracks {
		t.Album = album
	}
	album.Tracks = tracks
	if album.TrackCount == 0 {
		album.TrackCount = len(tracks)
	}
	return album, nil
}

// Playlist looks up a playlist and its tracks.
func (r *Resolver) Playlist(ctx context.Context, uuid string) (*model.Playlist, error) {
	payload, err := r.fetchJSON(ctx, "/playlist/", url.Values{"id": {uuid}})
	if err != nil {
		return nil, err
	}

	playlist := &model.Playlist{UUID: uuid}
	if obj := findFirst(payload, isPlaylist); obj != nil {
		var jp dto.JSONPlaylist
		if err := dto.Decode(obj, &jp); err == nil {
			playlist = jp.ToPlaylist()
		}
	}

	cache := dto.AlbumCache{}
	for _, raw := range FindItems(payload, "items") {
		obj, ok := unwrapItem(raw)
		if !ok {
			continue
		}
		if t := r.decodeTrack(obj, cache); t != nil {
			playlist.Tracks = append(playlist.Tracks, t)
		}
	}
	if playlist.Title == "" && len(playlist.Tracks) == 0 {
		return nil, &NotFoundError{Kind: "playlist", ID: uuid}
	}
	if playlist.TrackCount == 0 {
		playlist.TrackCount = len(playlist.Tracks)
	}
	return playlist, nil
}

// Artist harvests an artist's albums and tracks from the discography
// payload, whatever module layout the mirror uses.
func (r *Resolver) Artist(ctx context.Context, id string) (*Discography, error) {
	payload, err := r.fetchJSON(ctx, "/artist/", url.Values{"f": {id}})
	if err != nil {
		return nil, err
	}

	h := Harvest(payload)
	disco := &Discography{Artist: model.Artist{ID: id}}

	for _, obj := range h.Artists {
		var ja dto.JSONArtist
		if err := dto.Decode(obj, &ja); err != nil {
			continue
		}
		if string(ja.ID) == id || disco.Artist.Name == "" {
			disco.Artist = model.Artist{ID: string(ja.ID), Name: ja.Name}
			if string(ja.ID) == id {
				break
			}
		}
	}

	cache := dto.AlbumCache{}
	for _, obj := range h.Albums {
		if a := r.decodeAlbum(obj); a != nil {
			disco.Albums = append(disco.Albums, cache.Put(a))
		}
	}
	for _, obj := range h.Tracks {
		if t := r.decodeTrack(obj, cache); t != nil {
			disco.Tracks = append(disco.Tracks, t)
		}
	}

	if disco.Artist.Name == "" {
		for _, t := range disco.Tracks {
			for _, a := range t.Artists {
				if a.ID == id {
					disco.Artist.Name = a.Name
				}
			}
		}
	}
	if len(disco.Albums) == 0 && len(disco.Tracks) == 0 {
		return nil, &NotFoundError{Kind: "artist", ID: id}
	}
	return disco, nil
}

// ResolveStream negotiates quality and returns a fresh stream descriptor.
//
// A hi-res request is tried once at that tier; if the mirror does not
// confirm a hi-res stream the call continues at lossless without error.
// The effective tier is then tried up to three times with a growing delay.
// A 429 ends the call immediately with a *RateLimitError.
func (r *Resolver) ResolveStream(ctx context.Context, trackID string, quality model.Quality) (*model.StreamDescriptor, error) {
	if quality == "" {
		quality = model.QualityLossless
	}
	log := r.logger.With(zap.String("track", trackID), zap.String("quality", string(quality)))

	effective := quality
	if quality == model.QualityHiResLossless {
		desc, tag, err := r.streamAttempt(ctx, trackID, quality)
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return nil, err
		}
		if err == nil && tag.IsHiRes() {
			return desc, nil
		}
		log.Debug("hi-res unavailable, falling back to lossless", zap.String("reported", string(tag)), zap.Error(err))
		effective = model.QualityLossless
	}

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		desc, _, err := r.streamAttempt(ctx, trackID, effective)
		if err == nil {
			return desc, nil
		}
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		log.Debug("stream attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < r.attempts {
			if err := r.sleep(ctx, time.Duration(attempt)*r.retryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("resolve stream for track %s at %s: %w", trackID, effective, lastErr)
}

// streamAttempt performs one playback lookup. It returns the descriptor
// and the quality tag the mirror reported.
func (r *Resolver) streamAttempt(ctx context.Context, trackID string, quality model.Quality) (*model.StreamDescriptor, model.Quality, error) {
	resp, err := r.fetch(ctx, "/track/", url.Values{"id": {trackID}, "quality": {string(quality)}}, router.Options{
		Validator:        func(resp *router.Response) bool { return !dto.IsPreview(resp.Body) },
		PreferredQuality: quality,
	})
	if err != nil {
		return nil, "", err
	}

	pb, err := dto.ParsePlayback(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("track %s from %s: %w", trackID, resp.Target, err)
	}
	tag := model.Quality(pb.AudioQuality)
	if pb.AssetPresentation == "PREVIEW" {
		return nil, tag, fmt.Errorf("track %s: only a preview is available", trackID)
	}

	var streamURL string
	switch {
	case pb.OriginalTrackURL != "" && quality.IsLossless():
		streamURL = pb.OriginalTrackURL
	case pb.Manifest != "":
		streamURL, err = DecodeManifest(pb.Manifest)
		if err != nil {
			var mu *ManifestUnresolvableError
			if errors.As(err, &mu) {
				mu.TrackID = trackID
			}
			return nil, tag, err
		}
	default:
		return nil, tag, &ManifestUnresolvableError{TrackID: trackID, Reason: "no manifest or direct url"}
	}

	served := tag
	if served == "" {
		served = quality
	}
	return &model.StreamDescriptor{
		URL:        streamURL,
		Quality:    served,
		ReplayGain: pb.TrackReplayGain,
		SampleRate: pb.SampleRate,
		BitDepth:   pb.BitDepth,
	}, tag, nil
}
