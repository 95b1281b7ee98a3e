package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/internal/engine"
	xhttp "github.com/jsildura/cloudstream-sub000/internal/http"
	ioutils "github.com/jsildura/cloudstream-sub000/internal/io"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
)

// StreamResolver turns a track into a playable stream descriptor.
type StreamResolver interface {
	ResolveStream(ctx context.Context, trackID string, quality model.Quality) (*model.StreamDescriptor, error)
}

// Fetcher is the HTTP surface the manager needs.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) (*xhttp.Response, error)
	DownloadBytes(ctx context.Context, url string, onProgress func(written, total int64)) ([]byte, error)
}

// Transcoder is the optional tagging and conversion engine.
type Transcoder interface {
	Probe(ctx context.Context) bool
	EmbedMetadata(ctx context.Context, data []byte, md audio.Metadata, cover []byte) ([]byte, error)
	ConvertToMP3(ctx context.Context, data []byte, md audio.Metadata, cover []byte) ([]byte, error)
}

// Deps are the collaborators of a Manager. Engine may be nil.
type Deps struct {
	Resolver StreamResolver
	Client   Fetcher
	Engine   Transcoder
	Logger   *zap.Logger
}

// Options control a single track download.
type Options struct {
	// OnProgress is called after each received chunk. total is zero when
	// the server sent no Content-Length.
	OnProgress func(received, total int64)

	// ConvertToMP3 re-encodes lossy AAC streams.
	ConvertToMP3 bool

	// EmbedMetadata writes tags into the downloaded buffer.
	EmbedMetadata bool

	// Cover is embedded when tagging. May be nil.
	Cover []byte
}

// Result describes a finished download.
type Result struct {
	Success        bool
	Filename       string
	Data           []byte
	Quality        model.Quality
	FailedAttempts int
	Err            error
}

// Manager coordinates track, cover and bulk downloads.
type Manager struct {
	settings   *config.Settings
	resolver   StreamResolver
	client     Fetcher
	engine     Transcoder
	images     *ioutils.ImageService
	playlist   *audio.PlaylistCreator
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	onProgress func(ProgressEvent)
}

// Option configures a Manager.
type Option func(*Manager)

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// NewManager creates a new download Manager.
func NewManager(settings *config.Settings, deps Deps, onProgress func(ProgressEvent), opts ...Option) *Manager {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	format, err := audio.ParsePlaylistFormat(settings.PlaylistFormat)
	if err != nil {
		format = audio.FormatM3U
	}

	m := &Manager{
		settings:   settings,
		resolver:   deps.Resolver,
		client:     deps.Client,
		engine:     deps.Engine,
		images:     ioutils.NewImageService(),
		playlist:   audio.NewPlaylistCreator(format, settings.M3UExtended),
		logger:     logger.OrNop(deps.Logger).Named("download"),
		sleep:      sleepContext,
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultOptions derives per-download options from the settings.
func (m *Manager) DefaultOptions() Options {
	return Options{
		ConvertToMP3:  m.settings.ConvertAACToMP3,
		EmbedMetadata: m.settings.EmbedMetadata,
	}
}

func (m *Manager) retryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: m.settings.DownloadMaxRetries,
		Cooldown:    time.Duration(m.settings.DownloadRetryCooldown * float64(time.Second)),
		Exponent:    m.settings.DownloadRetryExponent,
	}
}

// Download fetches one track into memory.
//
// Every failure retries the whole fetch, including stream resolution,
// with exponential backoff. Tagging and conversion run afterwards and
// never fail the download. The returned Result is never nil.
func (m *Manager) Download(ctx context.Context, track *model.Track, quality model.Quality, opts Options) (*Result, error) {
	log := m.logger.With(zap.String("track", track.ID))
	res := &Result{}

	var data []byte
	var desc *model.StreamDescriptor
	r := &retrier{
		policy: m.retryPolicy(),
		sleep:  m.sleep,
		onTransition: func(t Transition) {
			switch t.State {
			case StateBackingOff:
				log.Debug("download attempt failed", zap.Int("attempt", t.Attempt), zap.Duration("backoff", t.Delay), zap.Error(t.Err))
				m.progress(ProgressEvent{
					Message: fmt.Sprintf("Retry %d/%d for %s: %v", t.Attempt, max(1, m.settings.DownloadMaxRetries), track.FullTitle(), t.Err),
					Level:   LevelWarning,
				})
			case StateExhausted:
				log.Warn("download exhausted", zap.Int("attempts", t.Attempt), zap.Error(t.Err))
			}
		},
	}

	failed, err := r.do(ctx, func(int) error {
		d, err := m.resolver.ResolveStream(ctx, track.ID, quality)
		if err != nil {
			return err
		}
		b, err := m.client.DownloadBytes(ctx, d.URL, opts.OnProgress)
		if err != nil {
			return err
		}
		data, desc = b, d
		return nil
	})
	res.FailedAttempts = failed
	if err != nil {
		res.Err = err
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", track.FullTitle(), err), Level: LevelError})
		return res, err
	}

	served := desc.Quality
	if served == "" {
		served = quality
	}
	res.Quality = served
	res.Filename = track.FileName(served, false)

	if opts.EmbedMetadata || opts.ConvertToMP3 {
		data, res.Filename = m.postProcess(ctx, track, desc, served, data, opts)
	}

	res.Success = true
	res.Data = data
	m.progress(ProgressEvent{Message: fmt.Sprintf("Downloaded: %s", res.Filename), Level: LevelVerbose})
	return res, nil
}

// postProcess runs the best-effort engine steps and returns the buffer and
// file name to keep.
func (m *Manager) postProcess(ctx context.Context, track *model.Track, desc *model.StreamDescriptor, served model.Quality, data []byte, opts Options) ([]byte, string) {
	filename := track.FileName(served, false)
	if m.engine == nil {
		return data, filename
	}
	md := engine.MetadataFor(track, desc)

	if opts.ConvertToMP3 && served.IsLossyAAC() {
		if !m.engine.Probe(ctx) {
			m.progress(ProgressEvent{Message: "MP3 conversion unavailable, keeping AAC", Level: LevelWarning})
		} else if out, err := m.engine.ConvertToMP3(ctx, data, md, opts.Cover); err != nil {
			m.engineWarning("convert", track, err)
		} else {
			// Conversion tags in the same pass.
			return out, track.FileName(served, true)
		}
	}

	if opts.EmbedMetadata {
		out, err := m.engine.EmbedMetadata(ctx, data, md, opts.Cover)
		if err != nil {
			m.engineWarning("tag", track, err)
			return data, filename
		}
		data = out
	}
	return data, filename
}

func (m *Manager) engineWarning(op string, track *model.Track, err error) {
	level := LevelWarning
	if errors.Is(err, engine.ErrUnavailable) {
		level = LevelVerbose
	}
	m.logger.Warn("engine step failed, keeping original audio", zap.String("op", op), zap.String("track", track.ID), zap.Error(err))
	m.progress(ProgressEvent{Message: fmt.Sprintf("Could not %s %s: %v", op, track.FullTitle(), err), Level: level})
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
