// Package app wires settings into a ready-to-use pipeline.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/internal/download"
	"github.com/jsildura/cloudstream-sub000/internal/engine"
	xhttp "github.com/jsildura/cloudstream-sub000/internal/http"
	ioutils "github.com/jsildura/cloudstream-sub000/internal/io"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/internal/resolver"
	"github.com/jsildura/cloudstream-sub000/internal/router"
	"github.com/jsildura/cloudstream-sub000/internal/server"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
)

// App holds the wired components. Front-ends use the fields directly.
type App struct {
	Settings *config.Settings
	Logger   *zap.Logger
	Client   *xhttp.Client
	Router   *router.Router
	Resolver *resolver.Resolver
	Engine   *engine.Engine
	Manager  *download.Manager
}

// Option configures App construction.
type Option func(*options)

type options struct {
	engineOpts   []engine.Option
	managerOpts  []download.Option
	resolverOpts []resolver.Option
}

// WithEngineOptions passes options through to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithManagerOptions passes options through to download.NewManager.
func WithManagerOptions(opts ...download.Option) Option {
	return func(o *options) { o.managerOpts = append(o.managerOpts, opts...) }
}

// WithResolverOptions passes options through to resolver.New.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(o *options) { o.resolverOpts = append(o.resolverOpts, opts...) }
}

// New builds the pipeline from settings. onProgress may be nil.
func New(settings *config.Settings, log *zap.Logger, onProgress func(download.ProgressEvent), opts ...Option) (*App, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log = logger.OrNop(log)

	client := xhttp.NewClient(settings.Timeout(), settings.UserAgent)
	rt := router.New(router.Config{
		Targets:             settings.ModelTargets(),
		ProxyURL:            settings.ProxyURL,
		UseProxy:            settings.UseProxy,
		FailoverOnRateLimit: settings.FailoverOnRateLimit,
	}, client, log)
	res := resolver.New(rt, log, o.resolverOpts...)
	eng := engine.New(settings.ToEngineConfig(), client, audio.NewTagger(settings.ToTagConfig()), log, o.engineOpts...)
	mgr := download.NewManager(settings, download.Deps{
		Resolver: res,
		Client:   client,
		Engine:   eng,
		Logger:   log,
	}, onProgress, o.managerOpts...)

	return &App{
		Settings: settings,
		Logger:   log,
		Client:   client,
		Router:   rt,
		Resolver: res,
		Engine:   eng,
		Manager:  mgr,
	}, nil
}

// Collection resolves an album or playlist into its bulk container and
// tracks.
func (a *App) Collection(ctx context.Context, kind model.CollectionKind, id string) (model.Collection, []*model.Track, error) {
	switch kind {
	case model.CollectionAlbum:
		album, err := a.Resolver.Album(ctx, id)
		if err != nil {
			return model.Collection{}, nil, err
		}
		return album.Collection(), album.Tracks, nil
	case model.CollectionPlaylist:
		playlist, err := a.Resolver.Playlist(ctx, id)
		if err != nil {
			return model.Collection{}, nil, err
		}
		return playlist.Collection(), playlist.Tracks, nil
	}
	return model.Collection{}, nil, fmt.Errorf("unknown collection kind %q", kind)
}

// Resolve looks up what ref points at. A track resolves to a one-track
// collection named after its album.
func (a *App) Resolve(ctx context.Context, ref Ref) (model.Collection, []*model.Track, error) {
	switch ref.Kind {
	case RefAlbum:
		return a.Collection(ctx, model.CollectionAlbum, ref.ID)
	case RefPlaylist:
		return a.Collection(ctx, model.CollectionPlaylist, ref.ID)
	case RefTrack:
		track, err := a.Resolver.Track(ctx, ref.ID)
		if err != nil {
			return model.Collection{}, nil, err
		}
		coll := model.Collection{Kind: model.CollectionAlbum, ID: track.ID, Title: track.FullTitle(), Artist: track.ArtistNames()}
		if track.Album != nil {
			coll = track.Album.Collection()
		}
		return coll, []*model.Track{track}, nil
	}
	return model.Collection{}, nil, fmt.Errorf("unknown reference kind %q", ref.Kind)
}

// Fetch downloads what ref points at into dir.
//
// A track is written straight into dir. A collection in individual mode
// gets its own "{artist} - {title}" subdirectory. Zip and csv modes write
// a single file into dir.
func (a *App) Fetch(ctx context.Context, ref Ref, quality model.Quality, mode model.BulkMode, dir string, opts download.BulkOptions) (*download.BulkResult, error) {
	coll, tracks, err := a.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	save := ioutils.DirSaver(ctx, dir)
	switch {
	case ref.Kind == RefTrack:
		mode = model.BulkIndividual
		opts.Save = save
	case mode == model.BulkIndividual:
		opts.Save = ioutils.DirSaver(ctx, filepath.Join(dir, coll.BaseName()))
	}

	res, err := a.Manager.DownloadBulk(ctx, coll, tracks, quality, mode, opts)
	if res == nil {
		return nil, err
	}
	switch mode {
	case model.BulkZip:
		if res.Archive != nil {
			if serr := save(res.FileName, res.Archive); serr != nil {
				return res, fmt.Errorf("save %s: %w", res.FileName, serr)
			}
		}
	case model.BulkCSV:
		if serr := save(res.FileName, []byte(res.CSV)); serr != nil {
			return res, fmt.Errorf("save %s: %w", res.FileName, serr)
		}
	}
	return res, err
}

// Server builds the HTTP front over this pipeline.
func (a *App) Server() *server.Server {
	return server.New(server.Config{
		Addr:              a.Settings.ServerAddr,
		Mode:              a.Settings.ServerMode,
		AllowedProxyHosts: a.Settings.ProxyHosts(),
		DefaultQuality:    a.Settings.Quality(),
	}, server.Deps{
		Catalog:   a.Resolver,
		Downloads: a.Manager,
		Fetcher:   a.Client,
	}, a.Logger)
}

// Close releases a downloaded engine asset.
func (a *App) Close() {
	a.Engine.Unload()
}
