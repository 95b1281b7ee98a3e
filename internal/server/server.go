package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsildura/cloudstream-sub000/internal/download"
	xhttp "github.com/jsildura/cloudstream-sub000/internal/http"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Catalog is the resolver surface the API needs.
type Catalog interface {
	Track(ctx context.Context, id string) (*model.Track, error)
	Album(ctx context.Context, id string) (*model.Album, error)
	ResolveStream(ctx context.Context, trackID string, quality model.Quality) (*model.StreamDescriptor, error)
}

// Downloads is the download manager surface the API needs.
type Downloads interface {
	Download(ctx context.Context, track *model.Track, quality model.Quality, opts download.Options) (*download.Result, error)
	DownloadBulk(ctx context.Context, coll model.Collection, tracks []*model.Track, quality model.Quality, mode model.BulkMode, opts download.BulkOptions) (*download.BulkResult, error)
	DownloadCover(ctx context.Context, coverID string) ([]byte, error)
	DefaultOptions() download.Options
	DefaultBulkOptions() download.BulkOptions
}

// Fetcher performs the upstream request of the passthrough proxy.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) (*xhttp.Response, error)
}

// Config holds server options.
type Config struct {
	Addr string

	// Mode is the gin mode: debug, release or test.
	Mode string

	// AllowedProxyHosts restricts /api/proxy. Subdomains of a listed host
	// are allowed too. Empty allows any public host; loopback, private and
	// link-local addresses are refused.
	AllowedProxyHosts []string

	// AllowOrigins for CORS. Empty allows every origin.
	AllowOrigins []string

	// DefaultQuality is used when a request names none.
	DefaultQuality model.Quality
}

// Deps are the collaborators of a Server.
type Deps struct {
	Catalog   Catalog
	Downloads Downloads
	Fetcher   Fetcher
}

// Server is the HTTP front of the pipeline.
type Server struct {
	cfg       Config
	catalog   Catalog
	downloads Downloads
	fetcher   Fetcher
	logger    *zap.Logger
	engine    *gin.Engine
}

// New builds a Server and its routes.
func New(cfg Config, deps Deps, log *zap.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.DefaultQuality == "" {
		cfg.DefaultQuality = model.QualityLossless
	}
	for i, h := range cfg.AllowedProxyHosts {
		cfg.AllowedProxyHosts[i] = strings.ToLower(strings.TrimSpace(h))
	}

	s := &Server{
		cfg:       cfg,
		catalog:   deps.Catalog,
		downloads: deps.Downloads,
		fetcher:   deps.Fetcher,
		logger:    logger.OrNop(log).Named("server"),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(s.cfg.AllowOrigins))
	r.Use(RequestLogger(s.logger))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/proxy", s.proxy)
		api.GET("/stream/:id", s.stream)
		api.GET("/tracks/:id/download", s.downloadTrack)
		api.GET("/albums/:id/export", s.exportAlbum)
	}
	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
