package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable means no ffmpeg binary could be found or fetched.
// Callers treat it as non-fatal and keep the original audio.
var ErrUnavailable = errors.New("transcoding engine unavailable")

const defaultMP3Quality = 2

// Config configures where the engine finds ffmpeg.
type Config struct {
	// BinaryPath is an explicit ffmpeg binary. Empty means search PATH.
	BinaryPath string

	// AssetURL is downloaded when no local binary exists.
	AssetURL string

	// AssetDir receives the downloaded asset. Empty means a temp dir.
	AssetDir string

	// MP3Quality is the libmp3lame VBR quality, 0 (best) to 9.
	MP3Quality int
}

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// AssetFetcher downloads the engine asset.
type AssetFetcher interface {
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error
}

// Engine embeds metadata and converts audio in memory, driving ffmpeg for
// containers that cannot be tagged natively.
//
// Loading is lazy and single-flight: concurrent callers share one load and
// later callers reuse its result until Unload.
type Engine struct {
	cfg      Config
	runner   Runner
	fetcher  AssetFetcher
	tagger   *audio.Tagger
	logger   *zap.Logger
	lookPath func(string) (string, error)

	probeOnce sync.Once
	available bool

	group  singleflight.Group
	mu     sync.Mutex
	gen    uint64 // bumped by Unload
	binary string
	asset  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLookPath replaces the PATH lookup.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(e *Engine) { e.lookPath = fn }
}

// New creates an Engine. fetcher may be nil when no asset URL is configured.
func New(cfg Config, fetcher AssetFetcher, tagger *audio.Tagger, log *zap.Logger, opts ...Option) *Engine {
	if cfg.MP3Quality < 0 || cfg.MP3Quality > 9 {
		cfg.MP3Quality = defaultMP3Quality
	}
	if tagger == nil {
		tagger = audio.NewTagger(nil)
	}
	e := &Engine{
		cfg:      cfg,
		runner:   ExecRunner{},
		fetcher:  fetcher,
		tagger:   tagger,
		logger:   logger.OrNop(log).Named("engine"),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Probe reports whether the engine can be loaded. The answer is computed
// once per Engine and never fails; an unavailable engine is logged.
func (e *Engine) Probe(ctx context.Context) bool {
	e.probeOnce.Do(func() {
		_, err := e.locate()
		e.available = err == nil || (e.cfg.AssetURL != "" && e.fetcher != nil)
		if !e.available {
			e.logger.Warn("ffmpeg not found; metadata for non-MP3 files and MP3 conversion are disabled")
		}
	})
	return e.available
}

// Loaded reports whether a binary is ready.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.binary != ""
}

// Load resolves the ffmpeg binary, downloading the asset if needed.
// onProgress receives asset download progress and may be nil.
//
// The shared load outlives any single caller: cancelling ctx only stops
// this caller from waiting.
func (e *Engine) Load(ctx context.Context, onProgress func(written, total int64)) (string, error) {
	e.mu.Lock()
	if e.binary != "" {
		bin := e.binary
		e.mu.Unlock()
		return bin, nil
	}
	e.mu.Unlock()

	ch := e.group.DoChan("load", func() (any, error) {
		e.mu.Lock()
		if e.binary != "" {
			bin := e.binary
			e.mu.Unlock()
			return bin, nil
		}
		gen := e.gen
		e.mu.Unlock()

		bin, asset, err := e.load(context.WithoutCancel(ctx), onProgress)
		if err != nil {
			return "", err
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen != gen {
			if asset != e.asset {
				removeAsset(asset, e.logger)
			}
			return "", fmt.Errorf("%w: unloaded while loading", ErrUnavailable)
		}
		e.binary, e.asset = bin, asset
		e.logger.Info("engine loaded", zap.String("binary", bin))
		return bin, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (e *Engine) load(ctx context.Context, onProgress func(written, total int64)) (bin, asset string, err error) {
	if bin, err := e.locate(); err == nil {
		return bin, "", nil
	}
	if e.cfg.AssetURL == "" || e.fetcher == nil {
		return "", "", ErrUnavailable
	}

	dir := e.cfg.AssetDir
	if dir == "" {
		if dir, err = os.MkdirTemp("", "cloudstream-engine-"); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	dest := filepath.Join(dir, binaryName())
	e.logger.Info("downloading engine asset", zap.String("url", e.cfg.AssetURL), zap.String("dest", dest))
	if err := e.fetcher.DownloadFile(ctx, e.cfg.AssetURL, dest, onProgress); err != nil {
		return "", "", fmt.Errorf("%w: fetch asset: %v", ErrUnavailable, err)
	}
	if err := os.Chmod(dest, 0755); err != nil {
		os.Remove(dest)
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return dest, dest, nil
}

// locate finds a local binary without downloading anything.
func (e *Engine) locate() (string, error) {
	if e.cfg.BinaryPath != "" {
		if info, err := os.Stat(e.cfg.BinaryPath); err == nil && !info.IsDir() {
			return e.cfg.BinaryPath, nil
		}
	}
	if e.lookPath == nil {
		return "", ErrUnavailable
	}
	return e.lookPath("ffmpeg")
}

// Unload forgets the loaded binary and deletes a downloaded asset. A load
// still in flight is discarded when it finishes.
func (e *Engine) Unload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	removeAsset(e.asset, e.logger)
	e.binary, e.asset = "", ""
	e.gen++
	e.group.Forget("load")
}

func removeAsset(path string, log *zap.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("remove engine asset", zap.String("path", path), zap.Error(err))
	}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}
