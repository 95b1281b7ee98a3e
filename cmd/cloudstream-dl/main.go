package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/jsildura/cloudstream-sub000/internal/app"
	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/internal/download"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Command line flags
	var (
		trackFlag    = flag.String("track", "", "Track ID(s) or URL(s) to download (comma-separated)")
		albumFlag    = flag.String("album", "", "Album ID or URL to download")
		playlistFlag = flag.String("playlist", "", "Playlist UUID or URL to download")
		qualityFlag  = flag.String("quality", "", "HI_RES_LOSSLESS, LOSSLESS, HIGH or LOW (overrides config)")
		modeFlag     = flag.String("mode", "", "Bulk mode: individual, zip or csv (overrides config)")
		mp3Flag      = flag.Bool("mp3", false, "Convert lossy AAC downloads to MP3")
		coverFlag    = flag.Bool("cover", false, "Save cover.jpg next to collection downloads")
		outFlag      = flag.String("out", "", "Output directory (overrides config)")
		configFlag   = flag.String("config", "", "Path to config file")
		verboseFlag  = flag.Bool("verbose", false, "Show verbose output")
	)

	flag.Parse()

	refs, err := collectRefs(*trackFlag, *albumFlag, *playlistFlag, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if len(refs) == 0 {
		fmt.Println("cloudstream - lossless downloads from community mirrors")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  cloudstream-dl -album <ID|URL> [options]")
		fmt.Println("  cloudstream-dl -track <ID,ID,...> [options]")
		fmt.Println("  cloudstream-dl album:<ID> playlist:<UUID> [options]")
		fmt.Println()
		fmt.Println("For interactive mode, use: cloudstream-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Apply flags
	if *outFlag != "" {
		settings.DownloadsPath = *outFlag
	}
	if *qualityFlag != "" {
		settings.PreferredQuality = *qualityFlag
	}
	if *modeFlag != "" {
		settings.BulkMode = *modeFlag
	}
	if *mp3Flag {
		settings.ConvertAACToMP3 = true
	}
	if *coverFlag {
		settings.DownloadCoverSeparately = true
	}
	if *verboseFlag {
		settings.LogLevel = "debug"
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := logger.Init(settings.ToLoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	// Handle interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := &console{verbose: *verboseFlag}
	a, err := app.New(settings, log, out.event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	fmt.Println("♪ cloudstream")
	fmt.Println(strings.Repeat("─", 40))

	var failed int
	tracks, collections := splitRefs(refs)
	if len(tracks) > 0 {
		failed += downloadTracks(ctx, a, tracks, out, log)
	}
	for _, ref := range collections {
		failed += downloadCollection(ctx, a, ref, out)
	}

	fmt.Println(strings.Repeat("─", 40))
	if ctx.Err() != nil {
		fmt.Println("Download cancelled.")
		os.Exit(130)
	}
	if failed > 0 {
		fmt.Printf("Finished with %d failed track(s).\n", failed)
		os.Exit(1)
	}
	fmt.Printf("Complete. Files saved to %s\n", settings.DownloadsPath)
}

// collectRefs gathers every reference from flags and positional arguments.
// Bare IDs take their kind from the flag they came from.
func collectRefs(tracks, album, playlist string, args []string) ([]app.Ref, error) {
	var refs []app.Ref
	add := func(raw string, kind app.RefKind) error {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		if !strings.Contains(raw, ":") && kind != "" {
			raw = string(kind) + ":" + raw
		}
		ref, err := app.ParseRef(raw)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		return nil
	}

	for _, t := range strings.Split(tracks, ",") {
		if err := add(t, app.RefTrack); err != nil {
			return nil, err
		}
	}
	if err := add(album, app.RefAlbum); err != nil {
		return nil, err
	}
	if err := add(playlist, app.RefPlaylist); err != nil {
		return nil, err
	}
	for _, arg := range args {
		if err := add(arg, ""); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func splitRefs(refs []app.Ref) (tracks, collections []app.Ref) {
	for _, ref := range refs {
		if ref.Kind == app.RefTrack {
			tracks = append(tracks, ref)
		} else {
			collections = append(collections, ref)
		}
	}
	return tracks, collections
}

// downloadTracks fetches single tracks concurrently and returns the number
// of failures.
func downloadTracks(ctx context.Context, a *app.App, refs []app.Ref, out *console, log *zap.Logger) int {
	bar := out.bar(int64(len(refs)), "tracks", false)
	var mu sync.Mutex
	failed := 0

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.Settings.MaxConcurrentDownloads))
	for _, ref := range refs {
		g.Go(func() error {
			res, err := a.Fetch(ctx, ref, a.Settings.Quality(), model.BulkIndividual, a.Settings.DownloadsPath, a.Manager.DefaultBulkOptions())
			mu.Lock()
			defer mu.Unlock()
			if err != nil || res.FailedCount > 0 {
				failed++
				if err != nil {
					log.Warn("track failed", zap.String("ref", ref.String()), zap.Error(err))
					_ = bar.Clear()
					fmt.Printf("✗ %s: %v\n", ref, err)
				}
			}
			_ = bar.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	_ = bar.Finish()
	return failed
}

// downloadCollection fetches an album or playlist with a byte progress bar
// per track and returns the number of failures.
func downloadCollection(ctx context.Context, a *app.App, ref app.Ref, out *console) int {
	opts := a.Manager.DefaultBulkOptions()
	var (
		bar     *progressbar.ProgressBar
		current = -1
		total   int
	)
	opts.OnTotalResolved = func(n int) {
		total = n
		fmt.Printf("%s: %d track(s)\n", ref, n)
	}
	opts.OnTrackProgress = func(index int, received, size int64) {
		if index != current {
			current = index
			bar = out.bar(size, fmt.Sprintf("[%d/%d]", index+1, total), true)
		}
		_ = bar.Set64(received)
	}
	opts.OnTrackDownloaded = func(int, int, *model.Track) {
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}
	}

	res, err := a.Fetch(ctx, ref, a.Settings.Quality(), a.Settings.Mode(), a.Settings.DownloadsPath, opts)
	if err != nil && res == nil {
		fmt.Printf("✗ %s: %v\n", ref, err)
		return 1
	}
	for _, f := range res.Failures {
		fmt.Printf("✗ %s: %v\n", f.Track.FullTitle(), f.Err)
	}
	fmt.Printf("%s: %d succeeded, %d failed\n", res.FileName, res.SuccessCount, res.FailedCount)
	if err != nil {
		return max(1, res.FailedCount)
	}
	return res.FailedCount
}

// console prints manager progress events.
type console struct {
	mu      sync.Mutex
	verbose bool
}

func (c *console) event(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !c.verbose {
		return
	}
	// Bars already show per-track success; warnings and errors need a line.
	if event.Level == download.LevelInfo && !c.verbose {
		return
	}

	prefix := ""
	switch event.Level {
	case download.LevelError:
		prefix = "✗ "
	case download.LevelWarning:
		prefix = "! "
	case download.LevelSuccess:
		prefix = "✓ "
	case download.LevelInfo:
		prefix = "› "
	default:
		prefix = "  "
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stderr, "\r"+prefix+event.Message)
}

func (c *console) bar(total int64, description string, bytes bool) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	}
	if bytes {
		opts = append(opts, progressbar.OptionShowBytes(true))
	}
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions64(total, opts...)
}
