package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"go.uber.org/zap"
)

const coverFileName = "cover.jpg"

// BulkOptions control a bulk job.
type BulkOptions struct {
	// OnTotalResolved is called once before the first track.
	OnTotalResolved func(total int)

	// OnTrackDownloaded is called after every track, successful or not.
	OnTrackDownloaded func(completed, total int, track *model.Track)

	// OnTrackProgress reports byte progress of the track in flight.
	OnTrackProgress func(index int, received, total int64)

	// Save receives each file in individual mode. Required for that mode.
	Save func(filename string, data []byte) error

	// DownloadCover adds the collection cover as cover.jpg.
	DownloadCover bool

	// Playlist adds a playlist of the downloaded files.
	Playlist bool

	ConvertToMP3  bool
	EmbedMetadata bool
}

// BulkResult summarizes a bulk job. It is returned even when tracks failed.
type BulkResult struct {
	JobID        string
	Mode         model.BulkMode
	Success      bool
	SuccessCount int
	FailedCount  int
	Total        int
	Failures     []model.BulkFailure

	// FileName names the produced artifact in zip and csv modes.
	FileName string

	// Archive is set in zip mode when at least one track succeeded.
	Archive []byte

	// CSV is set in csv mode.
	CSV string
}

// DefaultBulkOptions derives bulk options from the settings.
func (m *Manager) DefaultBulkOptions() BulkOptions {
	return BulkOptions{
		DownloadCover: m.settings.DownloadCoverSeparately,
		Playlist:      m.settings.CreatePlaylist,
		ConvertToMP3:  m.settings.ConvertAACToMP3,
		EmbedMetadata: m.settings.EmbedMetadata,
	}
}

// DownloadBulk materializes tracks of a collection, one at a time.
//
// Per-track failures are recorded and never abort the job. An error is
// returned only for unusable arguments or cancellation, in which case the
// result still reports what was done.
func (m *Manager) DownloadBulk(ctx context.Context, coll model.Collection, tracks []*model.Track, quality model.Quality, mode model.BulkMode, opts BulkOptions) (*BulkResult, error) {
	if mode == "" {
		mode = model.BulkZip
	}
	if _, ok := model.ParseBulkMode(string(mode)); !ok {
		return nil, fmt.Errorf("unknown bulk mode %q", mode)
	}
	if mode == model.BulkIndividual && opts.Save == nil {
		return nil, errors.New("individual mode requires a save callback")
	}

	job := model.NewBulkJob(mode, len(tracks))
	log := m.logger.With(zap.String("job", job.ID), zap.String("mode", string(mode)), zap.String("collection", coll.Title))
	log.Info("bulk job started", zap.Int("tracks", len(tracks)))
	started := time.Now()

	if opts.OnTotalResolved != nil {
		opts.OnTotalResolved(job.Total)
	}

	var (
		result *BulkResult
		err    error
	)
	switch mode {
	case model.BulkCSV:
		result, err = m.bulkCSV(ctx, job, coll, tracks, quality, opts)
	case model.BulkIndividual:
		result, err = m.bulkIndividual(ctx, job, coll, tracks, quality, opts)
	default:
		result, err = m.bulkZip(ctx, job, coll, tracks, quality, opts)
	}

	result.JobID = job.ID
	result.Mode = mode
	result.Total = job.Total
	result.SuccessCount = job.SuccessCount()
	result.FailedCount = job.FailedCount()
	result.Failures = job.Failures()
	result.Success = err == nil && result.FailedCount == 0

	log.Info("bulk job finished",
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Duration("elapsed", time.Since(started)))
	level := LevelSuccess
	if !result.Success {
		level = LevelWarning
	}
	m.progress(ProgressEvent{
		Message: fmt.Sprintf("Finished %s: %d/%d tracks, %d failed", coll.BaseName(), result.SuccessCount, result.Total, result.FailedCount),
		Level:   level,
	})
	return result, err
}

// trackDone records one finished item and notifies the caller.
func (m *Manager) trackDone(job *model.BulkJob, index int, track *model.Track, err error, opts BulkOptions) {
	var completed int
	if err != nil {
		completed = job.RecordFailure(index, track, err)
		m.progress(ProgressEvent{Message: fmt.Sprintf("Failed %s: %v", track.FullTitle(), err), Level: LevelError})
	} else {
		completed = job.RecordSuccess()
	}
	if opts.OnTrackDownloaded != nil {
		opts.OnTrackDownloaded(completed, job.Total, track)
	}
}

// jobCover fetches the collection cover once per job. nil when not needed
// or unavailable.
func (m *Manager) jobCover(ctx context.Context, coll model.Collection, opts BulkOptions) []byte {
	wantTags := (opts.EmbedMetadata || opts.ConvertToMP3) && m.settings.SaveCoverArtInTags
	if coll.CoverID == "" || !(opts.DownloadCover || wantTags) {
		return nil
	}
	cover, err := m.DownloadCover(ctx, coll.CoverID)
	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error downloading cover for %s: %v", coll.Title, err), Level: LevelWarning})
		return nil
	}
	return cover
}

// downloadEach runs Download for every track in order and hands each
// success to keep. A keep error fails that track.
func (m *Manager) downloadEach(ctx context.Context, job *model.BulkJob, tracks []*model.Track, quality model.Quality, cover []byte, opts BulkOptions,
	keep func(index int, track *model.Track, res *Result) error) error {
	var tagCover []byte
	if opts.EmbedMetadata || opts.ConvertToMP3 {
		tagCover = m.prepareCover(ctx, cover)
	}
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		dlOpts := Options{
			ConvertToMP3:  opts.ConvertToMP3,
			EmbedMetadata: opts.EmbedMetadata,
			Cover:         tagCover,
		}
		if opts.OnTrackProgress != nil {
			index := i
			dlOpts.OnProgress = func(received, total int64) { opts.OnTrackProgress(index, received, total) }
		}

		res, err := m.Download(ctx, track, quality, dlOpts)
		if err == nil {
			err = keep(i, track, res)
		}
		m.trackDone(job, i, track, err, opts)
	}
	return nil
}

func (m *Manager) bulkIndividual(ctx context.Context, job *model.BulkJob, coll model.Collection, tracks []*model.Track, quality model.Quality, opts BulkOptions) (*BulkResult, error) {
	cover := m.jobCover(ctx, coll, opts)
	var entries []audio.PlaylistEntry

	err := m.downloadEach(ctx, job, tracks, quality, cover, opts, func(_ int, track *model.Track, res *Result) error {
		if err := opts.Save(res.Filename, res.Data); err != nil {
			return fmt.Errorf("save %s: %w", res.Filename, err)
		}
		entries = append(entries, audio.EntryFor(track, res.Filename))
		return nil
	})

	if opts.DownloadCover && cover != nil {
		if err := opts.Save(coverFileName, m.folderCover(ctx, cover)); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error saving cover: %v", err), Level: LevelWarning})
		}
	}
	if opts.Playlist && len(entries) > 0 {
		name := m.playlistName(coll)
		if err := opts.Save(name, []byte(m.playlist.CreatePlaylist(coll.BaseName(), entries))); err != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error saving playlist: %v", err), Level: LevelWarning})
		}
	}
	return &BulkResult{}, err
}

func (m *Manager) bulkZip(ctx context.Context, job *model.BulkJob, coll model.Collection, tracks []*model.Track, quality model.Quality, opts BulkOptions) (*BulkResult, error) {
	cover := m.jobCover(ctx, coll, opts)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	names := map[string]bool{}
	var entries []audio.PlaylistEntry

	err := m.downloadEach(ctx, job, tracks, quality, cover, opts, func(_ int, track *model.Track, res *Result) error {
		name := uniqueName(names, res.Filename)
		if err := writeZipEntry(zw, name, res.Data); err != nil {
			return fmt.Errorf("archive %s: %w", name, err)
		}
		names[name] = true
		entries = append(entries, audio.EntryFor(track, name))
		return nil
	})

	result := &BulkResult{FileName: coll.BaseName() + ".zip"}
	if job.SuccessCount() == 0 {
		zw.Close()
		return result, err
	}

	if opts.DownloadCover && cover != nil {
		if werr := writeZipEntry(zw, uniqueName(names, coverFileName), m.folderCover(ctx, cover)); werr != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error adding cover: %v", werr), Level: LevelWarning})
		}
	}
	if opts.Playlist && len(entries) > 0 {
		content := m.playlist.CreatePlaylist(coll.BaseName(), entries)
		if werr := writeZipEntry(zw, uniqueName(names, m.playlistName(coll)), []byte(content)); werr != nil {
			m.progress(ProgressEvent{Message: fmt.Sprintf("Error adding playlist: %v", werr), Level: LevelWarning})
		}
	}
	if cerr := zw.Close(); cerr != nil {
		return result, fmt.Errorf("finalize archive: %w", cerr)
	}
	result.Archive = buf.Bytes()
	return result, err
}

func (m *Manager) bulkCSV(ctx context.Context, job *model.BulkJob, coll model.Collection, tracks []*model.Track, quality model.Quality, opts BulkOptions) (*BulkResult, error) {
	var sb strings.Builder
	sb.WriteString(csvRow(csvHeader...))

	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return &BulkResult{FileName: coll.BaseName() + ".csv", CSV: sb.String()}, err
		}
		desc, err := m.resolver.ResolveStream(ctx, track.ID, quality)
		if err != nil {
			sb.WriteString(csvTrackRow(i+1, track, csvErrorMarker+err.Error()))
		} else {
			sb.WriteString(csvTrackRow(i+1, track, desc.URL))
		}
		m.trackDone(job, i, track, err, opts)
	}
	return &BulkResult{FileName: coll.BaseName() + ".csv", CSV: sb.String()}, nil
}

func (m *Manager) playlistName(coll model.Collection) string {
	return coll.BaseName() + "." + m.playlist.Format().Ext()
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: time.Now()})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// uniqueName appends " (n)" before the extension until name is unused.
func uniqueName(used map[string]bool, name string) string {
	if !used[name] {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !used[candidate] {
			return candidate
		}
	}
}
