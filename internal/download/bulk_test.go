package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, archive []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		assert.Equal(t, zip.Store, f.Method, "entries are stored uncompressed")
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}

func TestDownloadBulk_ZipWithOneFailure(t *testing.T) {
	cdn := newCDN(t, nil)
	res := newFakeResolver(cdn.URL)
	res.fail["2"] = true
	m, _ := newTestManager(testSettings(cdn.URL), res, nil)
	album, tracks := testAlbum(5)

	var totals []int
	var completed []int
	result, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkZip, BulkOptions{
		OnTotalResolved:   func(total int) { totals = append(totals, total) },
		OnTrackDownloaded: func(c, total int, _ *model.Track) { completed = append(completed, c) },
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, []int{5}, totals)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, completed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Index)
	assert.Same(t, tracks[2], result.Failures[0].Track)
	assert.NotEmpty(t, result.JobID)
	assert.Equal(t, "Band - LP.zip", result.FileName)

	entries := readZip(t, result.Archive)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"01 Song 1 - Band.flac",
		"02 Song 2 - Band.flac",
		"04 Song 4 - Band.flac",
		"05 Song 5 - Band.flac",
	}, names)
	assert.Equal(t, "audio-3", entries["04 Song 4 - Band.flac"])
}

func TestDownloadBulk_ZipAllFailed(t *testing.T) {
	cdn := newCDN(t, nil)
	res := newFakeResolver(cdn.URL)
	album, tracks := testAlbum(2)
	for _, tr := range tracks {
		res.fail[tr.ID] = true
	}
	m, _ := newTestManager(testSettings(cdn.URL), res, nil)

	result, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkZip, BulkOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Nil(t, result.Archive)
	assert.Equal(t, 2, result.FailedCount)
	assert.Zero(t, result.SuccessCount)
}

func TestDownloadBulk_ZipWithCoverAndPlaylist(t *testing.T) {
	jpg := testJPEG()
	cdn := newCDN(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ab/cd/1280x1280.jpg" {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpg)
			return
		}
		http.NotFound(w, r)
	}))
	m, _ := newTestManager(testSettings(cdn.URL), newFakeResolver(cdn.URL), nil)
	album, tracks := testAlbum(2)

	result, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkZip, BulkOptions{
		DownloadCover: true,
		Playlist:      true,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	entries := readZip(t, result.Archive)
	assert.Len(t, entries, 4)
	assert.Equal(t, string(jpg), entries["cover.jpg"])
	playlist, ok := entries["Band - LP.m3u"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(playlist, "#EXTM3U"))
	assert.Contains(t, playlist, "01 Song 1 - Band.flac")
	assert.Contains(t, playlist, "02 Song 2 - Band.flac")
}

func TestDownloadBulk_ZipDeduplicatesNames(t *testing.T) {
	cdn := newCDN(t, nil)
	m, _ := newTestManager(testSettings(cdn.URL), newFakeResolver(cdn.URL), nil)
	album, tracks := testAlbum(2)
	tracks[1].Title = tracks[0].Title
	tracks[1].TrackNumber = tracks[0].TrackNumber

	result, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkZip, BulkOptions{})
	require.NoError(t, err)

	entries := readZip(t, result.Archive)
	assert.Contains(t, entries, "01 Song 1 - Band.flac")
	assert.Contains(t, entries, "01 Song 1 - Band (2).flac")
}

func TestDownloadBulk_Individual(t *testing.T) {
	cdn := newCDN(t, nil)
	m, _ := newTestManager(testSettings(cdn.URL), newFakeResolver(cdn.URL), nil)
	album, tracks := testAlbum(3)

	saved := map[string]string{}
	result, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkIndividual, BulkOptions{
		Playlist: true,
		Save: func(name string, data []byte) error {
			if name == "02 Song 2 - Band.flac" {
				return errors.New("disk full")
			}
			saved[name] = string(data)
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Contains(t, result.Failures[0].Err.Error(), "disk full")
	assert.Equal(t, "audio-0", saved["01 Song 1 - Band.flac"])
	assert.Equal(t, "audio-2", saved["03 Song 3 - Band.flac"])
	assert.Contains(t, saved, "Band - LP.m3u")
	assert.NotContains(t, saved["Band - LP.m3u"], "Song 2")
}

func TestDownloadBulk_IndividualRequiresSave(t *testing.T) {
	m, _ := newTestManager(testSettings(""), newFakeResolver(""), nil)
	album, tracks := testAlbum(1)

	_, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkIndividual, BulkOptions{})
	assert.Error(t, err)
}

func TestDownloadBulk_UnknownMode(t *testing.T) {
	m, _ := newTestManager(testSettings(""), newFakeResolver(""), nil)
	album, tracks := testAlbum(1)

	_, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, "tar", BulkOptions{})
	assert.Error(t, err)
}

func TestDownloadBulk_CSV(t *testing.T) {
	res := newFakeResolver("https://cdn.test")
	res.fail["1"] = true
	m, _ := newTestManager(testSettings(""), res, nil)
	album, tracks := testAlbum(3)
	tracks[0].Title = `a,b"c`
	tracks[2].Title = "x\ny"

	var completed []int
	result, err := m.DownloadBulk(context.Background(), album.Collection(), tracks, model.QualityLossless, model.BulkCSV, BulkOptions{
		OnTrackDownloaded: func(c, _ int, _ *model.Track) { completed = append(completed, c) },
	})
	require.NoError(t, err)
	assert.Equal(t, "Band - LP.csv", result.FileName)
	assert.Equal(t, []int{1, 2, 3}, completed)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)

	lines := strings.Split(strings.TrimSuffix(result.CSV, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "#,Title,Artist,Album,Duration,URL", lines[0])
	assert.Equal(t, `1,"a,b""c",Band,LP,1:00,https://cdn.test/stream/0`, lines[1])
	assert.Equal(t, "2,Song 2,Band,LP,1:01,ERROR: manifest for track 1 unresolvable", lines[2])
	assert.Equal(t, "3,x y,Band,LP,1:02,https://cdn.test/stream/2", lines[3])
}

func TestDownloadBulk_Cancelled(t *testing.T) {
	cdn := newCDN(t, nil)
	m, _ := newTestManager(testSettings(cdn.URL), newFakeResolver(cdn.URL), nil)
	album, tracks := testAlbum(3)
	ctx, cancel := context.WithCancel(context.Background())

	result, err := m.DownloadBulk(ctx, album.Collection(), tracks, model.QualityLossless, model.BulkZip, BulkOptions{
		OnTrackDownloaded: func(c, _ int, _ *model.Track) {
			if c == 1 {
				cancel()
			}
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.SuccessCount)
	assert.False(t, result.Success)
	assert.NotNil(t, result.Archive)
}

func TestUniqueName(t *testing.T) {
	used := map[string]bool{"a.flac": true, "a (2).flac": true}
	assert.Equal(t, "b.flac", uniqueName(used, "b.flac"))
	assert.Equal(t, "a (3).flac", uniqueName(used, "a.flac"))
}
