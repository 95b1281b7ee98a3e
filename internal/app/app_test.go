package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jsildura/cloudstream-sub000/internal/config"
	"github.com/jsildura/cloudstream-sub000/internal/download"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const albumPayload = `{"version":"2.0","data":{
	"id":77,"title":"LP","cover":"aa-bb","numberOfTracks":2,
	"artist":{"id":5,"name":"Band"},
	"items":[
		{"type":"track","item":{"id":1,"title":"One","duration":61,"trackNumber":1,"album":{"id":77,"title":"LP"}}},
		{"type":"track","item":{"id":2,"title":"Two","duration":62,"trackNumber":2,"album":{"id":77}}}
	]}}`

// newMirror serves album, playback and media from one server.
func newMirror(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/album/":
			_, _ = w.Write([]byte(albumPayload))
		case r.URL.Path == "/info/":
			_, _ = w.Write([]byte(`{"data":{"id":3,"title":"Solo","duration":125,"trackNumber":4,"artists":[{"id":1,"name":"A"}],"album":{"id":8,"title":"Album"}}}`))
		case r.URL.Path == "/track/":
			id := r.URL.Query().Get("id")
			manifest := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf(`{"mimeType":"audio/flac","urls":[%q]}`, srv.URL+"/media/"+id)))
			fmt.Fprintf(w, `{"data":{"trackId":%s,"assetPresentation":"FULL","audioQuality":"LOSSLESS","manifest":%q}}`, id, manifest)
		case strings.HasPrefix(r.URL.Path, "/media/"):
			_, _ = w.Write([]byte("flac-" + strings.TrimPrefix(r.URL.Path, "/media/")))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSettings(mirror string) *config.Settings {
	s := config.DefaultSettings()
	s.Targets = []config.TargetSettings{{Name: "local", BaseURL: mirror, Weight: 1, Category: "test"}}
	s.ImageHost = mirror + "/images"
	s.EmbedMetadata = false
	s.RequestTimeout = 5
	return s
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	s := config.DefaultSettings()
	s.Targets = nil
	_, err := New(s, nil, nil)
	assert.Error(t, err)
}

func TestApp_AlbumToZip(t *testing.T) {
	mirror := newMirror(t)
	a, err := New(testSettings(mirror.URL), zap.NewNop(), nil,
		WithManagerOptions(download.WithSleep(func(context.Context, time.Duration) error { return nil })))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	coll, tracks, err := a.Collection(ctx, model.CollectionAlbum, "77")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Band - LP", coll.BaseName())

	res, err := a.Manager.DownloadBulk(ctx, coll, tracks, model.QualityLossless, model.BulkZip, download.BulkOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SuccessCount)
	assert.NotEmpty(t, res.Archive)
}

func TestApp_AlbumToCSV(t *testing.T) {
	mirror := newMirror(t)
	a, err := New(testSettings(mirror.URL), nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	coll, tracks, err := a.Collection(ctx, model.CollectionAlbum, "77")
	require.NoError(t, err)

	res, err := a.Manager.DownloadBulk(ctx, coll, tracks, model.QualityLossless, model.BulkCSV, download.BulkOptions{})
	require.NoError(t, err)
	assert.Contains(t, res.CSV, "1,One,Band,LP,1:01,"+mirror.URL+"/media/1\n")
	assert.Contains(t, res.CSV, "2,Two,Band,LP,1:02,"+mirror.URL+"/media/2\n")
}

func TestApp_ServerExportsAlbum(t *testing.T) {
	mirror := newMirror(t)
	s := testSettings(mirror.URL)
	s.ServerMode = "test"
	a, err := New(s, nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/albums/77/export?mode=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "#,Title,Artist,Album,Duration,URL\n"))
	assert.Equal(t, "2", w.Header().Get("X-Tracks-Succeeded"))
}

func TestApp_ServerProxyDefaultsToMirrorHosts(t *testing.T) {
	mirror := newMirror(t)
	s := testSettings(mirror.URL)
	s.ServerMode = "test"
	a, err := New(s, nil, nil)
	require.NoError(t, err)
	h := a.Server().Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/proxy?url="+url.QueryEscape(mirror.URL+"/media/5"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flac-5", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/proxy?url="+url.QueryEscape("https://elsewhere.example/x"), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestApp_FetchTrackIgnoresMode(t *testing.T) {
	mirror := newMirror(t)
	a, err := New(testSettings(mirror.URL), nil, nil)
	require.NoError(t, err)
	dir := t.TempDir()

	res, err := a.Fetch(context.Background(), Ref{Kind: RefTrack, ID: "3"}, model.QualityLossless, model.BulkZip, dir, download.BulkOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.BulkIndividual, res.Mode)
	assert.Equal(t, "flac-3", readFile(t, filepath.Join(dir, "04 Solo - A.flac")))
}

func TestApp_FetchAlbumIndividually(t *testing.T) {
	mirror := newMirror(t)
	a, err := New(testSettings(mirror.URL), nil, nil)
	require.NoError(t, err)
	dir := t.TempDir()

	res, err := a.Fetch(context.Background(), Ref{Kind: RefAlbum, ID: "77"}, model.QualityLossless, model.BulkIndividual, dir, download.BulkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, "flac-1", readFile(t, filepath.Join(dir, "Band - LP", "01 One - Band.flac")))
	assert.Equal(t, "flac-2", readFile(t, filepath.Join(dir, "Band - LP", "02 Two - Band.flac")))
}

func TestApp_FetchZipSavesArchive(t *testing.T) {
	mirror := newMirror(t)
	a, err := New(testSettings(mirror.URL), nil, nil)
	require.NoError(t, err)
	dir := t.TempDir()

	_, err = a.Fetch(context.Background(), Ref{Kind: RefAlbum, ID: "77"}, model.QualityLossless, model.BulkZip, dir, download.BulkOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(readFile(t, filepath.Join(dir, "Band - LP.zip")), "PK"))
}

func TestApp_UnknownCollectionKind(t *testing.T) {
	a, err := New(testSettings("http://127.0.0.1:1"), nil, nil)
	require.NoError(t, err)
	_, _, err = a.Collection(context.Background(), "artist", "1")
	assert.Error(t, err)
}
