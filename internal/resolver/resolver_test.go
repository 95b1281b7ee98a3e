package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	xhttp "github.com/jsildura/cloudstream-sub000/internal/http"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMirror answers Execute from a handler without any network.
type fakeMirror struct {
	mu        sync.Mutex
	queries   []url.Values
	paths     []string
	preferred []model.Quality
	handle    func(path string, q url.Values) (int, http.Header, string)
}

func (f *fakeMirror) Endpoint(path string, q url.Values) string {
	return "https://mirror.test" + path + "?" + q.Encode()
}

func (f *fakeMirror) Execute(ctx context.Context, req router.Request, opts router.Options) (*router.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.paths = append(f.paths, u.Path)
	f.queries = append(f.queries, u.Query())
	f.preferred = append(f.preferred, opts.PreferredQuality)
	f.mu.Unlock()

	status, header, body := f.handle(u.Path, u.Query())
	return &router.Response{StatusCode: status, Header: header, Body: []byte(body), URL: req.URL, Target: "fake"}, nil
}

func (f *fakeMirror) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func (f *fakeMirror) qualities() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, q := range f.queries {
		out = append(out, q.Get("quality"))
	}
	return out
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func manifestFor(streamURL string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf(`{"mimeType":"audio/flac","urls":[%q]}`, streamURL)))
}

func playbackBody(tag, streamURL string) string {
	return fmt.Sprintf(`{"version":"2.0","data":{"trackId":1,"assetPresentation":"FULL","audioQuality":%q,"bitDepth":16,"sampleRate":44100,"trackReplayGain":-7.5,"manifest":%q}}`,
		tag, manifestFor(streamURL))
}

func newTestResolver(m *fakeMirror) (*Resolver, *sleepRecorder) {
	rec := &sleepRecorder{}
	return New(m, zap.NewNop(), WithSleep(rec.sleep)), rec
}

func TestResolveStream_HiResFallsBackToLossless(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, playbackBody("LOSSLESS", "https://cdn.test/1.flac")
	}}
	r, rec := newTestResolver(m)

	desc, err := r.ResolveStream(context.Background(), "1", model.QualityHiResLossless)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/1.flac", desc.URL)
	assert.Equal(t, model.QualityLossless, desc.Quality)
	assert.Equal(t, []string{"HI_RES_LOSSLESS", "LOSSLESS"}, m.qualities())
	// Fallback mirrors must not push the downgraded lookup back up.
	assert.Equal(t, []model.Quality{model.QualityHiResLossless, model.QualityLossless}, m.preferred)
	assert.Empty(t, rec.delays)
}

func TestResolveStream_HiResConfirmed(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, playbackBody("HI_RES_LOSSLESS", "https://cdn.test/1-24bit.flac")
	}}
	r, _ := newTestResolver(m)

	desc, err := r.ResolveStream(context.Background(), "1", model.QualityHiResLossless)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/1-24bit.flac", desc.URL)
	assert.Equal(t, model.QualityHiResLossless, desc.Quality)
	assert.Equal(t, 16, desc.BitDepth)
	assert.Equal(t, 44100, desc.SampleRate)
	require.NotNil(t, desc.ReplayGain)
	assert.InDelta(t, -7.5, *desc.ReplayGain, 1e-9)
	assert.Equal(t, 1, m.calls())
}

func TestResolveStream_RetriesWithGrowingDelay(t *testing.T) {
	n := 0
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		n++
		if n < 3 {
			return http.StatusOK, nil, `{"data":{"assetPresentation":"FULL","audioQuality":"LOSSLESS"}}`
		}
		return http.StatusOK, nil, playbackBody("LOSSLESS", "https://cdn.test/ok.flac")
	}}
	r, rec := newTestResolver(m)

	desc, err := r.ResolveStream(context.Background(), "1", model.QualityLossless)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/ok.flac", desc.URL)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, rec.delays)
}

func TestResolveStream_ExhaustedManifest(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		body := `{"data":{"assetPresentation":"FULL","audioQuality":"LOSSLESS","manifest":"` +
			base64.StdEncoding.EncodeToString([]byte(`{"urls":[]}`)) + `"}}`
		return http.StatusOK, nil, body
	}}
	r, rec := newTestResolver(m)

	_, err := r.ResolveStream(context.Background(), "42", model.QualityLossless)
	var mu *ManifestUnresolvableError
	require.ErrorAs(t, err, &mu)
	assert.Equal(t, "42", mu.TrackID)
	assert.Equal(t, 3, m.calls())
	assert.Len(t, rec.delays, 2)
}

func TestResolveStream_PreviewIsNotAccepted(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"data":{"assetPresentation":"PREVIEW","audioQuality":"LOSSLESS","manifest":"` + manifestFor("https://cdn.test/p.flac") + `"}}`
	}}
	r, _ := newTestResolver(m)

	_, err := r.ResolveStream(context.Background(), "1", model.QualityLossless)
	assert.ErrorContains(t, err, "preview")
}

func TestResolveStream_RateLimitIsImmediate(t *testing.T) {
	for _, quality := range []model.Quality{model.QualityHiResLossless, model.QualityLossless} {
		t.Run(string(quality), func(t *testing.T) {
			m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
				return http.StatusTooManyRequests, http.Header{"Retry-After": {"7"}}, `{}`
			}}
			r, rec := newTestResolver(m)

			_, err := r.ResolveStream(context.Background(), "1", quality)
			var rl *RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, 7*time.Second, rl.RetryAfter)
			assert.Equal(t, 1, m.calls())
			assert.Empty(t, rec.delays)
		})
	}
}

func TestResolveStream_DirectURLForLosslessOnly(t *testing.T) {
	body := `[{"trackId":1,"assetPresentation":"FULL","audioQuality":"LOSSLESS","manifest":"` +
		manifestFor("https://cdn.test/manifest.m4a") + `"},{"OriginalTrackUrl":"https://cdn.test/original.flac"}]`
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, body
	}}
	r, _ := newTestResolver(m)

	desc, err := r.ResolveStream(context.Background(), "1", model.QualityLossless)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/original.flac", desc.URL)

	desc, err = r.ResolveStream(context.Background(), "1", model.QualityHigh)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/manifest.m4a", desc.URL)
}

func TestResolveStream_UpstreamStatus(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusBadGateway, nil, ``
	}}
	r, _ := newTestResolver(m)

	_, err := r.ResolveStream(context.Background(), "1", model.QualityLossless)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
}

func TestResolveStream_ThroughRouter(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/track/" || r.URL.Query().Get("id") != "9" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(playbackBody("LOSSLESS", "https://cdn.test/9.flac")))
	}))
	defer live.Close()

	rt := router.New(router.Config{Targets: []model.Target{
		{Name: "dead", BaseURL: dead.URL, Weight: 50},
		{Name: "live", BaseURL: live.URL, Weight: 50},
	}}, xhttp.NewClient(5*time.Second, ""), zap.NewNop())
	r := New(rt, zap.NewNop())

	desc, err := r.ResolveStream(context.Background(), "9", model.QualityLossless)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/9.flac", desc.URL)
}

func TestSearch(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"version":"2.0","data":{
			"albums":{"items":[{"id":7,"title":"Other","cover":"x"}]},
			"tracks":{"limit":25,"items":[
				{"id":1,"title":"One","duration":61,"trackNumber":1,"artists":[{"id":5,"name":"Band"}],"album":{"id":7,"title":"LP","cover":"aa-bb"}},
				{"id":2,"title":"Two","duration":62,"trackNumber":2,"artist":{"id":5,"name":"Band"},"album":{"id":7}},
				{"id":"bad"}
			]}}}`
	}}
	r, _ := newTestResolver(m)

	res, err := r.Search(context.Background(), "hello", CategoryTracks)
	require.NoError(t, err)
	assert.Equal(t, "hello", m.queries[0].Get("s"))
	assert.Equal(t, "/search/", m.paths[0])

	require.Len(t, res.Tracks, 2)
	assert.Equal(t, "One", res.Tracks[0].Title)
	assert.Equal(t, "Band", res.Tracks[1].ArtistNames())
	assert.Same(t, res.Tracks[0].Album, res.Tracks[1].Album)
	assert.Equal(t, "LP", res.Tracks[1].Album.Title)
	assert.Empty(t, res.Albums)
}

func TestSearch_UnknownCategory(t *testing.T) {
	r, _ := newTestResolver(&fakeMirror{})
	_, err := r.Search(context.Background(), "x", Category("videos"))
	assert.Error(t, err)
}

func TestAlbum_TracksShareAlbum(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"version":"2.0","data":{
			"id":77,"title":"LP","cover":"aa-bb","numberOfTracks":2,"releaseDate":"2013-05-17",
			"artist":{"id":5,"name":"Band"},
			"items":[
				{"type":"track","item":{"id":1,"title":"One","duration":61,"trackNumber":1,"album":{"id":77,"title":"LP"}}},
				{"type":"track","item":{"id":2,"title":"Two","duration":62,"trackNumber":2,"album":{"id":77}}}
			]}}`
	}}
	r, _ := newTestResolver(m)

	album, err := r.Album(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, "77", m.queries[0].Get("id"))
	assert.Equal(t, "LP", album.Title)
	assert.Equal(t, "aa-bb", album.CoverID)
	assert.Equal(t, 2013, album.ReleaseDate.Year())
	require.Len(t, album.Tracks, 2)
	for _, tr := range album.Tracks {
		assert.Same(t, album, tr.Album)
	}
}

func TestAlbum_NotFound(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"data":{}}`
	}}
	r, _ := newTestResolver(m)

	_, err := r.Album(context.Background(), "1")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestTrack(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"data":{"id":3,"title":"Solo","version":"Live","duration":125,"trackNumber":4,"isrc":"USX1","artists":[{"id":1,"name":"A"},{"id":2,"name":"B"}],"album":{"id":8,"title":"Album"}}}`
	}}
	r, _ := newTestResolver(m)

	tr, err := r.Track(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "/info/", m.paths[0])
	assert.Equal(t, "Solo (Live)", tr.FullTitle())
	assert.Equal(t, "A, B", tr.ArtistNames())
	assert.Equal(t, "2:05", tr.FormattedDuration())
	assert.Equal(t, "Album", tr.AlbumTitle())
}

func TestPlaylist(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"playlist":{"uuid":"u-1","title":"Mix","squareImage":"sq-1","creator":{"name":"me"}},
			"items":[{"item":{"id":1,"title":"One","duration":61,"trackNumber":1,"album":{"id":7,"title":"LP"}}}]}`
	}}
	r, _ := newTestResolver(m)

	p, err := r.Playlist(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Mix", p.Title)
	assert.Equal(t, "sq-1", p.CoverID)
	assert.Equal(t, "me", p.Creator)
	require.Len(t, p.Tracks, 1)
	assert.Equal(t, 1, p.TrackCount)
}

func TestArtist(t *testing.T) {
	m := &fakeMirror{handle: func(path string, q url.Values) (int, http.Header, string) {
		return http.StatusOK, nil, `{"artist":{"id":5,"name":"Band","picture":"p"},
			"rows":[{"modules":[
				{"pagedList":{"items":[{"id":10,"title":"LP","cover":"c"},{"id":11,"title":"EP","numberOfTracks":4}]}},
				{"pagedList":{"items":[{"id":1,"title":"Hit","duration":180,"trackNumber":1,"artists":[{"id":5,"name":"Band"}],"album":{"id":10,"title":"LP"}}]}}
			]}]}`
	}}
	r, _ := newTestResolver(m)

	d, err := r.Artist(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "5", m.queries[0].Get("f"))
	assert.Equal(t, model.Artist{ID: "5", Name: "Band"}, d.Artist)
	require.Len(t, d.Albums, 2)
	require.Len(t, d.Tracks, 1)
	assert.Same(t, d.Albums[0], d.Tracks[0].Album)
}
