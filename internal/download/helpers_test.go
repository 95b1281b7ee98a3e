package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jsildura/cloudstream-sub000/internal/audio"
	"github.com/jsildura/cloudstream-sub000/internal/config"
	xhttp "github.com/jsildura/cloudstream-sub000/internal/http"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"go.uber.org/zap"
)

// fakeResolver points every track at the test CDN.
type fakeResolver struct {
	mu        sync.Mutex
	base      string
	quality   model.Quality
	fail      map[string]bool
	failTimes map[string]int
	calls     map[string]int
}

func newFakeResolver(base string) *fakeResolver {
	return &fakeResolver{base: base, fail: map[string]bool{}, failTimes: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeResolver) ResolveStream(ctx context.Context, id string, q model.Quality) (*model.StreamDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if f.fail[id] {
		return nil, fmt.Errorf("manifest for track %s unresolvable", id)
	}
	if f.calls[id] <= f.failTimes[id] {
		return nil, errors.New("temporary failure")
	}
	served := f.quality
	if served == "" {
		served = q
	}
	return &model.StreamDescriptor{URL: f.base + "/stream/" + id, Quality: served}, nil
}

// newCDN serves /stream/{id} as "audio-{id}", with /stream/bad-* failing.
func newCDN(t *testing.T, extra http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := strings.CutPrefix(r.URL.Path, "/stream/"); ok {
			if strings.HasPrefix(id, "bad") {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			body := []byte("audio-" + id)
			w.Header().Set("Content-Length", fmt.Sprint(len(body)))
			_, _ = w.Write(body)
			return
		}
		if extra != nil {
			extra.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
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

// fakeEngine records engine calls and can be told to fail.
type fakeEngine struct {
	available  bool
	embedErr   error
	convertErr error
	embeds     int
	converts   int
	lastCover  []byte
}

func (f *fakeEngine) Probe(context.Context) bool { return f.available }

func (f *fakeEngine) EmbedMetadata(_ context.Context, data []byte, md audio.Metadata, cover []byte) ([]byte, error) {
	f.embeds++
	f.lastCover = cover
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return append([]byte("tagged:"), data...), nil
}

func (f *fakeEngine) ConvertToMP3(_ context.Context, data []byte, md audio.Metadata, cover []byte) ([]byte, error) {
	f.converts++
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	return append([]byte("mp3:"), data...), nil
}

func testSettings(imageHost string) *config.Settings {
	s := config.DefaultSettings()
	s.ImageHost = imageHost
	s.ProxyURL = ""
	return s
}

func newTestManager(settings *config.Settings, res StreamResolver, eng Transcoder) (*Manager, *sleepRecorder) {
	rec := &sleepRecorder{}
	m := NewManager(settings, Deps{
		Resolver: res,
		Client:   xhttp.NewClient(5*time.Second, "test"),
		Engine:   eng,
		Logger:   zap.NewNop(),
	}, nil, WithSleep(rec.sleep))
	return m, rec
}

func testAlbum(n int) (*model.Album, []*model.Track) {
	album := &model.Album{ID: "100", Title: "LP", CoverID: "ab-cd", Artists: []model.Artist{{ID: "1", Name: "Band"}}, TrackCount: n}
	tracks := make([]*model.Track, n)
	for i := range tracks {
		tracks[i] = &model.Track{
			ID:          fmt.Sprint(i),
			Title:       fmt.Sprintf("Song %d", i+1),
			TrackNumber: i + 1,
			Duration:    60 + i,
			Album:       album,
		}
	}
	album.Tracks = tracks
	return album, tracks
}

func testJPEG() []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
	return buf.Bytes()
}
