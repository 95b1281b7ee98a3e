package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverURL(t *testing.T) {
	assert.Equal(t,
		"https://img.test/ab12/cd34/ef56/640x640.jpg",
		CoverURL("https://img.test/", "ab12-cd34-ef56", 640))
}

func TestDownloadCover_FallsBackToSmallerSize(t *testing.T) {
	jpg := testJPEG()
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/ab/cd/1280x1280.jpg":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html>not found</html>"))
		case "/ab/cd/640x640.jpg":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("not an image"))
		case "/ab/cd/320x320.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpg)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m, _ := newTestManager(testSettings(srv.URL), nil, nil)
	data, err := m.DownloadCover(context.Background(), "ab-cd")
	require.NoError(t, err)
	assert.Equal(t, jpg, data)
	assert.Equal(t, []string{"/ab/cd/1280x1280.jpg", "/ab/cd/640x640.jpg", "/ab/cd/320x320.jpg"}, paths)
}

func TestDownloadCover_ProxyFallback(t *testing.T) {
	jpg := testJPEG()
	var proxied []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/proxy" {
			proxied = append(proxied, r.URL.Query().Get("url"))
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpg)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	settings := testSettings(srv.URL)
	settings.ProxyURL = srv.URL + "/proxy"
	m, _ := newTestManager(settings, nil, nil)

	data, err := m.DownloadCover(context.Background(), "ab-cd")
	require.NoError(t, err)
	assert.Equal(t, jpg, data)
	assert.Equal(t, []string{srv.URL + "/ab/cd/1280x1280.jpg"}, proxied)
}

func TestDownloadCover_NoValidImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":404}`))
	}))
	defer srv.Close()

	m, _ := newTestManager(testSettings(srv.URL), nil, nil)
	_, err := m.DownloadCover(context.Background(), "ab-cd")
	assert.ErrorIs(t, err, ErrNoCover)

	_, err = m.DownloadCover(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCover)
}

func TestImageContentType(t *testing.T) {
	assert.True(t, imageContentType("image/jpeg"))
	assert.True(t, imageContentType("application/octet-stream"))
	assert.False(t, imageContentType("text/html; charset=utf-8"))
	assert.False(t, imageContentType("application/json"))
	assert.False(t, imageContentType(";;"))
}
