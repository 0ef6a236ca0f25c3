package media

import (
	"bytes"
	"mime"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDelivery() *Delivery {
	return NewDelivery(DeliveryOptions{
		HeaderTimeout:  time.Second,
		IdleTimeout:    time.Second,
		FilenameSuffix: " - relay",
	})
}

func audioResolution(url string, length int64) Resolution {
	return Resolution{
		SourceURL: "https://example.com/watch",
		Title:     "Night Drive (Remix)",
		Mode:      ModeAudio,
		Variant:   Variant{Role: RoleAudioOnly, Quality: 160, URL: url, ContentLength: length},
	}
}

func TestDelivery_Redirect(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/resolve", nil)
	rec := httptest.NewRecorder()

	newDelivery().Redirect(rec, req, audioResolution("https://cdn.example/a", 0))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://cdn.example/a", rec.Header().Get("Location"))
}

func TestDelivery_Stream(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*copyBufferSize+17)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/resolve", nil)
	rec := httptest.NewRecorder()

	n, err := newDelivery().Stream(rec, req, audioResolution(upstream.URL, int64(len(payload))))
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, strconv.Itoa(len(payload)), rec.Header().Get("Content-Length"))
	assert.True(t, rec.Flushed)

	disp, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disp)
	assert.Equal(t, "Night Drive Remix - relay.mp3", params["filename"])
}

func TestDelivery_Stream_unknown_length(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("abc"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	_, err := newDelivery().Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), audioResolution(upstream.URL, 0))
	require.NoError(t, err)

	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Equal(t, "abc", rec.Body.String())
}

func TestDelivery_Stream_upstream_status(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	n, err := newDelivery().Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), audioResolution(upstream.URL, 0))

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Zero(t, n)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
	assert.Zero(t, rec.Body.Len())
}

func TestDelivery_Stream_truncated(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	n, err := newDelivery().Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), audioResolution(upstream.URL, 100))

	assert.Error(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestDelivery_Stream_idle_timeout(t *testing.T) {
	done := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("head"))
		w.(http.Flusher).Flush()
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(done)

	d := NewDelivery(DeliveryOptions{HeaderTimeout: time.Second, IdleTimeout: 50 * time.Millisecond})
	rec := httptest.NewRecorder()

	start := time.Now()
	n, err := d.Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), audioResolution(upstream.URL, 0))

	assert.Error(t, err)
	assert.Equal(t, int64(4), n)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// slowWriter stalls on its first write, like a client on a congested link.
type slowWriter struct {
	*httptest.ResponseRecorder
	delay   time.Duration
	stalled bool
}

func (w *slowWriter) Write(p []byte) (int, error) {
	if !w.stalled {
		w.stalled = true
		time.Sleep(w.delay)
	}
	return w.ResponseRecorder.Write(p)
}

func TestDelivery_Stream_slow_client_is_not_idle(t *testing.T) {
	payload := bytes.Repeat([]byte("y"), 256*1024)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer upstream.Close()

	d := NewDelivery(DeliveryOptions{HeaderTimeout: time.Second, IdleTimeout: 100 * time.Millisecond})
	w := &slowWriter{ResponseRecorder: httptest.NewRecorder(), delay: 300 * time.Millisecond}

	n, err := d.Stream(w, httptest.NewRequest(http.MethodGet, "/", nil), audioResolution(upstream.URL, int64(len(payload))))
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, len(payload), w.Body.Len())
}

func TestDelivery_Stream_stale_content_length(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	n, err := newDelivery().Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), audioResolution(upstream.URL, 100))
	require.NoError(t, err)

	assert.Equal(t, int64(10), n)
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestContentLength(t *testing.T) {
	tests := []struct {
		name                 string
		advertised, upstream int64
		want                 int64
	}{
		{"agree", 100, 100, 100},
		{"upstream_differs", 100, 10, 10},
		{"upstream_unknown", 100, -1, 100},
		{"advertised_unknown", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, contentLength(tt.advertised, tt.upstream))
		})
	}
}
