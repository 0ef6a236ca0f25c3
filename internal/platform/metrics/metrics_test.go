package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestRequestMiddleware(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/current-url/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/current-url/a", "/current-url/b", "/healthz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m, nil)
	for _, want := range []string{
		"relay_requests_total 3",
		"relay_errors_total 2",
		`relay_request_duration_seconds_count{route="/current-url/{session_id}",status="4xx"} 2`,
		`relay_request_duration_seconds_count{route="/healthz",status="2xx"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_domain_counters(t *testing.T) {
	m := New()
	m.IncControlAction("skip", false)
	m.IncResolutions("audio", "redirect")
	m.AddProxiedBytes(2048)
	m.AddProxiedBytes(0)
	m.AddSessionsEvicted(3)

	out := scrape(t, m, func() { m.SetActiveSessions(7) })
	for _, want := range []string{
		`relay_control_actions_total{accepted="false",action="skip"} 1`,
		`relay_resolutions_total{mode="audio",outcome="redirect"} 1`,
		"relay_proxied_bytes_total 2048",
		"relay_sessions_evicted_total 3",
		"relay_active_sessions 7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
