package health

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/swap-quoter/internal/logger"
)

func newTestServer(checks map[string]CheckFunc) *httptest.Server {
	s := NewServer(0, "v1.2.3", logger.New(io.Discard, logger.LevelError, "test", nil))
	for name, fn := range checks {
		s.RegisterCheck(name, fn)
	}
	return httptest.NewServer(s.Handler())
}

func healthy(context.Context) (bool, string)   { return true, "ok" }
func unhealthy(context.Context) (bool, string) { return false, "connection refused" }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantCode   int
		wantStatus string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all healthy", map[string]CheckFunc{"rpc:1": healthy, "redis": healthy}, http.StatusOK, "ok"},
		{"one failing", map[string]CheckFunc{"rpc:1": healthy, "redis": unhealthy}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(tt.checks)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/health")
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			var st Status
			if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
				t.Fatal(err)
			}
			if st.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", st.Status, tt.wantStatus)
			}
			if st.Version != "v1.2.3" {
				t.Errorf("version = %q", st.Version)
			}
			if len(st.Checks) != len(tt.checks) {
				t.Errorf("got %d checks, want %d", len(st.Checks), len(tt.checks))
			}
		})
	}
}

func TestReadyAndLive(t *testing.T) {
	srv := newTestServer(map[string]CheckFunc{"redis": unhealthy})
	defer srv.Close()

	for path, want := range map[string]int{
		"/ready": http.StatusServiceUnavailable,
		"/live":  http.StatusOK,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: status code = %d, want %d", path, resp.StatusCode, want)
		}
	}
}
