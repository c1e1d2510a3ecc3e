package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/sandwich-bot/internal/logger"
)

func TestHealthReportsDegradedCheck(t *testing.T) {
	s := NewServer(0, "test", logger.NewNop())
	s.RegisterCheck("chain.blocks", func(context.Context) (bool, string) { return true, "connected" })
	s.RegisterCheck("strategy", func(context.Context) (bool, string) { return false, "bootstrapping" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body Status
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Version != "test" {
		t.Errorf("body = %+v", body)
	}
	if c := body.Checks["strategy"]; c.Healthy || c.Message != "bootstrapping" {
		t.Errorf("strategy check = %+v", c)
	}
}

func TestReadyAndLive(t *testing.T) {
	s := NewServer(0, "test", logger.NewNop())
	s.RegisterCheck("ok", func(context.Context) (bool, string) { return true, "" })

	for path, want := range map[string]string{"/ready": "ready", "/live": "alive"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Errorf("%s = %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
