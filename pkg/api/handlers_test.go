package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pmpwsk/cocoding/pkg/store"
)

// pingStore stubs the store's health probe; the other methods are unused by
// the handlers under test.
type pingStore struct {
	store.Store
	err error
}

func (s *pingStore) Ping(context.Context) error { return s.err }

func TestLiveness_ReportsHealthy(t *testing.T) {
	h := newHandlers(nil, nil, nil)
	rec := httptest.NewRecorder()

	h.liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "healthy" || body.Reason != "" {
		t.Errorf("body = %+v, want healthy with no reason", body)
	}
}

func TestReadiness_ReflectsDatabaseHealth(t *testing.T) {
	rel := &pingStore{}
	h := newHandlers(nil, nil, rel)

	rec := httptest.NewRecorder()
	h.readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rel.err = errors.New("connection refused")
	rec = httptest.NewRecorder()
	h.readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "unhealthy" || body.Reason == "" {
		t.Errorf("body = %+v, want unhealthy with a reason", body)
	}
}

func TestLogin_RejectsMalformedBody(t *testing.T) {
	h := newHandlers(nil, nil, nil)
	rec := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	h.login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error == "" {
		t.Error("error body missing the error message")
	}
}
