package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AndreRH09/download_valet/internal/logctx"
)

// TestRequestID verifies a fresh id is minted and an upstream id wins.
func TestRequestID(t *testing.T) {
	var seen string

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen == "" {
		t.Fatalf("expected a minted request id")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream-1" {
		t.Errorf("request id = %q, want upstream-1", seen)
	}
}

// TestGetRequestID_Missing verifies the empty fallback.
func TestGetRequestID_Missing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty request id, got %q", got)
	}
}

// TestResponseWriter verifies status capture, repeated WriteHeader
// suppression and byte counting.
func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrapResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)

	if _, err := rw.Write([]byte("hello ")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := rw.Write([]byte("world")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if rw.status != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rw.status, http.StatusTeapot)
	}
	if rw.bytesWritten != int64(len("hello world")) {
		t.Errorf("bytesWritten = %d, want %d", rw.bytesWritten, len("hello world"))
	}
}

// TestHTTPLogging_Levels verifies the log level tracks the status code.
func TestHTTPLogging_Levels(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := HTTPLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		req := httptest.NewRequest(http.MethodGet, "/expectations", nil)
		req = req.WithContext(logctx.WithLogger(req.Context(), logger))

		handler.ServeHTTP(httptest.NewRecorder(), req)

		var entry map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("failed to parse log output: %v", err)
		}

		if entry["level"] != tc.level {
			t.Errorf("status %d logged at %v, want %s", tc.status, entry["level"], tc.level)
		}
		if entry["status"] != float64(tc.status) {
			t.Errorf("status field = %v, want %d", entry["status"], tc.status)
		}
	}
}

// TestHTTPMiddleware_NilTelemetry verifies the middleware passes requests
// through when telemetry is absent.
func TestHTTPMiddleware_NilTelemetry(t *testing.T) {
	m := NewHTTPMiddleware(nil)

	called := false
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatalf("inner handler should run without telemetry")
	}
}

// TestInstrument_Disabled verifies the instrumentation helpers run the
// wrapped function even when telemetry is disabled or nil.
func TestInstrument_Disabled(t *testing.T) {
	wantErr := errors.New("boom")

	var tel *Telemetry

	err := tel.InstrumentOperation(context.Background(), "wait", "delivery", func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("nil telemetry should pass the error through, got: %v", err)
	}

	disabled := &Telemetry{}

	ran := false

	if err := disabled.InstrumentDBOperation(context.Background(), "claim_delivery", func(ctx context.Context) error {
		ran = true

		return nil
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !ran {
		t.Fatalf("wrapped function should run on a disabled instance")
	}

	if err := disabled.InstrumentDelivery(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := disabled.InstrumentClientOperation(context.Background(), "discord", "notify", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Record helpers must not panic without instruments.
	disabled.RecordWait("found", time.Second, 3)
	disabled.RecordRelocation("moved", time.Millisecond)
	disabled.RecordDelivery("moved", time.Second)
	disabled.RecordSystemError("curator", "panic")
}
