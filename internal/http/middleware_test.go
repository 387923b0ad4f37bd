package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("assigns a request id and logs the status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))

		var seenID string
		var scoped *slog.Logger
		handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenID, _ = RequestIDFromContext(r.Context())
			scoped = LoggerFromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

		if seenID == "" || rec.Header().Get("X-Request-ID") != seenID {
			t.Fatalf("expected request id header to match context, got %q and %q", rec.Header().Get("X-Request-ID"), seenID)
		}
		if scoped == nil {
			t.Fatal("expected request scoped logger in context")
		}

		var entry map[string]any
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry["msg"] != "request completed" || entry["status"] != float64(http.StatusTeapot) || entry["request_id"] != seenID {
			t.Fatalf("unexpected completion entry %v", entry)
		}
		if entry["path"] != "/session" || entry["method"] != http.MethodGet {
			t.Fatalf("unexpected request attributes %v", entry)
		}
	})

	t.Run("keeps an incoming request id", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "upstream-42" {
			t.Fatalf("expected upstream id, got %q", got)
		}
	})
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	handler := Recoverer(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ErrorCode != "INTERNAL" || body.Error == "" {
		t.Fatalf("unexpected body %+v", body)
	}
}
