package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With("component", "index", "population", "pop_e_e").
		Info("built index", "ranges", 400, "direction", "source_to_target")

	pattern := `^\[INFO\]  \d\d:\d\d:\d\d index: built index \| population=pop_e_e ranges=400 direction=source_to_target\n$`
	assert.Regexp(t, pattern, buf.String())
}

func TestCompactHandler_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))

	log.Log(context.Background(), LevelTrace, "t")
	log.Debug("d")
	log.Warn("w")
	log.Error("e", "error", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4, buf.String())
	for i, prefix := range []string{"[TRACE]", "[DEBUG]", "[WARN]", "[ERROR]"} {
		assert.True(t, strings.HasPrefix(lines[i], prefix), "line %d: expected prefix %s, got %q", i, prefix, lines[i])
	}
	assert.True(t, strings.HasSuffix(lines[3], `error="boom"`), "expected quoted error, got %q", lines[3])
}

func TestCompactHandler_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil))

	log.Debug("hidden")
	assert.Zero(t, buf.Len(), "no output below INFO, got %q", buf.String())
}

func TestCompactHandler_Group(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil))

	log.WithGroup("stats").Info("summary", "edges", 8000, "note", "two words")

	assert.Contains(t, buf.String(), `stats.edges=8000 stats.note="two words"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseLevel(%q)", tt.in)
		} else {
			assert.NoError(t, err, "ParseLevel(%q)", tt.in)
		}
		assert.Equal(t, tt.want, got, "ParseLevel(%q)", tt.in)
	}
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, VerbosityLevel(slog.LevelInfo, 1), "-v")
	assert.Equal(t, LevelTrace, VerbosityLevel(slog.LevelInfo, 5), "TRACE is the floor")
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: slog.LevelDebug, Output: &buf})
	defer Configure(Options{Level: slog.LevelInfo})

	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		http.Error(w, "nope", http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/circuit", nil)
	req.Header.Set("X-Request-ID", "0123456789abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "0123456789abcdef", seen, "client request ID in context")
	assert.Equal(t, "0123456789abcdef", rec.Header().Get("X-Request-ID"), "request ID echoed in response")

	out := buf.String()
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "req=01234567")
	assert.Contains(t, out, "status=404")
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rec.Header().Get("X-Request-ID"), 36, "generated uuid")
}
