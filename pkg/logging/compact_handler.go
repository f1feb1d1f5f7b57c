package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"
)

// CompactHandler formats logs in a compact, readable format for console output
// Format: [LEVEL] HH:MM:SS component: message | key=value key=value
type CompactHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	out    io.Writer
	attrs  []slog.Attr // Pre-rendered keys, including the group prefix
	prefix string      // Group prefix applied to record attributes
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  w,
	}
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)

	switch {
	case r.Level < slog.LevelDebug:
		buf = append(buf, "[TRACE] "...)
	case r.Level < slog.LevelInfo:
		buf = append(buf, "[DEBUG] "...)
	case r.Level < slog.LevelWarn:
		buf = append(buf, "[INFO]  "...)
	case r.Level < slog.LevelError:
		buf = append(buf, "[WARN]  "...)
	default:
		buf = append(buf, "[ERROR] "...)
	}

	buf = r.Time.AppendFormat(buf, "15:04:05")
	buf = append(buf, ' ')

	// The component attribute becomes a message prefix
	rest := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		if a.Key == "component" {
			buf = append(buf, a.Value.String()...)
			buf = append(buf, ": "...)
			continue
		}
		rest = append(rest, a)
	}
	buf = append(buf, r.Message...)

	r.Attrs(func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		rest = append(rest, a)
		return true
	})

	for i, a := range rest {
		if i == 0 {
			buf = append(buf, " |"...)
		}
		buf = append(buf, ' ')
		buf = h.appendAttr(buf, a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *CompactHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	switch a.Key {
	case "requestID":
		// Request IDs are uuids; the first block is enough to correlate lines
		if s := a.Value.String(); len(s) > 8 {
			buf = append(buf, "req="...)
			return append(buf, s[:8]...)
		}
	case "durationMs":
		buf = append(buf, "duration="...)
		buf = append(buf, a.Value.String()...)
		return append(buf, "ms"...)
	case "error":
		buf = append(buf, "error="...)
		return strconv.AppendQuote(buf, fmt.Sprint(a.Value.Any()))
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuoting(s) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, s...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		return fmt.Appendf(buf, "%v", v.Any())
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		if h.prefix != "" && a.Key != "component" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
