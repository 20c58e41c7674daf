package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorPurple = "\033[35m"
)

// Handler is a compact colored slog handler for terminal output. Records
// carry a "type" attr (cmd, gift, steam, db, sys) that becomes the log
// category; noisy disgo gateway chatter is suppressed.
type Handler struct {
	level slog.Level
	attrs []slog.Attr
}

func NewHandler(level slog.Level) *Handler {
	return &Handler{level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{level: h.level, attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)}
}

func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkip(r.Message) {
		return nil
	}

	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	default:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s%-5s%s %s[%s]%s %s",
		r.Time.Format(time.TimeOnly),
		levelColor, levelText, colorReset,
		colorCyan, category(r), colorReset,
		r.Message)

	writeAttr := func(a slog.Attr) bool {
		if a.Key == "type" {
			return true
		}
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)

	fmt.Println(sb.String())
	return nil
}

func category(r slog.Record) string {
	cat := "SYS"
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "type" {
			cat = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})
	return cat
}

var skippedMessages = []string{
	"gateway event",
	"received gateway message",
	"sending gateway command",
	"sending heartbeat",
	"locking buckets",
	"unlocking buckets",
	"new request",
	"new response",
	"locking rest bucket",
	"unlocking rest bucket",
}

func shouldSkip(msg string) bool {
	lower := strings.ToLower(msg)
	for _, skip := range skippedMessages {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}
