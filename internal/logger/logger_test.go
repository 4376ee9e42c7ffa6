package logger

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in, "prod"); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if got := parseLevel("", "dev"); got != slog.LevelDebug {
		t.Fatalf("dev default = %v", got)
	}
	if got := parseLevel("", "prod"); got != slog.LevelInfo {
		t.Fatalf("prod default = %v", got)
	}
}
