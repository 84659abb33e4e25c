package util

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %s", got)
	}
	if got := ParseLevel(" WARN "); got != zerolog.WarnLevel {
		t.Fatalf("expected warn from padded mixed case, got %s", got)
	}
	if got := ParseLevel("invalid"); got != zerolog.InfoLevel {
		t.Fatalf("expected info fallback, got %s", got)
	}
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info for empty, got %s", got)
	}
}

func TestNewLoggerPinsGlobalLevel(t *testing.T) {
	NewLogger("debug")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("expected global debug, got %s", zerolog.GlobalLevel())
	}

	SetLevel("error")
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Fatalf("expected global error after SetLevel, got %s", zerolog.GlobalLevel())
	}

	SetLevel("info")
}

func TestComponentTagsLogger(t *testing.T) {
	logger := Component(Nop(), "engine")
	if logger.GetLevel() != zerolog.Disabled {
		t.Fatalf("nop logger should stay disabled, got %s", logger.GetLevel())
	}
}
