package corintlog

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfoLevelOnInvalidLevel(t *testing.T) {
	l := New("corint", "not-a-level", "json")
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("GetLevel() = %v, want InfoLevel for an invalid level string", l.GetLevel())
	}
}

func TestNewHonorsExplicitLevel(t *testing.T) {
	l := New("corint", "debug", "json")
	if l.GetLevel() != logrus.DebugLevel {
		t.Fatalf("GetLevel() = %v, want DebugLevel", l.GetLevel())
	}
}

func TestNewUsesTextFormatterOnlyForText(t *testing.T) {
	l := New("corint", "info", "text")
	if _, ok := l.Formatter.(*logrus.TextFormatter); !ok {
		t.Fatalf("Formatter = %T, want *logrus.TextFormatter", l.Formatter)
	}

	l = New("corint", "info", "json")
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("Formatter = %T, want *logrus.JSONFormatter", l.Formatter)
	}
}

func TestWithTraceGeneratesIDWhenEmpty(t *testing.T) {
	l := New("corint", "info", "json")
	entry := l.WithTrace("")
	traceID, ok := entry.Data["trace_id"].(string)
	if !ok || traceID == "" {
		t.Fatalf("WithTrace(\"\") did not populate a non-empty trace_id, got %v", entry.Data["trace_id"])
	}
	if entry.Data["service"] != "corint" {
		t.Fatalf("WithTrace() service field = %v, want corint", entry.Data["service"])
	}
}

func TestWithTracePreservesProvidedID(t *testing.T) {
	l := New("corint", "info", "json")
	entry := l.WithTrace("trace-42")
	if entry.Data["trace_id"] != "trace-42" {
		t.Fatalf("WithTrace() trace_id = %v, want trace-42", entry.Data["trace_id"])
	}
}

func TestNewTraceIDGeneratesUniqueValues(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()
	if a == "" || b == "" || a == b {
		t.Fatalf("NewTraceID() = (%q, %q), want distinct non-empty values", a, b)
	}
}

func TestNewFromEnvDefaults(t *testing.T) {
	os.Unsetenv("CORINT_LOG_LEVEL")
	os.Unsetenv("CORINT_LOG_FORMAT")
	l := NewFromEnv("corint")
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("GetLevel() = %v, want InfoLevel by default", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("Formatter = %T, want *logrus.JSONFormatter by default", l.Formatter)
	}
}
