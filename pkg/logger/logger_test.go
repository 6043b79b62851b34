package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_WritesJSONWithService(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	log := Init(Options{Level: "warn", Output: &buf, Service: "ingest-console"})
	log.Info().Msg("dropped")
	session := Component("session")
	session.Warn().Msg("kept")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "ingest-console" || entry["component"] != "session" || entry["message"] != "kept" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first := Init(Options{Level: "error", Output: &bytes.Buffer{}})
	second := Init(Options{Level: "trace", Output: &bytes.Buffer{}})
	if first.GetLevel() != second.GetLevel() || second.GetLevel() != zerolog.ErrorLevel {
		t.Fatalf("expected the first configuration to stick")
	}
}

func TestComponent_DisabledBeforeInit(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	l := Component("guard")
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("expected a disabled logger before Init, got %v", l.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != zerolog.DebugLevel {
		t.Fatalf("unexpected debug parse: %v %v", lvl, err)
	}
	if lvl, err := ParseLevel(""); err != nil || lvl != zerolog.InfoLevel {
		t.Fatalf("unexpected default: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
