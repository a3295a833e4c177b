package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/config"
)

func TestNew_JSONFormatCarriesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&config.Config{ServiceName: "relay-api", Environment: "test", LogFormat: "json", LogLevel: "debug"}, &buf)
	log.Debug().Str("session_id", "relay_1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json line, got %q", buf.String())
	}
	if line["service"] != "relay-api" || line["environment"] != "test" || line["session_id"] != "relay_1" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":      zerolog.InfoLevel,
		"DEBUG": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"bogus": zerolog.InfoLevel,
	}
	for raw, want := range tests {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}
