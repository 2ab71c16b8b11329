package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"DeBuG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"Warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"\tfatal\n", zerolog.FatalLevel},
		{"PANIC", zerolog.PanicLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if err != nil {
				t.Fatalf("ParseLevel(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLevel_Rejects(t *testing.T) {
	for _, input := range []string{"", "verbose", "critical", "disabled", "123"} {
		if _, err := ParseLevel(input); err == nil {
			t.Errorf("ParseLevel(%q) expected error", input)
		}
	}
}

func TestNewJSON_WritesComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewJSON(&buf, "debug"), "poller")

	logger.Debug().Str("project", "shop").Msg("status refreshed")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if event["component"] != "poller" || event["project"] != "shop" || event["level"] != "debug" {
		t.Fatalf("unexpected event %v", event)
	}
	if _, ok := event["time"]; !ok {
		t.Fatalf("expected timestamp in %v", event)
	}
}

func TestNewJSON_UnknownLevelFallsBackToInfo(t *testing.T) {
	if got := NewJSON(&bytes.Buffer{}, "loud").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", got)
	}
}

func TestNewConsole_UsesRequestedLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(&buf, "warn")

	logger.Info().Msg("hidden")
	logger.Warn().Msg("Docker is not running")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "Docker is not running") {
		t.Errorf("expected warn message in output, got %q", out)
	}
}
