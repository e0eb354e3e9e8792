package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// restoreGlobalLevel undoes the global level change made by Setup.
func restoreGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty = true, want JSON output by default")
	}
	if cfg.Output == nil {
		t.Error("Output = nil, want stderr")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level  LogLevel
		logged []string
		hidden []string
	}{
		{level: LevelDebug, logged: []string{"cache hit", "page loaded", "thumbnail skipped", "page failed"}},
		{level: LevelInfo, logged: []string{"page loaded", "thumbnail skipped", "page failed"}, hidden: []string{"cache hit"}},
		{level: LevelWarn, logged: []string{"thumbnail skipped", "page failed"}, hidden: []string{"cache hit", "page loaded"}},
		{level: LevelError, logged: []string{"page failed"}, hidden: []string{"cache hit", "page loaded", "thumbnail skipped"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			restoreGlobalLevel(t)
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			logger.Debug().Msg("cache hit")
			logger.Info().Msg("page loaded")
			logger.Warn().Msg("thumbnail skipped")
			logger.Error().Msg("page failed")

			output := buf.String()
			for _, msg := range tt.logged {
				if !strings.Contains(output, msg) {
					t.Errorf("output lacks %q at level %s", msg, tt.level)
				}
			}
			for _, msg := range tt.hidden {
				if strings.Contains(output, msg) {
					t.Errorf("output contains %q at level %s", msg, tt.level)
				}
			}
		})
	}
}

func TestSetup_JSONFields(t *testing.T) {
	restoreGlobalLevel(t)
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger(ComponentPageFetcher)
	logger.Info().Int("page", 2).Msg("Page load complete")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != ComponentPageFetcher {
		t.Errorf("component = %v, want %s", entry["component"], ComponentPageFetcher)
	}
	if entry["page"] != float64(2) {
		t.Errorf("page = %v, want 2", entry["page"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestSetup_Pretty(t *testing.T) {
	restoreGlobalLevel(t)
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Msg("Starting catalog proxy")

	output := buf.String()
	if !strings.Contains(output, "Starting catalog proxy") {
		t.Errorf("output lacks message: %q", output)
	}
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("pretty output looks like JSON: %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseLevelName(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "", want: LevelInfo},
		{input: "warning", want: LevelWarn},
		{input: "error", want: LevelError},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) expected error", tt.input)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	restoreGlobalLevel(t)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	buf := &bytes.Buffer{}
	base := zerolog.New(buf)

	scoped := WithComponent(base, ComponentCoordinator)
	scoped.Info().Int("page", 3).Msg("Page load complete")

	output := buf.String()
	if !strings.Contains(output, `"component":"coordinator"`) {
		t.Errorf("Expected component field, got %q", output)
	}
	if !strings.Contains(output, `"page":3`) {
		t.Errorf("Expected page field, got %q", output)
	}
}
