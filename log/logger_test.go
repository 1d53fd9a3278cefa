package log

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, WithLevel(zerolog.InfoLevel))

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "cart").Msg("line added")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message should be filtered at info level")
	}
	if !strings.Contains(out, "line added") || !strings.Contains(out, `"component":"cart"`) {
		t.Errorf("info message missing or malformed: %s", out)
	}
}

func TestNewFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFile(FileConfig{Filepath: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	logger.Info().Msg("rotated output")

	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil || len(matches) == 0 {
		t.Errorf("expected a log file in %s, got %v (err=%v)", dir, matches, err)
	}
}

func TestFileConfigDefaults(t *testing.T) {
	logger, err := NewFile(FileConfig{Filepath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := G
	defer SetGlobalLogger(prev)

	SetGlobalLogger(newLogger(&buf))
	Info().Msg("global works")

	if !strings.Contains(buf.String(), "global works") {
		t.Errorf("global logger did not write: %s", buf.String())
	}
}
