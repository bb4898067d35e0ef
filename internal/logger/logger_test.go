package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"castplayd/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("bogus"))
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("warn", "json", &buf)

	log.Infof("dropped %d", 1)
	log.Warnf("kept %s", "line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "kept line", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("debug", "text", &buf)
	log.Debugf("frame %d", 3)
	assert.Contains(t, buf.String(), `msg="frame 3"`)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logger.OrNop(nil))
	logger.OrNop(nil).Errorf("no panic")
}
