package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevIsTextWithDebug(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dev")

	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))
	l.Debug("workspace loaded", "store_id", "s1")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "store_id=s1")
	assert.Contains(t, buf.String(), "env=dev")
}

func TestProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod")

	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
	l.Info("db connected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "db connected", line["msg"])
	assert.Equal(t, "storedesk", line["service"])
	assert.Equal(t, "prod", line["env"])
}
