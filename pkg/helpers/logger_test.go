package helpers

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerTo_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "accounts", "production")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	LogError(l, "store failed", errors.New("conn refused"), logrus.Fields{"email": "a@x.com"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store failed", entry["msg"])
	assert.Equal(t, "conn refused", entry["error"])
	assert.Equal(t, "a@x.com", entry["email"])
	assert.Equal(t, "error", entry["level"])
}

func TestNewLoggerTo_DevelopmentIsVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "accounts", "development")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	LogInfo(l, "hello", nil)
	assert.Contains(t, buf.String(), "hello")
}
