package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		format string
		json   bool
	}{
		{"json", "json", true},
		{"text", "text", false},
		{"auto on a buffer", "auto", true},
		{"empty means auto", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(&buf, "info", tt.format)
			require.NoError(t, err)

			logger.Info("hello", "key", "value")
			var entry map[string]any
			isJSON := json.Unmarshal(buf.Bytes(), &entry) == nil
			assert.Equal(t, tt.json, isJSON)
			assert.Contains(t, buf.String(), "hello")
		})
	}
}

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestNewInvalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
