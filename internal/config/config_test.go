package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "uploads", cfg.IncomingDir)
	assert.Equal(t, "converted", cfg.ConvertedDir)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadSize)
	assert.Equal(t, 10*time.Minute, cfg.Retention)
	assert.Empty(t, cfg.SweepSchedule)
	assert.Equal(t, "converter.db", cfg.DBPath)
	assert.Zero(t, cfg.BackendTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.Equal(t, "libreoffice", cfg.Tools().LibreOffice)
	assert.Equal(t, "pdfinfo", cfg.Tools().PDFInfo)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("CONVERTER_ADDR", ":8080")
	t.Setenv("CONVERTER_MAX_UPLOAD_SIZE", "1024")
	t.Setenv("CONVERTER_RETENTION", "1h")
	t.Setenv("CONVERTER_SWEEP_SCHEDULE", "*/5 * * * *")
	t.Setenv("CONVERTER_BACKEND_TIMEOUT", "2m")
	t.Setenv("CONVERTER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CONVERTER_FFMPEG_BIN", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("CONVERTER_DB_PATH", "")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, int64(1024), cfg.MaxUploadSize)
	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Equal(t, "*/5 * * * *", cfg.SweepSchedule)
	assert.Equal(t, 2*time.Minute, cfg.BackendTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Tools().FFmpeg)
	assert.Empty(t, cfg.DBPath)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"same dirs", "CONVERTER_CONVERTED_DIR", "./uploads"},
		{"zero size", "CONVERTER_MAX_UPLOAD_SIZE", "0"},
		{"bad size", "CONVERTER_MAX_UPLOAD_SIZE", "lots"},
		{"zero retention", "CONVERTER_RETENTION", "0s"},
		{"negative timeout", "CONVERTER_BACKEND_TIMEOUT", "-1s"},
		{"bad schedule", "CONVERTER_SWEEP_SCHEDULE", "every tuesday"},
		{"bad log format", "CONVERTER_LOG_FORMAT", "xml"},
		{"bad log level", "CONVERTER_LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
