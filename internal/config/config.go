// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/pavel-fokin/file-converter/internal/backend"
)

const defaultDBPath = "converter.db"

type Config struct {
	Addr           string        `env:"CONVERTER_ADDR" envDefault:":3000"`
	IncomingDir    string        `env:"CONVERTER_INCOMING_DIR" envDefault:"uploads"`
	ConvertedDir   string        `env:"CONVERTER_CONVERTED_DIR" envDefault:"converted"`
	MaxUploadSize  int64         `env:"CONVERTER_MAX_UPLOAD_SIZE" envDefault:"52428800"`
	Retention      time.Duration `env:"CONVERTER_RETENTION" envDefault:"600s"`
	SweepSchedule  string        `env:"CONVERTER_SWEEP_SCHEDULE"`
	DBPath         string        `env:"CONVERTER_DB_PATH"`
	BackendTimeout time.Duration `env:"CONVERTER_BACKEND_TIMEOUT" envDefault:"0s"`
	CORSOrigins    []string      `env:"CONVERTER_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel       string        `env:"CONVERTER_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"CONVERTER_LOG_FORMAT" envDefault:"auto"`

	LibreOfficeBin string `env:"CONVERTER_LIBREOFFICE_BIN" envDefault:"libreoffice"`
	FFmpegBin      string `env:"CONVERTER_FFMPEG_BIN" envDefault:"ffmpeg"`
	PDFToCairoBin  string `env:"CONVERTER_PDFTOCAIRO_BIN" envDefault:"pdftocairo"`
	PDFInfoBin     string `env:"CONVERTER_PDFINFO_BIN" envDefault:"pdfinfo"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// An explicitly empty path disables the journal, so the default is
	// applied only when the variable is unset.
	if _, ok := os.LookupEnv("CONVERTER_DB_PATH"); !ok {
		cfg.DBPath = defaultDBPath
	}
	for i, origin := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(origin)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.IncomingDir, validation.Required),
		validation.Field(&c.ConvertedDir, validation.Required, validation.By(distinctFrom(c.IncomingDir))),
		validation.Field(&c.MaxUploadSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Retention, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.BackendTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.SweepSchedule, validation.By(cronSpec)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("auto", "json", "text")),
		validation.Field(&c.LibreOfficeBin, validation.Required),
		validation.Field(&c.FFmpegBin, validation.Required),
		validation.Field(&c.PDFToCairoBin, validation.Required),
		validation.Field(&c.PDFInfoBin, validation.Required),
	)
}

func distinctFrom(other string) validation.RuleFunc {
	return func(value interface{}) error {
		dir, _ := value.(string)
		if dir != "" && filepath.Clean(dir) == filepath.Clean(other) {
			return errors.New("must differ from the incoming directory")
		}
		return nil
	}
}

func cronSpec(value interface{}) error {
	expr, _ := value.(string)
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("must be a cron expression: %w", err)
	}
	return nil
}

// Tools returns the external executables the backends run.
func (c *Config) Tools() backend.Tools {
	return backend.Tools{
		LibreOffice: c.LibreOfficeBin,
		FFmpeg:      c.FFmpegBin,
		PDFToCairo:  c.PDFToCairoBin,
		PDFInfo:     c.PDFInfoBin,
	}
}
