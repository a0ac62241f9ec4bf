package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds client settings, read from the environment.
type Config struct {
	ServerURL     string        `env:"SERVER_URL" envDefault:"http://localhost:5055"`
	PlayerCmd     string        `env:"PLAYER_CMD" envDefault:"ffplay -nodisp -autoexit -loglevel quiet"`
	CaptureFormat string        `env:"CAPTURE_FORMAT" envDefault:"pulse"`
	CaptureInput  string        `env:"CAPTURE_INPUT" envDefault:"default"`
	CaptureRate   int           `env:"CAPTURE_SAMPLE_RATE" envDefault:"48000"`
	FFmpegBin     string        `env:"FFMPEG_BIN" envDefault:"ffmpeg"`
	WorkDir       string        `env:"WORK_DIR"`
	ChunkInterval time.Duration `env:"CHUNK_INTERVAL" envDefault:"2s"`
	LevelInterval time.Duration `env:"LEVEL_INTERVAL" envDefault:"50ms"`
	ScriptGap     time.Duration `env:"SCRIPT_GAP" envDefault:"300ms"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"60s"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("SERVER_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("SERVER_URL must be an http or https URL")
	}
	if strings.TrimSpace(c.PlayerCmd) == "" {
		return errors.New("PLAYER_CMD is required")
	}
	if c.ChunkInterval <= 0 || c.LevelInterval <= 0 {
		return errors.New("CHUNK_INTERVAL and LEVEL_INTERVAL must be positive")
	}
	if c.ScriptGap < 0 {
		return errors.New("SCRIPT_GAP must not be negative")
	}
	return nil
}

// RelayURL is the duplex endpoint derived from ServerURL.
func (c *Config) RelayURL() string {
	return relayURL(c.ServerURL)
}

func relayURL(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil {
		return serverURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/cli"
	return u.String()
}
