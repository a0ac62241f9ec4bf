package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	Env               string        `env:"ENVIRONMENT" envDefault:"development"`
	Port              int           `env:"PORT" envDefault:"5055"`
	SentryDSN         string        `env:"SENTRY_DSN"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ToFileBin         string        `env:"TO_FILE_BIN" envDefault:"ggwave-to-file"`
	FromFileBin       string        `env:"FROM_FILE_BIN" envDefault:"ggwave-from-file"`
	CLIBin            string        `env:"CLI_BIN" envDefault:"ggwave-cli"`
	CLIArgs           []string      `env:"CLI_ARGS" envSeparator:" " envDefault:"-t1"`
	FFmpegBin         string        `env:"FFMPEG_BIN" envDefault:"ffmpeg"`
	ConvertSampleRate int           `env:"CONVERT_SAMPLE_RATE" envDefault:"48000"`
	WorkDir           string        `env:"WORK_DIR"`
	ToolTimeout       time.Duration `env:"TOOL_TIMEOUT" envDefault:"30s"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
	RelayQueueSize    int           `env:"RELAY_QUEUE_SIZE" envDefault:"64"`

	WorkspaceMaxAge        time.Duration `env:"WORKSPACE_MAX_AGE" envDefault:"1h"`
	WorkspaceSweepInterval time.Duration `env:"WORKSPACE_SWEEP_INTERVAL" envDefault:"10m"`
}

// Load reads the server configuration from the environment and validates it.
func Load() (*Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &Config{
		Env:               raw.Env,
		Port:              raw.Port,
		SentryDSN:         raw.SentryDSN,
		ShutdownTimeout:   raw.ShutdownTimeout,
		ToFileBin:         raw.ToFileBin,
		FromFileBin:       raw.FromFileBin,
		CLIBin:            raw.CLIBin,
		CLIArgs:           raw.CLIArgs,
		FFmpegBin:         raw.FFmpegBin,
		ConvertSampleRate: raw.ConvertSampleRate,
		WorkDir:           raw.WorkDir,
		ToolTimeout:       raw.ToolTimeout,
		MaxUploadBytes:    raw.MaxUploadBytes,
		RelayQueueSize:    raw.RelayQueueSize,

		WorkspaceMaxAge:        raw.WorkspaceMaxAge,
		WorkspaceSweepInterval: raw.WorkspaceSweepInterval,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
