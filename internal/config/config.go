package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lukasbauer/tonebridge/internal/codec"
)

type Config struct {
	Env             string
	Port            int
	SentryDSN       string
	ShutdownTimeout time.Duration

	// Codec tools
	ToFileBin   string
	FromFileBin string
	CLIBin      string
	CLIArgs     []string
	FFmpegBin   string

	// Request processing
	ConvertSampleRate int
	WorkDir           string
	ToolTimeout       time.Duration
	MaxUploadBytes    int64
	RelayQueueSize    int

	// Orphaned workspace cleanup
	WorkspaceMaxAge        time.Duration
	WorkspaceSweepInterval time.Duration
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.ConvertSampleRate <= 0 {
		return fmt.Errorf("CONVERT_SAMPLE_RATE must be positive, got %d", c.ConvertSampleRate)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("TOOL_TIMEOUT must be positive, got %s", c.ToolTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.WorkspaceMaxAge != 0 && c.WorkspaceMaxAge <= c.ToolTimeout {
		return fmt.Errorf("WORKSPACE_MAX_AGE (%s) must exceed TOOL_TIMEOUT (%s)", c.WorkspaceMaxAge, c.ToolTimeout)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// HTTPAddr is the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Tools returns the codec tool paths. Paths are not checked here.
func (c *Config) Tools() codec.Tools {
	return codec.Tools{
		ToFile:   c.ToFileBin,
		FromFile: c.FromFileBin,
		CLI:      c.CLIBin,
		CLIArgs:  append([]string(nil), c.CLIArgs...),
		FFmpeg:   strings.TrimSpace(c.FFmpegBin),
	}
}

func (c *Config) Gateway() codec.GatewayConfig {
	return codec.GatewayConfig{
		Tools:       c.Tools(),
		WorkDir:     c.WorkDir,
		ToolTimeout: c.ToolTimeout,
		SampleRate:  c.ConvertSampleRate,
	}
}
