package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AgentConfig holds capture agent configuration. AudioSource may contain
// {tab} to record a per-tab device.
type AgentConfig struct {
	ControlAddr      string        `envconfig:"CONTROL_ADDR" default:"127.0.0.1:7717"`
	Environment      string        `envconfig:"ENVIRONMENT" default:"development"`
	TrustedOrigin    string        `envconfig:"TRUSTED_ORIGIN" default:"https://meet.google.com/"`
	DevToolsURL      string        `envconfig:"DEVTOOLS_URL" default:"http://127.0.0.1:9222"`
	FFmpegPath       string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	AudioInput       string        `envconfig:"AUDIO_INPUT_FORMAT" default:"pulse"`
	AudioSource      string        `envconfig:"AUDIO_SOURCE" default:"default"`
	Format           string        `envconfig:"FORMAT" default:"audio/webm;codecs=opus"`
	TimesliceMs      int           `envconfig:"TIMESLICE_MS" default:"500"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"10s"`
	AnnotateSource   bool          `envconfig:"ANNOTATE_SOURCE" default:"true"`
	RejectDuplicate  bool          `envconfig:"REJECT_DUPLICATE_START" default:"false"`
}

// LoadAgent loads AGENT_* variables
func LoadAgent() (*AgentConfig, error) {
	loadDotEnv()

	var cfg AgentConfig
	if err := envconfig.Process("AGENT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the agent configuration
func (c *AgentConfig) Validate() error {
	if c.TimesliceMs <= 0 {
		return fmt.Errorf("AGENT_TIMESLICE_MS must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("AGENT_HANDSHAKE_TIMEOUT must be positive")
	}
	if c.Format == "" {
		return fmt.Errorf("AGENT_FORMAT is required")
	}
	if _, err := url.Parse(c.TrustedOrigin); err != nil || c.TrustedOrigin == "" {
		return fmt.Errorf("AGENT_TRUSTED_ORIGIN must be a URL prefix")
	}
	return nil
}

// Timeslice returns the encoder interval
func (c *AgentConfig) Timeslice() time.Duration {
	return time.Duration(c.TimesliceMs) * time.Millisecond
}
