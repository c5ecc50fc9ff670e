package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultAgentURL is the capture agent's loopback control listener
const DefaultAgentURL = "http://127.0.0.1:7717"

// CtlConfig is the capturectl configuration persisted between runs
type CtlConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	AgentURL string `mapstructure:"agent_url"`
}

// DefaultCtl returns the capturectl defaults
func DefaultCtl() *CtlConfig {
	return &CtlConfig{AgentURL: DefaultAgentURL}
}

// LoadCtl reads cfgFile, or capturectl.yaml from the user config directory
// when cfgFile is empty. A missing file yields the defaults. MEETSCRIBE_*
// environment variables override file values.
func LoadCtl(cfgFile string) (*CtlConfig, error) {
	cfg := DefaultCtl()

	v := viper.New()
	v.SetDefault("endpoint", "")
	v.SetDefault("agent_url", cfg.AgentURL)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("capturectl")
		v.SetConfigType("yaml")
		v.AddConfigPath(ctlConfigDir())
	}

	v.SetEnvPrefix("MEETSCRIBE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveCtl writes cfg to cfgFile, or to the user config directory when
// cfgFile is empty
func SaveCtl(cfg *CtlConfig, cfgFile string) error {
	v := viper.New()
	v.Set("endpoint", cfg.Endpoint)
	v.Set("agent_url", cfg.AgentURL)

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(ctlConfigDir(), "capturectl.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0700); err != nil {
		return err
	}
	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}
	return os.Chmod(cfgPath, 0600)
}

func ctlConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "meetscribe")
}
