package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gatesim/circuit"
)

type Config struct {
	SaveDirectory  string `yaml:"save_directory"`
	StartMenu      bool   `yaml:"start_menu"`
	Confirmations  bool   `yaml:"confirmations"`
	TicksPerSecond int    `yaml:"ticks_per_second"`
	UndoLimit      int    `yaml:"undo_limit"`
	LogFile        string `yaml:"log_file"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

func defaultConfig() *Config {
	return &Config{
		StartMenu:      true,
		Confirmations:  true,
		TicksPerSecond: 10,
		UndoLimit:      circuit.DefaultHistory,
	}
}

func configPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".gatesimrc")
}

// loadConfig reads the config file at path, ~/.gatesimrc when path is
// empty. A missing file yields the defaults.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		path = configPath()
	}
	if path == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	homeDir, _ := os.UserHomeDir()
	config, err := parseConfig(data, homeDir)
	return config, errors.Wrapf(err, "config %s", path)
}

func parseConfig(data []byte, homeDir string) (*Config, error) {
	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.SaveDirectory = expandPath(config.SaveDirectory, homeDir)
	config.LogFile = expandPath(config.LogFile, homeDir)
	if config.TicksPerSecond < minTPS {
		config.TicksPerSecond = minTPS
	}
	if config.TicksPerSecond > maxTPS {
		config.TicksPerSecond = maxTPS
	}
	if config.UndoLimit <= 0 {
		config.UndoLimit = circuit.DefaultHistory
	}
	return config, nil
}

func expandPath(value, homeDir string) string {
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "~") && homeDir != "" {
		value = filepath.Join(homeDir, strings.TrimPrefix(value, "~"))
	}
	if !filepath.IsAbs(value) {
		if absPath, err := filepath.Abs(value); err == nil {
			value = absPath
		}
	}
	return value
}

func (c *Config) GetSavePath(filename string) string {
	if c.SaveDirectory == "" || filepath.IsAbs(filename) {
		return filename
	}
	os.MkdirAll(c.SaveDirectory, 0755)
	return filepath.Join(c.SaveDirectory, filename)
}
