// Package config loads runtime settings for the plant simulator.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	// Server Configurations
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	// Scan Loop Configurations
	ScanIntervalMs     int     `mapstructure:"SCAN_INTERVAL_MS"`
	CycleLengthScans   int     `mapstructure:"CYCLE_LENGTH_SCANS"`
	FaultProbability   float64 `mapstructure:"FAULT_PROBABILITY"`
	SimulationSeed     int64   `mapstructure:"SIMULATION_SEED"`
	AutoEnable         bool    `mapstructure:"AUTO_ENABLE"`
	CoordinatorPollSec int     `mapstructure:"COORDINATOR_POLL_SEC"`
	ArchiverPollSec    int     `mapstructure:"ARCHIVER_POLL_SEC"`

	// Historian Configurations
	HistorianMeasurement string `mapstructure:"HISTORIAN_MEASUREMENT"`
	ReadingsLookbackMin  int    `mapstructure:"READINGS_LOOKBACK_MIN"`
	ReadingsDefaultLimit int    `mapstructure:"READINGS_DEFAULT_LIMIT"`
}

// ScanInterval returns the scan period as a duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

// CoordinatorPoll returns the batch coordinator poll period.
func (c *Config) CoordinatorPoll() time.Duration {
	return time.Duration(c.CoordinatorPollSec) * time.Second
}

// ArchiverPoll returns the alarm archiver poll period.
func (c *Config) ArchiverPoll() time.Duration {
	return time.Duration(c.ArchiverPollSec) * time.Second
}

// ReadingsLookback returns the default query window for historized readings.
func (c *Config) ReadingsLookback() time.Duration {
	return time.Duration(c.ReadingsLookbackMin) * time.Minute
}

// Load reads configuration from file or environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SCAN_INTERVAL_MS", 100)
	v.SetDefault("CYCLE_LENGTH_SCANS", 600)
	v.SetDefault("FAULT_PROBABILITY", 0.0)
	v.SetDefault("SIMULATION_SEED", 0)
	v.SetDefault("AUTO_ENABLE", true)
	v.SetDefault("COORDINATOR_POLL_SEC", 5)
	v.SetDefault("ARCHIVER_POLL_SEC", 10)
	v.SetDefault("HISTORIAN_MEASUREMENT", "device_diagnostics")
	v.SetDefault("READINGS_LOOKBACK_MIN", 60)
	v.SetDefault("READINGS_DEFAULT_LIMIT", 100)

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
