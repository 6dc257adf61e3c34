package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to make TOML and YAML friendly.
type FileConfig struct {
	Transport string `toml:"transport" yaml:"transport"`
	Listen    string `toml:"listen" yaml:"listen"`
	Namespace string `toml:"namespace" yaml:"namespace"`
	StaticDir string `toml:"static_dir" yaml:"static_dir"`

	MQTTBroker      string `toml:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTClientID    string `toml:"mqtt_client_id" yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `toml:"mqtt_topic_prefix" yaml:"mqtt_topic_prefix"`

	PreloadAhead    string `toml:"preload_ahead" yaml:"preload_ahead"`
	TimeShift       string `toml:"time_shift" yaml:"time_shift"`
	BufferAhead     string `toml:"buffer_ahead" yaml:"buffer_ahead"`
	DriftThreshold  string `toml:"drift_threshold" yaml:"drift_threshold"`
	MaxPreloadCount int    `toml:"max_preload_count" yaml:"max_preload_count"`

	TickInterval string `toml:"tick_interval" yaml:"tick_interval"`
	Width        int    `toml:"width" yaml:"width"`
	Height       int    `toml:"height" yaml:"height"`

	AssetDir     string `toml:"asset_dir" yaml:"asset_dir"`
	AssetTimeout string `toml:"asset_timeout" yaml:"asset_timeout"`

	SnapshotDir      string `toml:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotInterval string `toml:"snapshot_interval" yaml:"snapshot_interval"`

	LoadingSprite []string `toml:"loading_sprite" yaml:"loading_sprite"`
	LogLevel      string   `toml:"log_level" yaml:"log_level"`
	WatchConfig   *bool    `toml:"watch_config" yaml:"watch_config"`
}

// LoadFileConfig reads and parses a config file from the given path.
// Files ending in .yaml or .yml are parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = toml.Unmarshal(b, &fc)
	}
	if err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.subcast/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".subcast", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("namespace", fc.Namespace, &cfg.Namespace)
	s.setString("static-dir", fc.StaticDir, &cfg.StaticDir)
	s.setString("mqtt-broker", fc.MQTTBroker, &cfg.MQTTBroker)
	s.setString("mqtt-client-id", fc.MQTTClientID, &cfg.MQTTClientID)
	s.setString("mqtt-topic-prefix", fc.MQTTTopicPrefix, &cfg.MQTTTopicPrefix)
	s.setString("asset-dir", fc.AssetDir, &cfg.AssetDir)
	s.setString("snapshot-dir", fc.SnapshotDir, &cfg.SnapshotDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"preload-ahead", fc.PreloadAhead, &cfg.PreloadAhead},
		{"time-shift", fc.TimeShift, &cfg.TimeShift},
		{"buffer-ahead", fc.BufferAhead, &cfg.BufferAhead},
		{"drift-threshold", fc.DriftThreshold, &cfg.DriftThreshold},
		{"tick", fc.TickInterval, &cfg.TickInterval},
		{"asset-timeout", fc.AssetTimeout, &cfg.AssetTimeout},
		{"snapshot-interval", fc.SnapshotInterval, &cfg.SnapshotInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("max-preload", fc.MaxPreloadCount, &cfg.MaxPreloadCount)
	s.setInt("width", fc.Width, &cfg.Width)
	s.setInt("height", fc.Height, &cfg.Height)

	s.setStrings("loading-sprite", fc.LoadingSprite, &cfg.LoadingSprite)
	s.setBool("watch", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
