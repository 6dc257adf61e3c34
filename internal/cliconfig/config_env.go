package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SUBCAST_"

// ApplyEnvConfig applies configuration from environment variables (SUBCAST_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("transport", env("TRANSPORT"), &cfg.Transport)
	s.setString("listen", env("LISTEN"), &cfg.Listen)
	s.setString("namespace", env("NAMESPACE"), &cfg.Namespace)
	s.setString("static-dir", env("STATIC_DIR"), &cfg.StaticDir)
	s.setString("mqtt-broker", env("MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("mqtt-client-id", env("MQTT_CLIENT_ID"), &cfg.MQTTClientID)
	s.setString("mqtt-topic-prefix", env("MQTT_TOPIC_PREFIX"), &cfg.MQTTTopicPrefix)
	s.setString("asset-dir", env("ASSET_DIR"), &cfg.AssetDir)
	s.setString("snapshot-dir", env("SNAPSHOT_DIR"), &cfg.SnapshotDir)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("preload-ahead", env("PRELOAD_AHEAD"), &cfg.PreloadAhead); err != nil {
		return err
	}
	if err := s.setDuration("time-shift", env("TIME_SHIFT"), &cfg.TimeShift); err != nil {
		return err
	}
	if err := s.setDuration("buffer-ahead", env("BUFFER_AHEAD"), &cfg.BufferAhead); err != nil {
		return err
	}
	if err := s.setDuration("drift-threshold", env("DRIFT_THRESHOLD"), &cfg.DriftThreshold); err != nil {
		return err
	}
	if err := s.setDuration("tick", env("TICK_INTERVAL"), &cfg.TickInterval); err != nil {
		return err
	}
	if err := s.setDuration("asset-timeout", env("ASSET_TIMEOUT"), &cfg.AssetTimeout); err != nil {
		return err
	}
	if err := s.setDuration("snapshot-interval", env("SNAPSHOT_INTERVAL"), &cfg.SnapshotInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("max-preload", env("MAX_PRELOAD_COUNT"), &cfg.MaxPreloadCount); err != nil {
		return err
	}
	if err := s.setIntFromString("width", env("WIDTH"), &cfg.Width); err != nil {
		return err
	}
	if err := s.setIntFromString("height", env("HEIGHT"), &cfg.Height); err != nil {
		return err
	}

	s.setStringsFromString("loading-sprite", env("LOADING_SPRITE"), &cfg.LoadingSprite)
	s.setBoolFromString("watch", env("WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
