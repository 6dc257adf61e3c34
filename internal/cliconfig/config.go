package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/scheduler"
	"github.com/bft-labs/subcast/pkg/log"
)

// Transports supported by the receiver.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

// Defaults for receiver settings.
const (
	DefaultListen          = ":1112"
	DefaultNamespace       = "urn:x-cast:com.melonpan.messages"
	DefaultMQTTTopicPrefix = "subcast"
	DefaultWidth           = 1920
	DefaultHeight          = 1080
)

// Config holds CLI configuration for subcast.
type Config struct {
	Transport string
	Listen    string
	Namespace string
	StaticDir string

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	PreloadAhead    time.Duration
	TimeShift       time.Duration
	BufferAhead     time.Duration
	DriftThreshold  time.Duration
	MaxPreloadCount int

	TickInterval time.Duration
	Width        int
	Height       int

	AssetDir     string
	AssetTimeout time.Duration

	SnapshotDir      string
	SnapshotInterval time.Duration

	LoadingSprite []string
	LogLevel      string
	WatchConfig   bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	tuning := scheduler.DefaultConfig()
	return Config{
		Transport:        TransportWebSocket,
		Listen:           DefaultListen,
		Namespace:        DefaultNamespace,
		MQTTTopicPrefix:  DefaultMQTTTopicPrefix,
		PreloadAhead:     tuning.PreloadAhead,
		TimeShift:        tuning.TimeShift,
		BufferAhead:      tuning.BufferAhead,
		DriftThreshold:   tuning.DriftAheadThreshold,
		MaxPreloadCount:  tuning.MaxPreloadCount,
		TickInterval:     16 * time.Millisecond,
		Width:            DefaultWidth,
		Height:           DefaultHeight,
		AssetTimeout:     10 * time.Second,
		SnapshotInterval: time.Second,
		LogLevel:         "info",
	}
}

// Tuning returns the scheduler tuning part of the configuration.
func (c Config) Tuning() scheduler.Config {
	return scheduler.Config{
		PreloadAhead:        c.PreloadAhead,
		TimeShift:           c.TimeShift,
		BufferAhead:         c.BufferAhead,
		DriftAheadThreshold: c.DriftThreshold,
		MaxPreloadCount:     c.MaxPreloadCount,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	switch c.Transport {
	case "", TransportWebSocket, "ws":
		c.Transport = TransportWebSocket
		if c.Listen == "" {
			c.Listen = DefaultListen
		}
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("%w: mqtt-broker is required for the mqtt transport", domain.ErrInvalidConfig)
		}
		if c.MQTTTopicPrefix == "" {
			c.MQTTTopicPrefix = DefaultMQTTTopicPrefix
		}
		c.MQTTTopicPrefix = strings.TrimRight(c.MQTTTopicPrefix, "/")
	default:
		return fmt.Errorf("%w: unknown transport %q", domain.ErrInvalidConfig, c.Transport)
	}

	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: surface size %dx%d", domain.ErrInvalidConfig, c.Width, c.Height)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", domain.ErrInvalidConfig)
	}
	if c.SnapshotDir != "" && c.SnapshotInterval <= 0 {
		return fmt.Errorf("%w: snapshot interval must be positive", domain.ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return c.Tuning().Validate()
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list value if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setStringsFromString splits a comma separated list.
func (s *configSetter) setStringsFromString(flag, value string, dst *[]string) {
	if value == "" || s.changed[flag] {
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
