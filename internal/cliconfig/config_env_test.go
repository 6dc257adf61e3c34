package cliconfig

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies valid env vars",
			envVars: map[string]string{
				"SUBCAST_TRANSPORT":         "mqtt",
				"SUBCAST_MQTT_BROKER":       "tcp://broker:1883",
				"SUBCAST_PRELOAD_AHEAD":     "2s",
				"SUBCAST_TIME_SHIFT":        "-100ms",
				"SUBCAST_MAX_PRELOAD_COUNT": "8",
				"SUBCAST_LOADING_SPRITE":    "a.png,b.png",
				"SUBCAST_WATCH_CONFIG":      "true",
			},
			changed: map[string]bool{},
			expected: Config{
				Transport:       "mqtt",
				MQTTBroker:      "tcp://broker:1883",
				PreloadAhead:    2 * time.Second,
				TimeShift:       -100 * time.Millisecond,
				MaxPreloadCount: 8,
				LoadingSprite:   []string{"a.png", "b.png"},
				WatchConfig:     true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"SUBCAST_LISTEN":    ":9000",
				"SUBCAST_NAMESPACE": "urn:x-cast:test",
			},
			changed:  map[string]bool{"listen": true},
			initial:  Config{Listen: ":1112"},
			expected: Config{Listen: ":1112", Namespace: "urn:x-cast:test"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"SUBCAST_BUFFER_AHEAD": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"SUBCAST_WIDTH": "wide"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"SUBCAST_WATCH_CONFIG": "1"},
			changed:  map[string]bool{},
			expected: Config{WatchConfig: true},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"SUBCAST_WATCH_CONFIG": "false"},
			changed:  map[string]bool{},
			initial:  Config{WatchConfig: true},
			expected: Config{WatchConfig: false},
		},
		{
			name: "handles all field types correctly",
			envVars: map[string]string{
				"SUBCAST_TRANSPORT":         "websocket",
				"SUBCAST_LISTEN":            ":8080",
				"SUBCAST_NAMESPACE":         "urn:x-cast:ns",
				"SUBCAST_STATIC_DIR":        "/www",
				"SUBCAST_MQTT_BROKER":       "tcp://b:1883",
				"SUBCAST_MQTT_CLIENT_ID":    "tv-1",
				"SUBCAST_MQTT_TOPIC_PREFIX": "home",
				"SUBCAST_PRELOAD_AHEAD":     "1s",
				"SUBCAST_TIME_SHIFT":        "50ms",
				"SUBCAST_BUFFER_AHEAD":      "4s",
				"SUBCAST_DRIFT_THRESHOLD":   "300ms",
				"SUBCAST_MAX_PRELOAD_COUNT": "10",
				"SUBCAST_TICK_INTERVAL":     "33ms",
				"SUBCAST_WIDTH":             "1280",
				"SUBCAST_HEIGHT":            "720",
				"SUBCAST_ASSET_DIR":         "/assets",
				"SUBCAST_ASSET_TIMEOUT":     "5s",
				"SUBCAST_SNAPSHOT_DIR":      "/snap",
				"SUBCAST_SNAPSHOT_INTERVAL": "2s",
				"SUBCAST_LOADING_SPRITE":    "s.png",
				"SUBCAST_LOG_LEVEL":         "debug",
				"SUBCAST_WATCH_CONFIG":      "1",
			},
			changed: map[string]bool{},
			expected: Config{
				Transport:        "websocket",
				Listen:           ":8080",
				Namespace:        "urn:x-cast:ns",
				StaticDir:        "/www",
				MQTTBroker:       "tcp://b:1883",
				MQTTClientID:     "tv-1",
				MQTTTopicPrefix:  "home",
				PreloadAhead:     time.Second,
				TimeShift:        50 * time.Millisecond,
				BufferAhead:      4 * time.Second,
				DriftThreshold:   300 * time.Millisecond,
				MaxPreloadCount:  10,
				TickInterval:     33 * time.Millisecond,
				Width:            1280,
				Height:           720,
				AssetDir:         "/assets",
				AssetTimeout:     5 * time.Second,
				SnapshotDir:      "/snap",
				SnapshotInterval: 2 * time.Second,
				LoadingSprite:    []string{"s.png"},
				LogLevel:         "debug",
				WatchConfig:      true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("config mismatch\n got: %+v\nwant: %+v", cfg, tt.expected)
			}
		})
	}
}
