package cliconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies valid config values",
			fileConfig: FileConfig{
				Transport:       "mqtt",
				MQTTBroker:      "tcp://localhost:1883",
				BufferAhead:     "5s",
				MaxPreloadCount: 4,
				LoadingSprite:   []string{"loading.png"},
				WatchConfig:     &trueVal,
			},
			changed: map[string]bool{},
			expected: Config{
				Transport:       "mqtt",
				MQTTBroker:      "tcp://localhost:1883",
				BufferAhead:     5 * time.Second,
				MaxPreloadCount: 4,
				LoadingSprite:   []string{"loading.png"},
				WatchConfig:     true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Listen:       ":9999",
				TickInterval: "20ms",
			},
			changed:  map[string]bool{"listen": true},
			initial:  Config{Listen: ":1112"},
			expected: Config{Listen: ":1112", TickInterval: 20 * time.Millisecond},
		},
		{
			name:       "zero values leave defaults",
			fileConfig: FileConfig{Width: 0, Height: -1},
			changed:    map[string]bool{},
			initial:    Config{Width: 1920, Height: 1080},
			expected:   Config{Width: 1920, Height: 1080},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{DriftThreshold: "bogus"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("config mismatch\n got: %+v\nwant: %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		check   func(*testing.T, FileConfig)
		wantErr bool
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `transport = "mqtt"
mqtt_broker = "tcp://localhost:1883"
time_shift = "-250ms"
max_preload_count = 12
loading_sprite = ["a.png", "b.png"]
watch_config = true
`,
			check: func(t *testing.T, fc FileConfig) {
				if fc.Transport != "mqtt" || fc.MQTTBroker != "tcp://localhost:1883" {
					t.Errorf("transport fields = %+v", fc)
				}
				if fc.TimeShift != "-250ms" || fc.MaxPreloadCount != 12 {
					t.Errorf("tuning fields = %+v", fc)
				}
				if len(fc.LoadingSprite) != 2 || fc.WatchConfig == nil || !*fc.WatchConfig {
					t.Errorf("sprite/watch = %+v", fc)
				}
			},
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `listen: ":2020"
namespace: urn:x-cast:yaml
buffer_ahead: 4s
loading_sprite:
  - one.png
`,
			check: func(t *testing.T, fc FileConfig) {
				if fc.Listen != ":2020" || fc.Namespace != "urn:x-cast:yaml" {
					t.Errorf("fields = %+v", fc)
				}
				if fc.BufferAhead != "4s" || len(fc.LoadingSprite) != 1 {
					t.Errorf("fields = %+v", fc)
				}
			},
		},
		{
			name:    "invalid toml",
			file:    "broken.toml",
			content: "transport = ",
			wantErr: true,
		},
		{
			name:    "invalid yml",
			file:    "broken.yml",
			content: "listen: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			fc, err := LoadFileConfig(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tt.file) {
					t.Errorf("error %q should name the file", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFileConfig() error = %v", err)
			}
			tt.check(t, fc)
		})
	}

	if _, err := LoadFileConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p == "" {
		t.Skip("no home directory")
	}
	if !strings.HasSuffix(p, filepath.Join(".subcast", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %q", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "x.toml")
	if FileExists(p) {
		t.Error("file should not exist yet")
	}
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(p) {
		t.Error("file should exist")
	}
}
