package cliconfig

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"off", zerolog.Disabled, false},
		{"chatty", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := Logger(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Logger(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if got := logger.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}
