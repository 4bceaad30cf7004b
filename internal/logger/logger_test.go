package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/rkobroo/Ownrkoapi/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		level   zapcore.Level
		wantErr bool
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, false},
		{"bad level", config.LoggingConfig{Level: "loud", Format: "json"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !l.Core().Enabled(tt.level) {
				t.Errorf("level %s should be enabled", tt.level)
			}
			if tt.level > zapcore.DebugLevel && l.Core().Enabled(tt.level-1) {
				t.Errorf("level %s should be disabled", tt.level-1)
			}
		})
	}
}
