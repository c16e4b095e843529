package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode returns production logger", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		_ = logger.Sync()
	})
}

func TestNewCLILogger(t *testing.T) {
	tests := []struct {
		debug     bool
		wantDebug bool
		wantWarn  bool
	}{
		{debug: false, wantDebug: false, wantWarn: true},
		{debug: true, wantDebug: true, wantWarn: true},
	}
	for _, tt := range tests {
		logger, err := NewCLILogger(tt.debug)
		if err != nil {
			t.Fatalf("NewCLILogger(%v) error: %v", tt.debug, err)
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
			t.Errorf("NewCLILogger(%v) debug enabled = %v, want %v", tt.debug, got, tt.wantDebug)
		}
		if got := logger.Core().Enabled(zapcore.WarnLevel); got != tt.wantWarn {
			t.Errorf("NewCLILogger(%v) warn enabled = %v, want %v", tt.debug, got, tt.wantWarn)
		}
		_ = logger.Sync()
	}
}
