package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	debugLogger, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger(true) error: %v", err)
	}
	if debugLogger.Check(zapcore.DebugLevel, "at level") == nil {
		t.Error("debug logger should accept debug-level entries")
	}
	_ = debugLogger.Sync()

	prodLogger, err := NewLogger(false)
	if err != nil {
		t.Fatalf("NewLogger(false) error: %v", err)
	}
	if prodLogger.Check(zapcore.DebugLevel, "at level") != nil {
		t.Error("production logger should drop debug-level entries")
	}
	if prodLogger.Check(zapcore.InfoLevel, "at level") == nil {
		t.Error("production logger should accept info-level entries")
	}
	_ = prodLogger.Sync()
}
