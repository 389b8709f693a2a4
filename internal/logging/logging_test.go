package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		verbose bool
		want    zap.AtomicLevel
	}{
		{"info", false, zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"warn", false, zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"", false, zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"error", true, zap.NewAtomicLevelAt(zap.DebugLevel)},
	}
	for _, tt := range tests {
		logger, err := New(tt.level, tt.verbose)
		if err != nil {
			t.Fatalf("New(%q, %v) failed: %v", tt.level, tt.verbose, err)
		}
		if !logger.Core().Enabled(tt.want.Level()) {
			t.Errorf("New(%q, %v) should enable %s", tt.level, tt.verbose, tt.want.Level())
		}
		if tt.want.Level() > zap.DebugLevel && logger.Core().Enabled(tt.want.Level()-1) {
			t.Errorf("New(%q, %v) should not enable %s", tt.level, tt.verbose, tt.want.Level()-1)
		}
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Error("expected error for invalid level")
	}
}
