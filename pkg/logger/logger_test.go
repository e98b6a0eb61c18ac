package logger

import (
	"testing"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("NewLogger(%s) should succeed: %v", format, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("%s logger should enable debug level", format)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
