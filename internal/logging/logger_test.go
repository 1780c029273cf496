package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		" warn ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.WarnLevel,
		"verbose": zerolog.WarnLevel,
	}
	for name, want := range tests {
		if got := SetLevel(name); got != want || zerolog.GlobalLevel() != want {
			t.Errorf("SetLevel(%q) = %s, global %s, want %s", name, got, zerolog.GlobalLevel(), want)
		}
	}
}
