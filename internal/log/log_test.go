package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLevelFilteringAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
		SetOutput(os.Stderr)
	})

	Info("hidden", "k", "v")
	Warn("import skipped rows", "count", 2, "file", "my schedule.csv")
	Error("save failed", errors.New("disk full"), "key", "shifts")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at WARN level:\n%s", out)
	}
	if !strings.Contains(out, `[WARN] import skipped rows count=2 file="my schedule.csv"`) {
		t.Errorf("missing warn line:\n%s", out)
	}
	if !strings.Contains(out, `[ERROR] save failed err="disk full" key=shifts`) {
		t.Errorf("missing error line:\n%s", out)
	}
}
