package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"vidproc/logger"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"":        logger.INFO,
		"warning": logger.WARN,
		"error":   logger.ERROR,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := logger.ParseLevel("verbose"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestJobLoggerPrefixAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf, logger.INFO)
	defer logger.SetOutput(&bytes.Buffer{}, logger.INFO)

	jl := logger.ForJob("abc-123")
	jl.Debugf("hidden %d", 1)
	jl.Infof("visible %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug line should be filtered at INFO level: %s", out)
	}
	if !strings.Contains(out, "[job abc-123] visible 2") {
		t.Errorf("Expected job prefix in output, got: %s", out)
	}
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("Expected level label in output, got: %s", out)
	}
}
