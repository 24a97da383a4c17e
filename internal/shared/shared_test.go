package shared

import (
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("Nil Writer Defaults", func(t *testing.T) {
		logger := NewLogger(nil)
		if logger == nil {
			t.Fatal("expected a logger, got nil")
		}
	})

	t.Run("Writes To Provided Writer", func(t *testing.T) {
		var buf strings.Builder
		logger := NewLogger(&buf)
		logger.Info("hello from the test")

		if !strings.Contains(buf.String(), "hello from the test") {
			t.Errorf("expected log output to contain message, got %q", buf.String())
		}
	})
}

func TestWithLogger(t *testing.T) {
	var buf strings.Builder
	logger := NewLogger(&buf)
	child := WithLogger(logger, "component", "catalog")
	child.Info("tagged")

	out := buf.String()
	if !strings.Contains(out, "component") || !strings.Contains(out, "catalog") {
		t.Errorf("expected log output to carry key-value pair, got %q", out)
	}
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if len(id) != 36 {
			t.Fatalf("expected uuid string of length 36, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
