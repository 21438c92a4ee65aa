package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGenerateID(t *testing.T) {
	first := GenerateID()
	second := GenerateID()

	if first == "" || second == "" {
		t.Fatal("GenerateID() returned empty string")
	}
	if first == second {
		t.Error("GenerateID() returned duplicate ids")
	}
}

func TestGenerateState(t *testing.T) {
	first, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	if len(first) != 32 {
		t.Errorf("len(state) = %d, want 32 hex chars", len(first))
	}

	second, _ := GenerateState()
	if first == second {
		t.Error("GenerateState() returned duplicate tokens")
	}
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]int{"count": 3}

	t.Run("compact", func(t *testing.T) {
		out, err := MarshalJSON(data, false)
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if string(out) != `{"count":3}` {
			t.Errorf("MarshalJSON() = %s", out)
		}
	})

	t.Run("pretty", func(t *testing.T) {
		out, err := MarshalJSON(data, true)
		if err != nil {
			t.Fatalf("MarshalJSON() error = %v", err)
		}
		if !strings.Contains(string(out), "\n") {
			t.Errorf("MarshalJSON() = %s, want indented output", out)
		}
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("log output %q missing message", buf.String())
	}

	t.Run("level filtering", func(t *testing.T) {
		buf.Reset()
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("quiet")
		if strings.Contains(buf.String(), "quiet") {
			t.Error("info logged at warn level")
		}
	})

	t.Run("child logger carries fields", func(t *testing.T) {
		buf.Reset()
		SetLogLevel(logger, log.InfoLevel)
		child := WithLogger(logger, "service", "spotify")
		child.Info("scoped")
		if !strings.Contains(buf.String(), "spotify") {
			t.Errorf("log output %q missing bound field", buf.String())
		}
	})
}
