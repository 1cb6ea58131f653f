package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.Contains(output, "level=info") {
		t.Errorf("log should contain level=info, got: %s", output)
	}
	if !strings.Contains(output, `msg="info message"`) {
		t.Errorf("log should contain the message, got: %s", output)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("pool")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "component=pool") {
		t.Errorf("expected component 'pool' in log, got: %s", output)
	}
}

func TestLogger_SharedSettings(t *testing.T) {
	var buf bytes.Buffer
	parent := New()
	child := parent.WithComponent("agent")

	parent.SetOutput(&buf)
	parent.SetLevel(LevelDebug)
	child.Debug("from child")

	if !strings.Contains(buf.String(), "from child") {
		t.Errorf("child should inherit parent output and level, got: %s", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithFields(map[string]interface{}{"pool": "main"})
	logger.SetOutput(&buf)

	logger.Info("submitted", map[string]interface{}{
		"task": "t-1",
	})

	output := buf.String()
	if !strings.Contains(output, "task=t-1") || !strings.Contains(output, "pool=main") {
		t.Errorf("expected fields in log, got: %s", output)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("journal")
	logger.SetOutput(&buf)
	logger.SetJSON(true)

	logger.Warn("sink failed", map[string]interface{}{"sink": "redis"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "sink failed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["component"] != "journal" || entry["sink"] != "redis" {
		t.Errorf("fields missing: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp key")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   Level
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" warn ", LevelWarn, true},
		{"error", LevelError, true},
		{"trace", LevelDebug, true},
		{"loud", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLogger_TaskEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.TaskStart("a1", "t1", "echo")
	logger.TaskComplete("a1", "t1", 10*time.Millisecond)
	logger.TaskFailed("a1", "t2", time.Millisecond, errors.New("boom"))

	output := buf.String()
	for _, want := range []string{"task_start", "task_complete", "task_failed", "duration=", "error=boom", "agent=a1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log, got: %s", want, output)
		}
	}
}

func TestLogger_Quarantined(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Quarantined("a1", errors.New("corrupted"))

	output := buf.String()
	if !strings.Contains(output, "level=error") || !strings.Contains(output, "agent_quarantined") {
		t.Errorf("expected error-level quarantine entry, got: %s", output)
	}
}

func TestLogger_Lifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Lifecycle("a1", "initialize", time.Millisecond, nil)
	logger.Lifecycle("a1", "cleanup", time.Millisecond, errors.New("close failed"))

	output := buf.String()
	if !strings.Contains(output, "phase=initialize") {
		t.Errorf("expected initialize entry, got: %s", output)
	}
	if !strings.Contains(output, "lifecycle_failed") {
		t.Errorf("expected lifecycle_failed entry, got: %s", output)
	}
}

func TestNop(t *testing.T) {
	// Must not panic and must not write to stdout.
	Nop().Error("discarded")
}

type recordingHook struct {
	messages []string
}

func (h *recordingHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *recordingHook) Fire(e *logrus.Entry) error {
	h.messages = append(h.messages, e.Message)
	return nil
}

func TestLogger_AddHook(t *testing.T) {
	hook := &recordingHook{}
	root := Nop()
	root.AddHook(hook)

	child := root.WithComponent("pool")
	child.Info("from child")
	child.Debug("filtered")

	if len(hook.messages) != 1 || hook.messages[0] != "from child" {
		t.Errorf("hook saw %v, want [from child]", hook.messages)
	}
}
