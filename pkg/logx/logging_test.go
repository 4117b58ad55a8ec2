package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "runner"))
	log.Info("tick done", Int("ran", 2), Bool("once", true), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if m["message"] != "tick done" || m["comp"] != "runner" || m["ran"] != float64(2) || m["once"] != true {
		t.Fatalf("unexpected fields: %v", m)
	}
	if m["err"] != "boom" {
		t.Fatalf("err = %v, want boom", m["err"])
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %v", m["caller"])
	}
}

func TestWriterLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %q", buf.String())
	}
	if log.Enabled(LevelInfo) || !log.Enabled(LevelError) {
		t.Fatalf("unexpected Enabled results")
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	zero.Info("safe")
	if Nop().IsZero() {
		t.Fatal("Nop should not report IsZero")
	}
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radarsched.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path, MaxSizeMB: 1}})
	defer svc.Close()

	log.Info("hello")
	if got := svc.Config().File.Path; got != path {
		t.Fatalf("Config().File.Path = %q", got)
	}

	svc.Apply(Config{Level: "error", Console: true})
	if log.Enabled(LevelInfo) {
		t.Fatal("Apply should raise the level for live loggers")
	}
}
