package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	dnerrors "github.com/YuminosukeSato/dermnet/pkg/errors"
)

func TestZerologLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.With(ComponentKey, "dataset").Info("balanced classes",
		SamplesKey, 3500,
		ClassesKey, 7,
		ShapeKey, []int{3500, 32, 32, 3},
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["message"] != "balanced classes" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ComponentKey] != "dataset" {
		t.Errorf("component = %v", entry[ComponentKey])
	}
	if entry[SamplesKey] != 3500.0 {
		t.Errorf("samples = %v", entry[SamplesKey])
	}
}

func TestZerologLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("records below level leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
	if logger.Enabled(context.Background(), LevelInfo) {
		t.Error("Enabled(Info) should be false at Warn level")
	}
}

func TestZerologLoggerErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	err := dnerrors.Wrap(dnerrors.NewImageNotFoundError("ISIC_42", "/img", 1), "resolve paths")
	logger.Error("pipeline failed", ErrAttrKey, err)

	out := buf.String()
	for _, want := range []string{`"image_id":"ISIC_42"`, `"type":"ImageNotFoundError"`, StacktraceKey} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultLoggerSwap(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	SetLogger(testLogger)
	defer SetLogger(nil)

	Component("export").Info("artifact written", PathKey, "model.dnm")

	if !testLogger.ContainsField(ComponentKey, "export") {
		t.Error("component field missing")
	}
	if !testLogger.ContainsField(PathKey, "model.dnm") {
		t.Error("path field missing")
	}
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 5; j++ {
				testLogger.Info(fmt.Sprintf("worker %d image %d", id, j), WorkersKey, id)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("expected 20 entries, got %d", len(entries))
	}
}
