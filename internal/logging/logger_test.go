package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gallerina/internal/services"
)

func newBufferLogger(level string) (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))
	return slog.New(newConsoleHandler(buf, levelVar)), buf
}

func TestConsoleHandlerRendersComponentPrefix(t *testing.T) {
	logger, buf := newBufferLogger("info")
	NewComponentLogger(logger, "worker").Info("claimed job", Int64(FieldJobID, 7))

	line := buf.String()
	if !strings.Contains(line, " worker: claimed job") {
		t.Fatalf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "job_id=7") {
		t.Fatalf("attribute missing: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not render as attribute: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, buf := newBufferLogger("info")
	logger.Info("msg", String("detail", "two words"))
	if !strings.Contains(buf.String(), `detail="two words"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	logger, buf := newBufferLogger("warn")
	logger.Info("dropped")
	logger.Warn("kept")
	if strings.Contains(buf.String(), "dropped") {
		t.Fatalf("info line should be suppressed: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	logger, buf := newBufferLogger("info")

	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithJobKind(ctx, "thumbnail")
	ctx = services.WithSessionID(ctx, "sess-1")

	WithContext(ctx, logger).Info("working")
	line := buf.String()
	for _, want := range []string{"job_id=42", "kind=thumbnail", "session_id=sess-1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %s in %q", want, line)
		}
	}
}

func TestCleanupOldLogsPrunesAndExcludes(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	keep := filepath.Join(dir, "gallerina.log")
	for _, path := range []string{old, keep} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -90)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	removed := CleanupOldLogs(NewNop(), 30, RetentionTarget{
		Dir:     dir,
		Pattern: "*.log",
		Exclude: []string{keep},
	})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old.log removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatal("excluded file should remain")
	}
}
