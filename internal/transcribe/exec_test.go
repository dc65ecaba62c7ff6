package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeEngineScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-whisper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecEngineArguments(t *testing.T) {
	script := writeEngineScript(t, `echo "$@"`)
	engine, err := NewExecEngine(script+` -m "models/ggml base.bin" -nt`, "en")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	rec, err := engine.Recognize(context.Background(), "/tmp/in.wav")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	want := "-m models/ggml base.bin -nt -l en -f /tmp/in.wav"
	if strings.TrimSpace(rec.Text) != want {
		t.Fatalf("args = %q, want %q", strings.TrimSpace(rec.Text), want)
	}
	if rec.Language != "en" {
		t.Fatalf("language = %q", rec.Language)
	}
}

func TestExecEngineAutoLanguageOmitsFlag(t *testing.T) {
	engine, err := NewExecEngine(writeEngineScript(t, `echo "$@"`), "auto")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	rec, err := engine.Recognize(context.Background(), "/tmp/in.wav")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if strings.TrimSpace(rec.Text) != "-f /tmp/in.wav" || rec.Language != "" {
		t.Fatalf("unexpected output %+v", rec)
	}
}

func TestExecEngineFailureCarriesStderr(t *testing.T) {
	engine, err := NewExecEngine(writeEngineScript(t, "echo 'failed to load model' >&2\nexit 3"), "en")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	tr := New(engine, Options{})

	_, err = tr.Transcribe(context.Background(), writeAudio(t, 2048))
	if err == nil || !strings.Contains(err.Error(), "failed to load model") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "transcription failed: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewExecEngineValidatesCommand(t *testing.T) {
	if _, err := NewExecEngine("", "en"); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if _, err := NewExecEngine(`whisper "unterminated`, "en"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := NewExecEngine(filepath.Join(t.TempDir(), "missing-whisper"), "en"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
