package transcribe

import (
	"context"
	"path/filepath"
)

// MockEngine answers every file with the same text. Used in development when
// no model is installed.
type MockEngine struct {
	Text       string
	Confidence float64
}

func (m MockEngine) Name() string { return "mock" }

func (m MockEngine) Recognize(_ context.Context, path string) (Recognition, error) {
	text := m.Text
	if text == "" {
		text = "mock transcription of " + filepath.Base(path)
	}
	return Recognition{Text: text, Language: "en", Confidence: m.Confidence}, nil
}
