// Package transcribe turns a recorded WAV file into normalised text using a
// speech engine that is loaded once and shared by every request.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"math"
	"os"
	"strings"
	"sync"
)

var ErrInvalidInput = errors.New("invalid input")

type inputError struct{ msg string }

func (e *inputError) Error() string        { return e.msg }
func (e *inputError) Is(target error) bool { return target == ErrInvalidInput }

// ModelError reports an engine failure, including a recovered panic.
type ModelError struct {
	Msg string
	Err error
}

func (e *ModelError) Error() string { return "transcription failed: " + e.Msg }
func (e *ModelError) Unwrap() error { return e.Err }

// Recognition is the raw output of an engine. Confidence is a probability in
// [0, 1]; engines that cannot score their output leave it at zero.
type Recognition struct {
	Text       string
	Language   string
	Confidence float64
}

// Engine recognises speech in a mono 16 kHz WAV file.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, path string) (Recognition, error)
}

type Result struct {
	Text       string
	Language   string
	Confidence float64
}

type Options struct {
	MinBytes int64
}

// Transcriber validates input files and serialises calls into the engine.
type Transcriber struct {
	engine Engine
	opt    Options

	mu   sync.Mutex
	stat func(name string) (os.FileInfo, error)
}

func New(engine Engine, opt Options) *Transcriber {
	if opt.MinBytes <= 0 {
		opt.MinBytes = 1000
	}
	return &Transcriber{engine: engine, opt: opt, stat: os.Stat}
}

func (t *Transcriber) Engine() string { return t.engine.Name() }

func (t *Transcriber) Transcribe(ctx context.Context, path string) (Result, error) {
	info, err := t.stat(path)
	if err != nil || info.IsDir() {
		return Result{}, &inputError{msg: "audio file not found: " + path}
	}
	if info.Size() < t.opt.MinBytes {
		return Result{}, &inputError{msg: "audio file is too small or empty"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recognize(ctx, path)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:       Normalize(rec.Text),
		Language:   rec.Language,
		Confidence: roundConfidence(rec.Confidence),
	}, nil
}

func (t *Transcriber) recognize(ctx context.Context, path string) (rec Recognition, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Engine panicked", "engine", t.engine.Name(), "panic", r)
			err = &ModelError{Msg: fmt.Sprint(r)}
		}
	}()

	rec, err = t.engine.Recognize(ctx, path)
	if err != nil {
		return Recognition{}, &ModelError{Msg: err.Error(), Err: err}
	}
	return rec, nil
}

// roundConfidence clamps c to [0, 1] and keeps three decimals.
func roundConfidence(c float64) float64 {
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	if c >= 1 {
		return 1
	}
	return math.Round(c*1000) / 1000
}

// Normalize trims surrounding whitespace and lower-cases text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
