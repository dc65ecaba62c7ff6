// Package pipeline composes capture, transcription and cleanup into a single
// record-then-transcribe request.
package pipeline

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"time"

	"voxbridge/internal/capture"
	"voxbridge/internal/transcribe"
)

type Stage string

const (
	StageRecording    Stage = "recording"
	StageTranscribing Stage = "transcribing"
	StageResponding   Stage = "responding"
)

// Result is serialised as-is into the HTTP and WebSocket responses.
type Result struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text"`
	Error      string  `json:"error,omitempty"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Failure converts err into a failed result.
func Failure(err error) Result {
	return Result{Success: false, Text: "", Error: err.Error()}
}

type Capturer interface {
	Validate(seconds int) error
	Capture(ctx context.Context, seconds int) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, path string) (transcribe.Result, error)
}

// Report describes one finished run.
type Report struct {
	Seconds   int
	Result    Result
	Kind      Kind // empty on success
	StartedAt time.Time
	Elapsed   time.Duration
}

// Observer is told about every finished run.
type Observer interface {
	Observe(ctx context.Context, r Report)
}

type Option func(*Pipeline)

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

type Pipeline struct {
	capture    Capturer
	transcribe Transcriber
	observers  []Observer

	now    func() time.Time
	remove func(name string) error
}

func New(c Capturer, t Transcriber, opts ...Option) *Pipeline {
	p := &Pipeline{
		capture:    c,
		transcribe: t,
		now:        time.Now,
		remove:     os.Remove,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run records for seconds, transcribes the recording and removes it. The
// result is always well formed; failures are reported in Result.Error.
// onStage may be nil.
func (p *Pipeline) Run(ctx context.Context, seconds int, onStage func(Stage)) Result {
	if onStage == nil {
		onStage = func(Stage) {}
	}
	start := p.now()

	res, err := p.run(ctx, seconds, onStage)
	if err != nil {
		log.Warn("Pipeline failed", "seconds", seconds, "kind", Classify(err), "err", err)
		res = Failure(err)
	}
	onStage(StageResponding)

	report := Report{
		Seconds:   seconds,
		Result:    res,
		Kind:      Classify(err),
		StartedAt: start,
		Elapsed:   p.now().Sub(start),
	}
	for _, o := range p.observers {
		o.Observe(ctx, report)
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, seconds int, onStage func(Stage)) (Result, error) {
	if err := p.capture.Validate(seconds); err != nil {
		return Result{}, err
	}
	onStage(StageRecording)
	path, err := p.capture.Capture(ctx, seconds)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := p.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to remove recording", "path", path, "err", err)
		}
	}()

	onStage(StageTranscribing)
	tr, err := p.transcribe.Transcribe(ctx, path)
	if err != nil {
		return Result{}, err
	}
	log.Debug("Transcribed", "seconds", seconds, "text", tr.Text)
	return Result{Success: true, Text: tr.Text, Language: tr.Language, Confidence: tr.Confidence}, nil
}

// Kind groups errors for logs and metric labels.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindToolUnavailable  Kind = "tool_unavailable"
	KindExecutionFailure Kind = "execution_failure"
	KindBusy             Kind = "busy"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

func Classify(err error) Kind {
	var (
		recErr   *capture.RecorderError
		modelErr *transcribe.ModelError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrInvalidDuration),
		errors.Is(err, capture.ErrEmptyCapture),
		errors.Is(err, transcribe.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, capture.ErrToolMissing):
		return KindToolUnavailable
	case errors.Is(err, capture.ErrBusy):
		return KindBusy
	case errors.As(err, &recErr), errors.As(err, &modelErr):
		return KindExecutionFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
