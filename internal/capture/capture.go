package capture

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Fixed sample format of every recording.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16
)

// Job describes one fixed-duration recording.
type Job struct {
	Path    string
	Seconds int
	Device  string
}

// Recorder writes a mono 16 kHz 16-bit WAV file for job, blocking for the
// whole duration.
type Recorder interface {
	Name() string
	Record(ctx context.Context, job Job) error
}

// Hook runs around every recording. End is called whatever the outcome.
type Hook interface {
	Begin(ctx context.Context, job Job)
	End(ctx context.Context, job Job)
}

type Policy string

const (
	PolicyQueue  Policy = "queue"
	PolicyReject Policy = "reject"
)

type Options struct {
	Device     string
	MaxSeconds int
	MinBytes   int64
	TempDir    string
	Policy     Policy
	Hooks      []Hook
}

// Capturer owns the recording device: at most one recording runs at a time.
type Capturer struct {
	rec  Recorder
	opt  Options
	slot chan struct{}

	createTemp func(dir, pattern string) (*os.File, error)
	stat       func(name string) (os.FileInfo, error)
	remove     func(name string) error
}

func New(rec Recorder, opt Options) *Capturer {
	if opt.MaxSeconds <= 0 {
		opt.MaxSeconds = 30
	}
	if opt.Policy == "" {
		opt.Policy = PolicyQueue
	}
	return &Capturer{
		rec:        rec,
		opt:        opt,
		slot:       make(chan struct{}, 1),
		createTemp: os.CreateTemp,
		stat:       os.Stat,
		remove:     os.Remove,
	}
}

// Validate reports whether seconds is an accepted recording length.
func (c *Capturer) Validate(seconds int) error {
	if seconds <= 0 || seconds > c.opt.MaxSeconds {
		return fmt.Errorf("%w: %d (want 1..%d seconds)", ErrInvalidDuration, seconds, c.opt.MaxSeconds)
	}
	return nil
}

// ParseSeconds reads a command-line duration. Fractions are truncated toward
// zero, so "2.5" records for 2 seconds.
func ParseSeconds(raw string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	return int(f), nil
}

// Capture records seconds of audio into a fresh temporary WAV file and
// returns its path. The caller owns the file. On error no file is left behind.
func (c *Capturer) Capture(ctx context.Context, seconds int) (string, error) {
	if err := c.Validate(seconds); err != nil {
		return "", err
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	path, err := c.allocate()
	if err != nil {
		return "", err
	}

	job := Job{Path: path, Seconds: seconds, Device: c.opt.Device}
	if err := c.record(ctx, job); err != nil {
		_ = c.remove(path)
		return "", err
	}

	info, err := c.stat(path)
	if err != nil || info.Size() < c.opt.MinBytes {
		_ = c.remove(path)
		return "", ErrEmptyCapture
	}

	log.Debug("Captured", "path", path, "seconds", seconds, "bytes", info.Size())
	return path, nil
}

func (c *Capturer) acquire(ctx context.Context) (func(), error) {
	release := func() { <-c.slot }

	if c.opt.Policy == PolicyReject {
		select {
		case c.slot <- struct{}{}:
			return release, nil
		default:
			return nil, ErrBusy
		}
	}

	select {
	case c.slot <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Capturer) allocate() (string, error) {
	f, err := c.createTemp(c.opt.TempDir, "voxbridge-*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = c.remove(path)
		return "", fmt.Errorf("temp file: %w", err)
	}
	return path, nil
}

func (c *Capturer) record(ctx context.Context, job Job) error {
	for _, h := range c.opt.Hooks {
		h.Begin(ctx, job)
	}
	defer func() {
		for i := len(c.opt.Hooks) - 1; i >= 0; i-- {
			c.opt.Hooks[i].End(ctx, job)
		}
	}()

	log.Info("Recording", "recorder", c.rec.Name(), "seconds", job.Seconds, "device", job.Device)
	return c.rec.Record(ctx, job)
}
