package notify

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"voxbridge/internal/capture"
)

// Cue plays a short sound before each recording so the player knows when to
// speak. Playback finishes before the recorder starts.
type Cue struct {
	path string

	once    sync.Once
	initErr error
}

func NewCue(path string) *Cue {
	return &Cue{path: path}
}

func (c *Cue) Begin(ctx context.Context, _ capture.Job) {
	if err := c.Play(ctx); err != nil {
		log.Warn("Failed to play cue", "path", c.path, "err", err)
	}
}

func (c *Cue) End(context.Context, capture.Job) {}

func (c *Cue) Play(ctx context.Context) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open cue: %w", err)
	}

	streamer, format, err := decode(c.path, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	c.once.Do(func() {
		c.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(path string, r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wav.Decode(r)
	default:
		return mp3.Decode(r)
	}
}
