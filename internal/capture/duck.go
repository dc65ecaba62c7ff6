package capture

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fadeStep struct {
	id   int
	from int
	to   int
}

// Ducker lowers the volume of other PulseAudio playback streams while a
// recording runs, so game audio does not bleed into the microphone. Streams
// whose application.name is in selfNames are left alone.
type Ducker struct {
	mu        sync.Mutex
	active    bool
	selfNames []string
	original  map[int]int // sink-input id -> volume % before ducking
	factor    float64
	minVolume int
	fade      time.Duration

	pactl func(ctx context.Context, args ...string) ([]byte, error)
	sleep func(time.Duration)
}

func NewDucker(selfNames []string, factor float64, minVolume int, fade time.Duration) *Ducker {
	minVolume = max(0, min(minVolume, maxVolume))
	return &Ducker{
		selfNames: slices.Clone(selfNames),
		original:  make(map[int]int),
		factor:    factor,
		minVolume: minVolume,
		fade:      fade,
		pactl:     runPactl,
		sleep:     time.Sleep,
	}
}

func (d *Ducker) Begin(ctx context.Context, _ Job) {
	if err := d.Duck(ctx); err != nil {
		log.Warn("Failed to duck playback", "err", err)
	}
}

func (d *Ducker) End(ctx context.Context, _ Job) {
	if err := d.Restore(context.WithoutCancel(ctx)); err != nil {
		log.Warn("Failed to restore playback", "err", err)
	}
}

// Duck fades every foreign stream to volume*factor, never below minVolume.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.list(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)
	var steps []fadeStep
	for _, s := range streams {
		if slices.Contains(d.selfNames, s.AppName) {
			continue
		}
		target := float64(s.Volume) * d.factor
		target = math.Max(target, float64(d.minVolume))
		target = math.Min(target, maxVolume)

		d.original[s.ID] = s.Volume
		steps = append(steps, fadeStep{id: s.ID, from: s.Volume, to: int(math.Round(target))})
	}

	if err := d.apply(ctx, steps); err != nil {
		return err
	}
	d.active = true
	return nil
}

// Restore fades ducked streams back to their original volume. Streams that
// appeared after Duck are not touched.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.list(ctx)
	if err != nil {
		return err
	}

	var steps []fadeStep
	for _, s := range streams {
		orig, ok := d.original[s.ID]
		if !ok || slices.Contains(d.selfNames, s.AppName) {
			continue
		}
		steps = append(steps, fadeStep{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.apply(ctx, steps); err != nil {
		return err
	}
	d.original = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) list(ctx context.Context) ([]sinkInput, error) {
	out, err := d.pactl(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

// apply moves every stream from its start to its target volume in 10ms steps
// over the fade duration.
func (d *Ducker) apply(ctx context.Context, steps []fadeStep) error {
	if len(steps) == 0 {
		return nil
	}

	const stepDuration = 10 * time.Millisecond
	n := max(1, int(d.fade/stepDuration))
	if d.fade <= 0 {
		n = 0
	}

	for i := 0; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if n > 0 {
			frac = float64(i) / float64(n)
		}
		for _, s := range steps {
			v := int(math.Round(float64(s.from) + float64(s.to-s.from)*frac))
			if err := d.setVolume(ctx, s.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", s.id, err)
			}
		}
		if i < n {
			d.sleep(d.fade / time.Duration(n))
		}
	}
	return nil
}

func (d *Ducker) setVolume(ctx context.Context, id int, percent int) error {
	percent = max(0, min(percent, maxVolume))
	_, err := d.pactl(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	return err
}

func runPactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// parseSinkInputs extracts id, first volume percentage and application.name
// from `pactl list sink-inputs` output.
func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []sinkInput
	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		s := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			}

			if rest, ok := strings.CutPrefix(line, "application.name ="); ok && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}
	return res
}
