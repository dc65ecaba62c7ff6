package capture

import (
	"context"
	"strings"
	"testing"
	"time"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Sink: 0
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Godot Engine"
		media.name = "audio stream"
Sink Input #42
	Driver: protocol-native.c
	Volume: mono: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "voxbridge"
Sink Input #oops
	Volume: mono: 65536 / 100% / 0.00 dB
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(sinkInputs)
	if len(got) != 2 {
		t.Fatalf("expected 2 sink inputs, got %+v", got)
	}
	if got[0] != (sinkInput{ID: 41, Volume: 80, AppName: "Godot Engine"}) {
		t.Fatalf("unexpected first input %+v", got[0])
	}
	if got[1] != (sinkInput{ID: 42, Volume: 100, AppName: "voxbridge"}) {
		t.Fatalf("unexpected second input %+v", got[1])
	}
	if parseSinkInputs("") != nil {
		t.Fatalf("expected nil for empty output")
	}
}

// fakePactl serves list output and records volume changes.
type fakePactl struct {
	list string
	sets []string
}

func (f *fakePactl) run(_ context.Context, args ...string) ([]byte, error) {
	if args[0] == "list" {
		return []byte(f.list), nil
	}
	f.sets = append(f.sets, strings.Join(args[1:], " "))
	return nil, nil
}

func TestDuckerDuckAndRestore(t *testing.T) {
	fake := &fakePactl{list: sinkInputs}
	d := NewDucker([]string{"voxbridge"}, 0.25, 10, 0)
	d.pactl = fake.run
	d.sleep = func(time.Duration) {}

	if err := d.Duck(context.Background()); err != nil {
		t.Fatalf("duck: %v", err)
	}
	if len(fake.sets) != 1 || fake.sets[0] != "41 20%" {
		t.Fatalf("expected only the game stream ducked to 20%%, got %v", fake.sets)
	}

	// second duck is a no-op while active
	if err := d.Duck(context.Background()); err != nil || len(fake.sets) != 1 {
		t.Fatalf("expected idempotent duck, sets=%v err=%v", fake.sets, err)
	}

	fake.list = strings.Replace(sinkInputs, "80%", "20%", 2)
	fake.sets = nil
	if err := d.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(fake.sets) != 1 || fake.sets[0] != "41 80%" {
		t.Fatalf("expected game stream restored to 80%%, got %v", fake.sets)
	}
}

func TestDuckerRespectsMinVolumeAndFades(t *testing.T) {
	fake := &fakePactl{list: sinkInputs}
	d := NewDucker([]string{"voxbridge"}, 0, 30, 40*time.Millisecond)
	d.pactl = fake.run
	var slept time.Duration
	d.sleep = func(dur time.Duration) { slept += dur }

	if err := d.Duck(context.Background()); err != nil {
		t.Fatalf("duck: %v", err)
	}
	if len(fake.sets) != 5 {
		t.Fatalf("expected 5 fade steps, got %v", fake.sets)
	}
	if fake.sets[0] != "41 80%" || fake.sets[4] != "41 30%" {
		t.Fatalf("unexpected fade %v", fake.sets)
	}
	if slept != 40*time.Millisecond {
		t.Fatalf("expected 40ms of fade sleeps, got %s", slept)
	}
}
