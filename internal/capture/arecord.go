package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

const recorderPath = "/usr/bin:/bin"

// passthroughEnv lists variables the sound server needs to find the user's session.
var passthroughEnv = []string{
	"HOME",
	"XDG_RUNTIME_DIR",
	"PULSE_SERVER",
	"PULSE_SINK",
	"ALSA_CARD",
}

// Arecord records through the ALSA arecord utility. The process gets an
// argument array and an explicit environment; no shell is involved.
type Arecord struct {
	Binary string
	Env    map[string]string

	lookPath func(file string) (string, error)
	getenv   func(key string) string
}

func NewArecord(binary string, env map[string]string) *Arecord {
	if binary == "" {
		binary = "arecord"
	}
	return &Arecord{
		Binary:   binary,
		Env:      env,
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
	}
}

func (a *Arecord) Name() string { return filepath.Base(a.Binary) }

func (a *Arecord) Record(ctx context.Context, job Job) error {
	bin, err := a.lookPath(a.Binary)
	if err != nil {
		return fmt.Errorf("%s %w. Install with: sudo apt install alsa-utils", a.Name(), ErrToolMissing)
	}

	cmd := exec.CommandContext(ctx, bin, ArecordArgs(job)...)
	cmd.Env = a.environ()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &RecorderError{Tool: a.Name(), Stderr: stderr.String(), Err: err}
	}
	return nil
}

// ArecordArgs builds the arecord argument list for a mono 16 kHz S16_LE WAV.
func ArecordArgs(job Job) []string {
	var args []string
	if job.Device != "" {
		args = append(args, "-D", job.Device)
	}
	return append(args,
		"-f", "S16_LE",
		"-c", strconv.Itoa(Channels),
		"-r", strconv.Itoa(SampleRate),
		"-t", "wav",
		"-d", strconv.Itoa(job.Seconds),
		job.Path,
	)
}

func (a *Arecord) environ() []string {
	env := map[string]string{"PATH": recorderPath}
	for _, key := range passthroughEnv {
		if v := a.getenv(key); v != "" {
			env[key] = v
		}
	}
	for k, v := range a.Env {
		env[k] = v
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
