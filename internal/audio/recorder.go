package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"

	"voxbridge/internal/capture"
)

const frameSize = 1024

// Recorder captures from a PortAudio input device. Init must be called once
// before the first Record and Close at shutdown.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio input %w: %w", capture.ErrToolMissing, err)
	}
	return nil
}

func (r *Recorder) Close() {
	if err := portaudio.Terminate(); err != nil {
		log.Warn("Failed to terminate portaudio", "err", err)
	}
}

func (r *Recorder) Name() string { return "portaudio" }

// Record reads exactly job.Seconds of mono 16 kHz samples and writes them as
// a 16-bit WAV file to job.Path.
func (r *Recorder) Record(ctx context.Context, job capture.Job) error {
	dev, err := inputDevice(job.Device)
	if err != nil {
		return fmt.Errorf("audio input %w: %w", capture.ErrToolMissing, err)
	}

	buf := make([]int16, frameSize)
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = capture.Channels
	params.SampleRate = capture.SampleRate
	params.FramesPerBuffer = len(buf)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("audio input %w: %w", capture.ErrToolMissing, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return &capture.RecorderError{Tool: r.Name(), Err: err}
	}
	defer stream.Stop()

	total := job.Seconds * capture.SampleRate
	samples := make([]int, 0, total)
	for len(samples) < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(); err != nil {
			return &capture.RecorderError{Tool: r.Name(), Err: err}
		}
		for _, s := range buf {
			samples = append(samples, int(s))
		}
	}

	return writeWAV(job.Path, samples[:total])
}

func writeWAV(path string, samples []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, capture.SampleRate, capture.BitDepth, capture.Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: capture.Channels, SampleRate: capture.SampleRate},
		Data:           samples,
		SourceBitDepth: capture.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// inputDevice returns the input device with the given name, or the default
// input when name is empty.
func inputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input device named %q", name)
}
