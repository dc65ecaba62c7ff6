package audioconv

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVInfo describes the header of a WAV file.
type WAVInfo struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"-"`
	SizeBytes  int64         `json:"size_bytes"`
}

// Seconds is the duration as a float, for JSON output.
func (i WAVInfo) Seconds() float64 { return i.Duration.Seconds() }

func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return WAVInfo{}, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return WAVInfo{}, errors.New("invalid wav")
	}
	if err := dec.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("wav data chunk: %w", err)
	}
	// Derived from the data chunk; Decoder.Duration counts the whole RIFF payload.
	var dur time.Duration
	if frame := int(dec.NumChans) * int(dec.BitDepth) / 8; frame > 0 && dec.SampleRate > 0 {
		frames := int64(dec.PCMSize / frame)
		dur = time.Duration(frames) * time.Second / time.Duration(dec.SampleRate)
	}

	return WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Duration:   dur,
		SizeBytes:  st.Size(),
	}, nil
}

// WriteWAV encodes mono float32 samples at TargetRate as a 16-bit PCM WAV.
func WriteWAV(w io.WriteSeeker, pcm []float32) error {
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(math.Round(clamp(float64(v), -1, 1) * 32767))
	}

	enc := wav.NewEncoder(w, TargetRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: TargetRate},
		Data:           data,
		SourceBitDepth: 16,
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
