package audioconv

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTone(t *testing.T, name string, seconds float64) string {
	t.Helper()
	pcm := make([]float32, int(seconds*TargetRate))
	for i := range pcm {
		pcm[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/TargetRate))
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := WriteWAV(f, pcm); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func TestWriteAndProbeWAV(t *testing.T) {
	cases := []struct {
		seconds float64
		want    time.Duration
	}{
		{0.5, 500 * time.Millisecond},
		{1.25, 1250 * time.Millisecond},
		{3, 3 * time.Second},
	}
	for _, tc := range cases {
		path := writeTone(t, "tone.wav", tc.seconds)

		info, err := ProbeWAV(path)
		if err != nil {
			t.Fatalf("probe %.2fs: %v", tc.seconds, err)
		}
		if info.SampleRate != TargetRate || info.Channels != 1 || info.BitDepth != 16 {
			t.Fatalf("unexpected format %+v", info)
		}
		if info.Duration != tc.want {
			t.Fatalf("duration = %s, want %s", info.Duration, tc.want)
		}
		if want := int64(44 + 2*int(tc.seconds*TargetRate)); info.SizeBytes != want {
			t.Fatalf("size = %d, want %d", info.SizeBytes, want)
		}
	}
}

func TestDecodeFileRoundTrip(t *testing.T) {
	path := writeTone(t, "tone.wav", 0.25)

	pcm, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pcm) != TargetRate/4 {
		t.Fatalf("expected %d samples, got %d", TargetRate/4, len(pcm))
	}
	want := 0.5 * math.Sin(2*math.Pi*440*10/TargetRate)
	if math.Abs(float64(pcm[10])-want) > 1e-3 {
		t.Fatalf("sample 10 = %f, want ~%f", pcm[10], want)
	}
}

func TestDecodeFileSniffsWithoutExtension(t *testing.T) {
	src := writeTone(t, "tone.wav", 0.1)
	dst := filepath.Join(t.TempDir(), "capture")
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := DecodeFile(dst); err != nil {
		t.Fatalf("decode without extension: %v", err)
	}
}

func TestDecodeFileRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := DecodeFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestDownmix(t *testing.T) {
	got := downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	if got := resample(in, 16000, 16000); &got[0] != &in[0] {
		t.Fatalf("same rate should return input unchanged")
	}

	up := resample(in, 8000, 16000)
	if len(up) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(up))
	}
	if up[1] != 0.5 || up[2] != 1 {
		t.Fatalf("unexpected interpolation %v", up)
	}

	down := resample(make([]float32, 48000), 48000, 16000)
	if len(down) != 16000 {
		t.Fatalf("expected 16000 samples, got %d", len(down))
	}
}
