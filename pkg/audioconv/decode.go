package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// TargetRate is the sample rate speech models expect.
const TargetRate = 16000

// DecodeFile reads a wav, mp3 or ogg (vorbis, opus with -tags opus) file and
// returns mono float32 samples in [-1, 1] at TargetRate. The container is
// chosen by extension, falling back to magic bytes.
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kind, err := sniff(f, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	var pcm []float32
	switch kind {
	case "wav":
		pcm, err = decodeWAV(f)
	case "mp3":
		pcm, err = decodeMP3(f)
	case "ogg":
		pcm, err = decodeOgg(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	return pcm, nil
}

func sniff(f *os.File, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return "wav", nil
	case ".mp3":
		return "mp3", nil
	case ".ogg", ".oga", ".opus":
		return "ogg", nil
	}

	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	switch {
	case string(magic) == "RIFF":
		return "wav", nil
	case string(magic) == "OggS":
		return "ogg", nil
	case len(magic) >= 3 && (string(magic[:3]) == "ID3" || (magic[0] == 0xFF && magic[1]&0xE0 == 0xE0)):
		return "mp3", nil
	}
	return "", fmt.Errorf("unsupported format: %q (supported: wav/mp3/ogg)", ext)
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	ch, sr := 1, int(dec.SampleRate)
	if pb.Format != nil {
		ch = max(ch, pb.Format.NumChannels)
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}

	x := intsToFloat32(pb.Data, depth)
	return resample(downmix(x, ch), sr, TargetRate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	ints := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, ints); err != nil {
		return nil, err
	}

	// go-mp3 always emits interleaved stereo
	x := downmix(int16sToFloat32(ints), 2)
	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return resample(x, sr, TargetRate), nil
}

func decodeOgg(f *os.File) ([]float32, error) {
	pcm, vorbisErr := decodeVorbis(f)
	if vorbisErr == nil {
		return pcm, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	pcm, opusErr := decodeOpus(f)
	if opusErr != nil {
		return nil, fmt.Errorf("not vorbis (%v) nor opus (%w)", vorbisErr, opusErr)
	}
	return pcm, nil
}

func decodeVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}
	return resample(downmix(pcm, format.Channels), format.SampleRate, TargetRate), nil
}
