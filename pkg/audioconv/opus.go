//go:build opus

package audioconv

import (
	"io"

	popus "github.com/pekim/opus"
)

const opusRate = 48000

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := max(1, dec.ChannelCount())
	buf := make([]int16, opusRate*ch/2) // ~0.5s per read

	var pcm []float32
	for {
		n, err := dec.Read(buf) // samples per channel
		if n > 0 {
			pcm = append(pcm, int16sToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return resample(downmix(pcm, ch), opusRate, TargetRate), nil
}
