package synth

import (
	"github.com/tunelang/tune"
	"github.com/viterin/vek/vek32"
)

// Mixer implements tune.Mixer. Peak normalization scales the sum so its
// largest magnitude is Peak times the volume; count normalization divides the
// sum by the number of mixed buffers.
type Mixer struct {
	Normalize tune.Normalization
	Peak      float64
}

// NewMixer returns the mixer described by the chord configuration.
func NewMixer(c tune.ChordConfig) *Mixer {
	return &Mixer{Normalize: c.Normalize, Peak: c.Peak}
}

func (m *Mixer) Mix(buffers []tune.AudioBuffer, volume float64) (tune.AudioBuffer, int) {
	if len(buffers) == 0 {
		return tune.AudioBuffer{}, 0
	}
	length := len(buffers[0])
	mixed := vek32.Zeros(length)
	count, skipped := 0, 0
	for _, b := range buffers {
		if len(b) != length {
			skipped++
			continue
		}
		vek32.Add_Inplace(mixed, b)
		count++
	}
	if length == 0 || count == 0 {
		return mixed, skipped
	}
	switch m.Normalize {
	case tune.NormalizeCount:
		vek32.DivNumber_Inplace(mixed, float32(count))
	default:
		peak := vek32.Max(vek32.Abs(mixed))
		if peak > 0 {
			vek32.MulNumber_Inplace(mixed, float32(m.Peak*volume)/peak)
		}
	}
	return mixed, skipped
}
