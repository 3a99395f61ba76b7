// Package synth renders tones additively: a waveform family, a stack of
// harmonic partials, vibrato and breath, shaped by an ADSR envelope.
package synth

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/tunelang/tune"
)

// Synth implements tune.Synth. The zero value is not usable; use New.
type Synth struct {
	rate int
	clip float64

	// Seed fixes the noise of every tone rendered after it is set; tones
	// rendered with the same seed and in the same order are bit identical.
	Seed   uint64
	stream atomic.Uint64
}

// New returns a synth that renders at sampleRate and limits every sample to
// ±clip.
func New(sampleRate int, clip float64) *Synth {
	return &Synth{rate: sampleRate, clip: clip, Seed: uint64(time.Now().UnixNano())}
}

func (s *Synth) SampleRate() int {
	return s.rate
}

// Synthesize renders a tone. The buffer has round(rate*duration) samples,
// lies within ±clip and ends with an exact zero. Unknown waveforms render as
// sine.
func (s *Synth) Synthesize(tone tune.Tone) tune.AudioBuffer {
	n := tune.Samples(s.rate, tone.Duration)
	buf := make(tune.AudioBuffer, n)
	if n == 0 {
		return buf
	}
	voice := &tone.Voice
	noise := uniform(rand.New(rand.NewPCG(s.Seed, s.stream.Add(1))))
	wave := make([]float64, n)
	osc, ok := oscillators[voice.Waveform]
	if !ok {
		osc = sine
	}
	f := tone.Frequency
	osc(wave, f, s.rate, voice, noise)
	harmonics(wave, f, s.rate, voice.Harmonics)
	if v := voice.Vibrato; v != nil && v.Depth != 0 {
		for i := range wave {
			wave[i] *= 1 + v.Depth*math.Sin(phase(i, v.Rate, s.rate))
		}
	}
	if voice.Breath > 0 {
		for i := range wave {
			wave[i] += voice.Breath * noise()
		}
	}
	env := Envelope(n, *voice, s.rate)
	volume := math.Max(0, math.Min(1, tone.Volume))
	for i := range wave {
		x := wave[i] * env[i] * volume
		buf[i] = float32(math.Max(-s.clip, math.Min(s.clip, x)))
	}
	return buf
}

// harmonics scales the base wave by the fundamental amplitude, adds the
// higher partials as sines and divides by the sum of all amplitudes. Partials
// at or above the Nyquist frequency are left out.
func harmonics(wave []float64, f float64, sampleRate int, amplitudes []float64) {
	if len(amplitudes) == 0 {
		return
	}
	total := math.Abs(amplitudes[0])
	for i := range wave {
		wave[i] *= amplitudes[0]
	}
	nyquist := float64(sampleRate) / 2
	for k, a := range amplitudes[1:] {
		partial := f * float64(k+2)
		if a == 0 || partial >= nyquist {
			continue
		}
		total += math.Abs(a)
		for i := range wave {
			wave[i] += a * math.Sin(phase(i, partial, sampleRate))
		}
	}
	if total > 0 {
		for i := range wave {
			wave[i] /= total
		}
	}
}
