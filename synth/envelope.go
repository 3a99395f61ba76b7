package synth

import (
	"math"

	"github.com/tunelang/tune"
)

// Phases is the length in samples of each envelope phase.
type Phases struct {
	Attack, Decay, Sustain, Release int
}

// EnvelopePhases fits the attack, decay and release times of the voice into n
// samples. Attack, Decay and Release get their configured lengths in that
// order, each cut to what is left; Sustain takes the remainder. Release always
// gets at least one sample so the envelope ends at zero.
func EnvelopePhases(n int, voice tune.Voice, sampleRate int) Phases {
	if n <= 0 {
		return Phases{}
	}
	var p Phases
	p.Attack = min(seconds(voice.Attack, sampleRate), n)
	p.Decay = min(seconds(voice.Decay, sampleRate), n-p.Attack)
	p.Release = min(seconds(voice.Release, sampleRate), n-p.Attack-p.Decay)
	p.Sustain = n - p.Attack - p.Decay - p.Release
	if p.Release == 0 {
		p.Release = 1
		switch {
		case p.Sustain > 0:
			p.Sustain--
		case p.Decay > 0:
			p.Decay--
		default:
			p.Attack--
		}
	}
	return p
}

func seconds(t float64, sampleRate int) int {
	if t <= 0 || math.IsNaN(t) {
		return 0
	}
	return int(math.Round(t * float64(sampleRate)))
}

// Envelope returns the ADSR gain of each of the n samples: a linear attack
// from 0 towards 1, a linear decay towards the sustain level, the sustain
// level, and a linear release from the level reached down to exactly 0 at the
// last sample. Truncated phases keep their slope and are cut short.
func Envelope(n int, voice tune.Voice, sampleRate int) []float64 {
	env := make([]float64, max(n, 0))
	if n <= 0 {
		return env
	}
	p := EnvelopePhases(n, voice, sampleRate)
	sustain := math.Max(0, math.Min(1, voice.Sustain))
	attack := seconds(voice.Attack, sampleRate)
	decay := seconds(voice.Decay, sampleRate)
	level := sustain
	switch {
	case attack > 0:
		level = 0
	case decay > 0:
		level = 1
	}
	i := 0
	for j := 0; j < p.Attack; j++ {
		env[i] = float64(j) / float64(attack)
		i++
	}
	if p.Attack > 0 {
		level = float64(p.Attack) / float64(attack)
	}
	for j := 0; j < p.Decay; j++ {
		env[i] = 1 + (sustain-1)*float64(j)/float64(decay)
		i++
	}
	if p.Decay > 0 {
		level = 1 + (sustain-1)*float64(p.Decay)/float64(decay)
	}
	for j := 0; j < p.Sustain; j++ {
		env[i] = sustain
		i++
	}
	if p.Sustain > 0 {
		level = sustain
	}
	for j := 0; j < p.Release; j++ {
		env[i] = level * (1 - float64(j+1)/float64(p.Release))
		i++
	}
	env[n-1] = 0
	return env
}
