package synth

import (
	"math"
	"math/rand/v2"

	"github.com/tunelang/tune"
)

// oscillator fills wave with one waveform family at frequency f. noise returns
// uniform values in [-1, 1).
type oscillator func(wave []float64, f float64, sampleRate int, voice *tune.Voice, noise func() float64)

var oscillators = map[tune.Waveform]oscillator{
	tune.WaveSine:       sine,
	tune.WaveSawtooth:   sawtooth,
	tune.WaveSquare:     square,
	tune.WaveSoftSquare: softSquare,
	tune.WaveNoise:      percussion,
	tune.WavePlucked:    plucked,
	tune.WaveBrass:      brass,
	tune.WaveReed:       reed,
}

const (
	kickBelow  = 100.0 // percussion below this frequency is a kick
	snareBelow = 200.0
	pluckBurst = 100 // samples of noise at the start of a plucked note
)

func phase(i int, f float64, sampleRate int) float64 {
	return 2 * math.Pi * f * float64(i) / float64(sampleRate)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func sine(wave []float64, f float64, sampleRate int, _ *tune.Voice, _ func() float64) {
	for i := range wave {
		wave[i] = math.Sin(phase(i, f, sampleRate))
	}
}

func sawtooth(wave []float64, f float64, sampleRate int, voice *tune.Voice, noise func() float64) {
	for i := range wave {
		p := f * float64(i) / float64(sampleRate)
		wave[i] = 2 * (p - math.Floor(p+0.5))
		if voice.Jitter > 0 {
			wave[i] += voice.Jitter * noise()
		}
	}
}

func square(wave []float64, f float64, sampleRate int, _ *tune.Voice, _ func() float64) {
	for i := range wave {
		wave[i] = sign(math.Sin(phase(i, f, sampleRate)))
	}
}

// softSquare is a square wave through a one-pole lowpass at four times the
// fundamental.
func softSquare(wave []float64, f float64, sampleRate int, voice *tune.Voice, noise func() float64) {
	square(wave, f, sampleRate, voice, noise)
	cutoff := 4 * f
	alpha := cutoff / (cutoff + float64(sampleRate)/(2*math.Pi))
	var y float64
	for i, x := range wave {
		if i == 0 {
			y = x
		} else {
			y += alpha * (x - y)
		}
		wave[i] = y
	}
}

// percussion picks a drum sound by register: kick, snare or a metallic hit.
func percussion(wave []float64, f float64, sampleRate int, _ *tune.Voice, noise func() float64) {
	for i := range wave {
		p := phase(i, f, sampleRate)
		switch {
		case f < kickBelow:
			wave[i] = 0.6*math.Sin(p) + 0.4*noise()
		case f < snareBelow:
			wave[i] = 0.8*noise() + 0.2*math.Sin(p)
		default:
			wave[i] = 0.5*(math.Sin(p)+0.5*math.Sin(1.6*p)) + 0.5*noise()
		}
	}
}

func plucked(wave []float64, f float64, sampleRate int, _ *tune.Voice, noise func() float64) {
	for i := range wave {
		t := float64(i) / float64(sampleRate)
		wave[i] = math.Sin(phase(i, f, sampleRate)) * math.Exp(-3*t)
	}
	for i := 0; i < pluckBurst && i < len(wave); i++ {
		wave[i] += 0.1 * noise()
	}
}

// brass adds a short noise buzz over the first tenth of the note.
func brass(wave []float64, f float64, sampleRate int, voice *tune.Voice, noise func() float64) {
	sine(wave, f, sampleRate, voice, noise)
	for i := 0; i < len(wave)/10; i++ {
		wave[i] += 0.1 * noise()
	}
}

func reed(wave []float64, f float64, sampleRate int, _ *tune.Voice, _ func() float64) {
	for i := range wave {
		s := math.Sin(phase(i, f, sampleRate))
		wave[i] = 0.6*sign(s) + 0.4*s
	}
}

func uniform(r *rand.Rand) func() float64 {
	return func() float64 {
		return 2*r.Float64() - 1
	}
}
