package tune

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

// Instrument is one of the fixed set of voices a program can select.
type Instrument int

const (
	Piano Instrument = iota
	Violin
	Guitar
	Drums
	Flute
	Trumpet
	Bass
	Organ
	Saxophone
	Synthesizer
	NumInstruments
)

var instrumentNames = [NumInstruments]string{
	"piano", "violin", "guitar", "drums", "flute",
	"trumpet", "bass", "organ", "saxophone", "synth",
}

var ErrUnknownInstrument = errors.New("unknown instrument")

func (i Instrument) String() string {
	if i < 0 || i >= NumInstruments {
		return fmt.Sprintf("Instrument(%d)", int(i))
	}
	return instrumentNames[i]
}

// Instruments lists all instruments in their canonical order.
func Instruments() []Instrument {
	ret := make([]Instrument, NumInstruments)
	for i := range ret {
		ret[i] = Instrument(i)
	}
	return ret
}

// ParseInstrument maps a name to an instrument. Matching ignores case and
// surrounding whitespace. Unknown names return Piano and an error wrapping
// ErrUnknownInstrument.
func ParseInstrument(name string) (Instrument, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range instrumentNames {
		if s == n {
			return Instrument(i), nil
		}
	}
	return Piano, fmt.Errorf("%w %q, available: %s", ErrUnknownInstrument, name, strings.Join(instrumentNames[:], ", "))
}

// Waveform names the base oscillator family of a voice.
type Waveform string

const (
	WaveSine       Waveform = "sine"
	WaveSawtooth   Waveform = "sawtooth"
	WaveSquare     Waveform = "square"
	WaveSoftSquare Waveform = "softsquare"
	WaveNoise      Waveform = "noise"
	WavePlucked    Waveform = "plucked"
	WaveBrass      Waveform = "brass"
	WaveReed       Waveform = "reed"
)

type (
	// Voice holds the synthesis parameters of one instrument. Attack, Decay
	// and Release are in seconds; Sustain is a level between 0 and 1.
	Voice struct {
		Waveform Waveform
		Attack   float64
		Decay    float64
		Sustain  float64
		Release  float64

		// Harmonics are the amplitudes of the partials; index 0 is the
		// fundamental, index i the partial at (i+1) times the frequency.
		Harmonics []float64 `yaml:",flow"`

		Vibrato *Vibrato `yaml:",omitempty"`
		Breath  float64  `yaml:",omitempty"` // level of the additive breath noise
		Jitter  float64  `yaml:",omitempty"` // level of the bowing noise of sawtooth voices
	}

	// Vibrato modulates the amplitude by 1 + Depth*sin(2*pi*Rate*t).
	Vibrato struct {
		Rate  float64 // Hz
		Depth float64
	}
)

//go:embed voices.yml
var voicesYaml []byte

var voices = loadVoices()

func loadVoices() [NumInstruments]Voice {
	var table map[string]Voice
	if err := yaml.UnmarshalStrict(voicesYaml, &table); err != nil {
		panic(fmt.Errorf("failed to unmarshal voices: %w", err))
	}
	var ret [NumInstruments]Voice
	for i, name := range instrumentNames {
		v, ok := table[name]
		if !ok {
			panic(fmt.Errorf("voices.yml has no voice for %v", name))
		}
		ret[i] = v
	}
	return ret
}

// Voice returns a copy of the voice model of the instrument; out of range
// instruments get the piano voice.
func (i Instrument) Voice() Voice {
	if i < 0 || i >= NumInstruments {
		i = Piano
	}
	return voices[i].Copy()
}

// LookupVoice returns the voice model for an instrument name. For unknown names
// it returns the piano voice and false.
func LookupVoice(name string) (Voice, bool) {
	i, err := ParseInstrument(name)
	return i.Voice(), err == nil
}

func (v *Voice) Copy() Voice {
	ret := *v
	ret.Harmonics = make([]float64, len(v.Harmonics))
	copy(ret.Harmonics, v.Harmonics)
	if v.Vibrato != nil {
		vib := *v.Vibrato
		ret.Vibrato = &vib
	}
	return ret
}
