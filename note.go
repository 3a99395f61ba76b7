package tune

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultFrequency is returned for notes that cannot be resolved.
	DefaultFrequency = 440.0

	MinOctave = 0
	MaxOctave = 8
)

var ErrInvalidNote = errors.New("invalid note")

// pitchClasses gives the semitone of each natural relative to C.
var pitchClasses = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// Pitch is a parsed note literal.
type Pitch struct {
	Class  int // semitones above C of the letter plus accidental, -1 (Cb) to 12 (B#)
	Octave int // octave digit as written
}

// ParseNote parses a note literal: a letter A-G in either case, an optional
// '#' or 'b' and a single octave digit 0-8, e.g. "C4", "f#3", "Bb2".
func ParseNote(literal string) (Pitch, error) {
	s := strings.TrimSpace(literal)
	if len(s) < 2 || len(s) > 3 {
		return Pitch{}, fmt.Errorf("%w %q: expected letter, optional accidental and octave", ErrInvalidNote, literal)
	}
	return parsePitch(s[:len(s)-1], s[len(s)-1:], literal)
}

func parsePitch(name, octave, literal string) (Pitch, error) {
	if len(name) < 1 || len(name) > 2 {
		return Pitch{}, fmt.Errorf("%w %q: bad pitch name", ErrInvalidNote, literal)
	}
	pc, ok := pitchClasses[upper(name[0])]
	if !ok {
		return Pitch{}, fmt.Errorf("%w %q: unknown letter %q", ErrInvalidNote, literal, name[0])
	}
	if len(name) == 2 {
		switch name[1] {
		case '#':
			pc++
		case 'b':
			pc--
		default:
			return Pitch{}, fmt.Errorf("%w %q: unknown accidental %q", ErrInvalidNote, literal, name[1])
		}
	}
	if len(octave) != 1 || octave[0] < '0'+MinOctave || octave[0] > '0'+MaxOctave {
		return Pitch{}, fmt.Errorf("%w %q: octave must be a digit %d-%d", ErrInvalidNote, literal, MinOctave, MaxOctave)
	}
	oct := int(octave[0] - '0')
	return Pitch{Class: pc, Octave: oct}, nil
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// Semitones returns the signed distance in semitones from A4.
func (p Pitch) Semitones() int {
	return (p.Octave-4)*12 + p.Class - 9
}

// Frequency returns the equal-tempered frequency of the pitch, A4 = 440 Hz.
func (p Pitch) Frequency() float64 {
	return 440 * math.Pow(2, float64(p.Semitones())/12)
}

// MIDIKey returns the MIDI note number of the pitch (C4 = 60), clamped to
// 0-127.
func (p Pitch) MIDIKey() byte {
	k := 69 + p.Semitones()
	if k < 0 {
		k = 0
	}
	if k > 127 {
		k = 127
	}
	return byte(k)
}

// Frequency resolves a pitch name such as "C#" or "Db" and an octave to Hz.
// On malformed input it returns DefaultFrequency and an error wrapping
// ErrInvalidNote, so callers can keep playing and report a warning.
func Frequency(pitchName string, octave int) (float64, error) {
	if octave < MinOctave || octave > MaxOctave {
		return DefaultFrequency, fmt.Errorf("%w %s%d: octave out of range %d-%d", ErrInvalidNote, pitchName, octave, MinOctave, MaxOctave)
	}
	p, err := parsePitch(strings.TrimSpace(pitchName), string(rune('0'+octave)), fmt.Sprintf("%s%d", pitchName, octave))
	if err != nil {
		return DefaultFrequency, err
	}
	return p.Frequency(), nil
}

// ResolveNote parses a note literal and returns its frequency, or
// DefaultFrequency and an error wrapping ErrInvalidNote.
func ResolveNote(literal string) (float64, error) {
	p, err := ParseNote(literal)
	if err != nil {
		return DefaultFrequency, err
	}
	return p.Frequency(), nil
}
