// Package gomidi exports performances as Standard MIDI Files.
package gomidi

import (
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/tunelang/tune"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	TicksPerQuarter = 960

	// the file tempo is fixed; event times are converted from wall-clock time
	// at this tempo, so tempo changes in the program are already baked in.
	fileBPM = 120.0

	drumChannel = 9
)

// General MIDI programs of the instruments.
var programs = [tune.NumInstruments]uint8{
	tune.Piano:       0,
	tune.Violin:      40,
	tune.Guitar:      24,
	tune.Drums:       0,
	tune.Flute:       73,
	tune.Trumpet:     56,
	tune.Bass:        32,
	tune.Organ:       19,
	tune.Saxophone:   65,
	tune.Synthesizer: 80,
}

type timedMsg struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// Channel returns the MIDI channel and General MIDI program of an instrument.
// Drums play on channel 10 (index 9), where the program is ignored.
func Channel(inst tune.Instrument) (channel, program uint8) {
	if inst < 0 || inst >= tune.NumInstruments {
		inst = tune.Piano
	}
	switch {
	case inst == tune.Drums:
		return drumChannel, 0
	case inst >= drumChannel:
		return uint8(inst) + 1, programs[inst]
	}
	return uint8(inst), programs[inst]
}

// Ticks converts a time on the performance timeline to ticks of the file.
func Ticks(d time.Duration) uint32 {
	return uint32(math.Round(d.Seconds() * fileBPM / 60 * TicksPerQuarter))
}

// WriteSMF writes the performance as a format 1 MIDI file: a tempo track
// followed by one track per instrument, in order of first use. Rests only show
// up as gaps between notes.
func WriteSMF(w io.Writer, p tune.Performance) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	var tempo smf.Track
	tempo.Add(0, smf.MetaTrackSequenceName("tune"))
	tempo.Add(0, smf.MetaTempo(fileBPM))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return fmt.Errorf("cannot add tempo track: %w", err)
	}
	var order []tune.Instrument
	tracks := make(map[tune.Instrument][]timedMsg)
	for _, e := range p.Events {
		if e.Kind == tune.EventRest {
			continue
		}
		if _, ok := tracks[e.Instrument]; !ok {
			order = append(order, e.Instrument)
		}
		channel, _ := Channel(e.Instrument)
		on, off := Ticks(e.Start), Ticks(e.Start+e.Duration)
		for _, name := range e.Notes {
			key := byte(69)
			if pitch, err := tune.ParseNote(name); err == nil {
				key = pitch.MIDIKey()
			}
			tracks[e.Instrument] = append(tracks[e.Instrument],
				timedMsg{tick: on, msg: midi.NoteOn(channel, key, velocity(e.Volume))},
				timedMsg{tick: off, off: true, msg: midi.NoteOff(channel, key)})
		}
	}
	for _, inst := range order {
		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(inst.String()))
		if inst != tune.Drums {
			channel, program := Channel(inst)
			track.Add(0, midi.ProgramChange(channel, program))
		}
		msgs := tracks[inst]
		// note offs go first so that repeated keys retrigger
		slices.SortStableFunc(msgs, func(a, b timedMsg) int {
			if a.tick != b.tick {
				return int(a.tick) - int(b.tick)
			}
			if a.off == b.off {
				return 0
			}
			if a.off {
				return -1
			}
			return 1
		})
		var last uint32
		for _, m := range msgs {
			track.Add(m.tick-last, m.msg)
			last = m.tick
		}
		track.Close(0)
		if err := s.Add(track); err != nil {
			return fmt.Errorf("cannot add %v track: %w", inst, err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("cannot write MIDI file: %w", err)
	}
	return nil
}

func velocity(volume float64) uint8 {
	return uint8(max(1, min(127, math.Round(volume*127))))
}
