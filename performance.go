package tune

import "time"

type (
	EventKind int

	// Event is one sounding (or silent) statement of a performance. Start and
	// Duration are measured on the performance timeline, not wall-clock time.
	Event struct {
		Kind        EventKind
		Start       time.Duration
		Duration    time.Duration
		Instrument  Instrument
		Notes       []string  // note literals as written; empty for rests
		Frequencies []float64 // resolved frequencies, parallel to Notes
		Volume      float64
		Tempo       int
	}

	// Performance is the log of everything a program played.
	Performance struct {
		Events     []Event
		SampleRate int
		Samples    int // total samples handed to the audio context
	}
)

const (
	EventNote EventKind = iota
	EventChord
	EventRest
)

func (k EventKind) String() string {
	switch k {
	case EventNote:
		return "note"
	case EventChord:
		return "chord"
	case EventRest:
		return "rest"
	}
	return "unknown"
}

// Length is the total duration of the performance timeline.
func (p *Performance) Length() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Samples) * time.Second / time.Duration(p.SampleRate)
}

// NotesByInstrument counts the notes played by each instrument; a chord
// counts each of its notes.
func (p *Performance) NotesByInstrument() map[Instrument]int {
	ret := make(map[Instrument]int)
	for _, e := range p.Events {
		if e.Kind == EventRest {
			continue
		}
		ret[e.Instrument] += len(e.Notes)
	}
	return ret
}
