// Package report renders human readable summaries of performances.
package report

import (
	_ "embed"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/tunelang/tune"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	Summary struct {
		Name       string
		Length     time.Duration
		Samples    int
		SampleRate int
		PCMBytes   uint64 // size of the performance as 16-bit stereo PCM

		Notes, Chords, Rests int
		Instruments          []Instrument
	}

	// Instrument summarizes the notes of one instrument. Lowest and Highest
	// are note literals as written in the program.
	Instrument struct {
		Name            string
		Notes           int
		Lowest, Highest string
		Time            time.Duration
	}
)

//go:embed templates/summary.txt
var summaryText string

var summaryTemplate = template.Must(template.New("summary").Funcs(funcMap()).Parse(summaryText))

func funcMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["duration"] = func(d time.Duration) string {
		if d < time.Millisecond {
			return "0 seconds"
		}
		return durafmt.Parse(d.Round(time.Millisecond)).LimitFirstN(2).String()
	}
	funcs["comma"] = func(n int) string { return humanize.Comma(int64(n)) }
	funcs["bytes"] = humanize.Bytes
	funcs["title"] = cases.Title(language.English).String
	return funcs
}

// Summarize collects the statistics of a performance. Instruments are listed
// in order of first use.
func Summarize(name string, p tune.Performance) Summary {
	if name == "" {
		name = "performance"
	}
	s := Summary{
		Name:       name,
		Length:     p.Length(),
		Samples:    p.Samples,
		SampleRate: p.SampleRate,
		PCMBytes:   uint64(p.Samples) * 4,
	}
	type extremes struct {
		low, high float64
	}
	index := make(map[tune.Instrument]int)
	ranges := make(map[tune.Instrument]*extremes)
	for _, e := range p.Events {
		switch e.Kind {
		case tune.EventNote:
			s.Notes++
		case tune.EventChord:
			s.Chords++
		case tune.EventRest:
			s.Rests++
			continue
		}
		k, ok := index[e.Instrument]
		if !ok {
			k = len(s.Instruments)
			index[e.Instrument] = k
			s.Instruments = append(s.Instruments, Instrument{Name: e.Instrument.String()})
			ranges[e.Instrument] = &extremes{}
		}
		inst, r := &s.Instruments[k], ranges[e.Instrument]
		inst.Time += e.Duration
		for j, note := range e.Notes {
			if j >= len(e.Frequencies) {
				break
			}
			f := e.Frequencies[j]
			if inst.Notes == 0 || f < r.low {
				inst.Lowest, r.low = note, f
			}
			if inst.Notes == 0 || f > r.high {
				inst.Highest, r.high = note, f
			}
			inst.Notes++
		}
	}
	return s
}

// Write renders the summary as text.
func Write(w io.Writer, s Summary) error {
	if err := summaryTemplate.Execute(w, s); err != nil {
		return fmt.Errorf("could not execute summary template: %w", err)
	}
	return nil
}
