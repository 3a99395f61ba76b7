package vm

import (
	"context"
	"math"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/tunelang/tune"
)

// duration returns the length of a note in seconds. A missing duration is one
// beat; explicit ones are seconds, or beats if so configured. ok is false
// when the duration is not a positive finite number.
func (i *Interpreter) duration(expr tune.Expression) (d float64, ok bool) {
	beat := 60 / float64(i.state.Tempo)
	if expr == nil {
		return beat, true
	}
	v := i.Evaluate(expr)
	d = v.Float()
	if i.config.Durations == tune.Beats {
		d *= beat
	}
	if !(d > 0) || math.IsInf(d, 0) {
		i.log.Printf("warning: invalid duration %v, skipping", v)
		return 0, false
	}
	return d, true
}

// literal evaluates expr to a string. An unbound identifier stands for its own
// name, so "note C4" and "refInstrument(piano)" work however the parser
// tagged the bare word.
func (i *Interpreter) literal(expr tune.Expression) string {
	if id, ok := expr.(*tune.Identifier); ok {
		if _, bound := i.frames.lookup(id.Name); !bound {
			return id.Name
		}
	}
	return i.Evaluate(expr).String()
}

// pitch resolves a pitch expression to its literal and frequency. Bad
// literals warn and sound at the default frequency.
func (i *Interpreter) pitch(expr tune.Expression) (string, float64) {
	literal := i.literal(expr)
	f, err := tune.ResolveNote(literal)
	if err != nil {
		i.log.Printf("warning: %v, playing %v Hz", err, f)
	}
	return literal, f
}

func (i *Interpreter) tone(frequency, duration float64) tune.Tone {
	return tune.Tone{Frequency: frequency, Duration: duration, Voice: i.voice, Volume: i.state.Volume}
}

// playNote plays the pitches one after another, each for the same duration.
func (i *Interpreter) playNote(ctx context.Context, pitches []tune.Expression, durationExpr tune.Expression) error {
	if len(pitches) == 0 {
		i.log.Printf("warning: note without pitch, skipping")
		return nil
	}
	d, ok := i.duration(durationExpr)
	if !ok {
		return nil
	}
	for _, p := range pitches {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, f := i.pitch(p)
		buffer := i.synth.Synthesize(i.tone(f, d))
		i.record(tune.EventNote, len(buffer), []string{name}, []float64{f})
		i.play(buffer)
	}
	return nil
}

// playChord renders all pitches in parallel, waits for every one of them, and
// plays their mix as a single buffer.
func (i *Interpreter) playChord(ctx context.Context, pitches []tune.Expression, durationExpr tune.Expression) error {
	if len(pitches) == 0 {
		i.log.Printf("warning: chord without notes, skipping")
		return nil
	}
	d, ok := i.duration(durationExpr)
	if !ok {
		return nil
	}
	names := make([]string, len(pitches))
	freqs := make([]float64, len(pitches))
	for k, p := range pitches {
		names[k], freqs[k] = i.pitch(p)
	}
	buffers := make([]tune.AudioBuffer, len(freqs))
	swg := sizedwaitgroup.New(i.config.Chord.Workers)
	for k, f := range freqs {
		swg.Add()
		go func(k int, tone tune.Tone) {
			defer swg.Done()
			buffers[k] = i.synth.Synthesize(tone)
		}(k, i.tone(f, d))
	}
	swg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	buffer := buffers[0]
	if len(buffers) > 1 {
		var skipped int
		buffer, skipped = i.mixer.Mix(buffers, i.state.Volume)
		if skipped > 0 {
			i.log.Printf("warning: %d of %d chord notes had a mismatched length and were left out", skipped, len(buffers))
		}
	}
	i.record(tune.EventChord, len(buffer), names, freqs)
	i.play(buffer)
	return nil
}

// rest plays silence, so rendered performances keep their timing.
func (i *Interpreter) rest(durationExpr tune.Expression) {
	d, ok := i.duration(durationExpr)
	if !ok {
		return
	}
	buffer := make(tune.AudioBuffer, tune.Samples(i.synth.SampleRate(), d))
	i.record(tune.EventRest, len(buffer), nil, nil)
	i.play(buffer)
}

func (i *Interpreter) record(kind tune.EventKind, samples int, notes []string, freqs []float64) {
	i.performance.Events = append(i.performance.Events, tune.Event{
		Kind:        kind,
		Start:       i.samplesToDuration(i.performance.Samples),
		Duration:    i.samplesToDuration(samples),
		Instrument:  i.state.Instrument,
		Notes:       notes,
		Frequencies: freqs,
		Volume:      i.state.Volume,
		Tempo:       i.state.Tempo,
	})
}

func (i *Interpreter) samplesToDuration(samples int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(i.synth.SampleRate())
}

// play hands the buffer to the audio context and blocks until it has been
// played. Failures are logged and the performance goes on; a context that
// fails only in part still gets its waiter waited on and closed.
func (i *Interpreter) play(buffer tune.AudioBuffer) {
	i.performance.Samples += len(buffer)
	w, err := i.audio.Play(buffer)
	if err != nil {
		i.sinkFailed(err)
	}
	if w == nil {
		return
	}
	w.Wait()
	if err := w.Close(); err != nil {
		i.sinkFailed(err)
	}
}

func (i *Interpreter) sinkFailed(err error) {
	if !i.sinkLimiter.Allow() {
		i.suppressed++
		return
	}
	if i.suppressed > 0 {
		i.log.Printf("warning: %d audio output failures not shown", i.suppressed)
		i.suppressed = 0
	}
	i.log.Printf("warning: audio output failed: %v", err)
}
