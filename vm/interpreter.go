// Package vm executes music programs: it walks the statements of a
// tune.Program, evaluates their expressions, and sends every note, chord and
// rest through a synth to an audio context.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/tunelang/tune"
	"golang.org/x/time/rate"
)

type (
	// State is the part of the performance that directive statements change.
	State struct {
		Tempo      int     // beats per minute, always positive
		Volume     float64 // always within [0, 1]
		Instrument tune.Instrument
	}

	// Interpreter runs programs. Its state persists across calls to Run, so a
	// program can be fed in pieces. An Interpreter is not safe for concurrent
	// use.
	Interpreter struct {
		synth  tune.Synth
		mixer  tune.Mixer
		audio  tune.AudioContext
		config tune.Config
		log    *log.Logger
		trace  *log.Logger

		state       State
		voice       tune.Voice
		frames      frames
		functions   map[string]*tune.FunctionDef
		performance tune.Performance

		sinkLimiter *rate.Limiter
		suppressed  int
	}
)

// ErrCallDepthExceeded is returned by Run when function calls nest deeper than
// the configured maximum.
var ErrCallDepthExceeded = errors.New("maximum call depth exceeded")

// New returns an interpreter that renders with synth, mixes chords with mixer
// and plays on audio. Warnings go to logger; a nil logger discards them.
func New(synth tune.Synth, mixer tune.Mixer, audio tune.AudioContext, config tune.Config, logger *log.Logger) *Interpreter {
	config.Validate()
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	i := &Interpreter{
		synth:       synth,
		mixer:       mixer,
		audio:       audio,
		config:      config,
		log:         logger,
		sinkLimiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
	i.Reset()
	return i
}

// SetTrace makes the interpreter print every statement it executes to
// logger. A nil logger turns tracing off.
func (i *Interpreter) SetTrace(logger *log.Logger) {
	i.trace = logger
}

// Reset forgets all variables, functions and the performance log, and sets
// tempo, volume and instrument back to the configured defaults.
func (i *Interpreter) Reset() {
	inst, _ := tune.ParseInstrument(i.config.Defaults.Instrument)
	i.state = State{
		Tempo:      i.config.Defaults.Tempo,
		Volume:     clamp01(i.config.Defaults.Volume),
		Instrument: inst,
	}
	i.voice = inst.Voice()
	i.frames = newFrames()
	i.functions = make(map[string]*tune.FunctionDef)
	i.performance = tune.Performance{SampleRate: i.synth.SampleRate()}
}

// State returns the current tempo, volume and instrument.
func (i *Interpreter) State() State {
	return i.state
}

// Lookup returns the value bound to a variable in the current scope.
func (i *Interpreter) Lookup(name string) (Value, bool) {
	return i.frames.lookup(name)
}

// Performance returns the log of everything played so far.
func (i *Interpreter) Performance() tune.Performance {
	ret := i.performance
	ret.Events = append([]tune.Event(nil), i.performance.Events...)
	return ret
}

// Run executes the program. Bad notes, instruments, names and nodes only
// produce warnings; Run returns an error only when the context is cancelled or
// calls nest too deep, and stops executing at that point.
func (i *Interpreter) Run(ctx context.Context, program tune.Program) error {
	return i.execBlock(ctx, program.Body)
}

func (i *Interpreter) execBlock(ctx context.Context, body []tune.Statement) error {
	for _, s := range body {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) exec(ctx context.Context, stmt tune.Statement) error {
	if stmt == nil {
		return nil
	}
	if i.trace != nil {
		i.trace.Printf("%*s%v", 2*i.frames.depth(), "", describe(stmt))
	}
	switch s := stmt.(type) {
	case *tune.Tempo:
		i.setTempo(i.Evaluate(s.BPM))
	case *tune.Volume:
		i.setVolume(i.Evaluate(s.Level))
	case *tune.InstrumentSelect:
		i.setInstrument(s.Name)
	case *tune.Note:
		return i.playNote(ctx, s.Pitches, s.Duration)
	case *tune.Chord:
		return i.playChord(ctx, s.Pitches, s.Duration)
	case *tune.Rest:
		i.rest(s.Duration)
	case *tune.Loop:
		for range iterations(i.Evaluate(s.Count).Float()) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := i.execBlock(ctx, s.Body); err != nil {
				return err
			}
		}
	case *tune.While:
		return i.execWhile(ctx, s)
	case *tune.For:
		return i.execFor(ctx, s)
	case *tune.If:
		return i.execIf(ctx, s)
	case *tune.FunctionDef:
		i.functions[s.Name] = s
	case *tune.FunctionCall:
		return i.call(ctx, s)
	case *tune.RefCall:
		return i.refCall(ctx, s)
	case *tune.Assign:
		i.frames.set(s.Var, i.Evaluate(s.Value))
	default:
		i.log.Printf("warning: skipping unsupported statement %q", stmt.NodeType())
	}
	return nil
}

func (i *Interpreter) execWhile(ctx context.Context, s *tune.While) error {
	count := 0
	for i.EvaluateCondition(s.Condition) {
		if count == i.config.MaxWhileIterations {
			i.log.Printf("warning: while loop stopped after %d iterations", count)
			break
		}
		if err := i.execBlock(ctx, s.Body); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
	}
	return nil
}

func (i *Interpreter) execFor(ctx context.Context, s *tune.For) error {
	start := i.Evaluate(s.Start).Float()
	end := i.Evaluate(s.End).Float()
	if !finite(start) || !finite(end) {
		i.log.Printf("warning: invalid range %v:%v for %q, skipping the loop", start, end, s.Var)
		return nil
	}
	for k := bound(start); k < bound(end); k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		i.frames.set(s.Var, Number(float64(k)))
		if err := i.execBlock(ctx, s.Body); err != nil {
			return err
		}
	}
	return nil
}

func (i *Interpreter) execIf(ctx context.Context, s *tune.If) error {
	if i.EvaluateCondition(s.Condition) {
		return i.execBlock(ctx, s.Then)
	}
	for _, e := range s.ElseIfs {
		if i.EvaluateCondition(e.Condition) {
			return i.execBlock(ctx, e.Body)
		}
	}
	return i.execBlock(ctx, s.Else)
}

// call binds the arguments in a new frame, missing ones to 0, and runs the
// function body in it.
func (i *Interpreter) call(ctx context.Context, s *tune.FunctionCall) error {
	fn, ok := i.functions[s.Name]
	if !ok {
		i.log.Printf("warning: undefined function %q", s.Name)
		return nil
	}
	if i.frames.depth() >= i.config.MaxCallDepth {
		return fmt.Errorf("calling %v at depth %d: %w", s.Name, i.frames.depth(), ErrCallDepthExceeded)
	}
	frame := make(map[string]Value, len(fn.Params))
	for k, p := range fn.Params {
		if k < len(s.Args) {
			frame[p] = i.Evaluate(s.Args[k])
		} else {
			frame[p] = Number(0)
		}
	}
	i.frames.push(frame)
	defer i.frames.pop()
	return i.execBlock(ctx, fn.Body)
}

func (i *Interpreter) setTempo(v Value) {
	bpm := math.Trunc(v.Float())
	if !(bpm >= 1 && bpm <= math.MaxInt32) {
		i.log.Printf("warning: invalid tempo %v, keeping %d", v, i.state.Tempo)
		return
	}
	i.state.Tempo = int(bpm)
}

func (i *Interpreter) setVolume(v Value) {
	f := v.Float()
	if math.IsNaN(f) {
		i.log.Printf("warning: invalid volume %v, keeping %v", v, i.state.Volume)
		return
	}
	i.state.Volume = clamp01(f)
}

func (i *Interpreter) setInstrument(name string) {
	inst, err := tune.ParseInstrument(name)
	if err != nil {
		i.log.Printf("warning: %v, using %v", err, inst)
	}
	i.state.Instrument = inst
	i.voice = inst.Voice()
}

// iterations truncates a loop count; negative and NaN counts run no
// iterations.
func iterations(count float64) int {
	if !(count >= 1) {
		return 0
	}
	return int(min(count, math.MaxInt32))
}

// bound truncates a finite range bound to an integer, clamped so that
// counting up to it always terminates.
func bound(f float64) int64 {
	const limit = 1 << 62
	return int64(math.Max(-limit, math.Min(limit, math.Trunc(f))))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func describe(stmt tune.Statement) string {
	if n, ok := stmt.(*tune.Note); ok && n.Sequence {
		return fmt.Sprintf("%v sequence of %d", n.NodeType(), len(n.Pitches))
	}
	return string(stmt.NodeType())
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
