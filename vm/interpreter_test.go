package vm_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/tunelang/tune"
	"github.com/tunelang/tune/synth"
	"github.com/tunelang/tune/vm"
)

type fixture struct {
	vm     *vm.Interpreter
	audio  *tune.RenderContext
	output bytes.Buffer
}

func newFixture(t *testing.T, modify ...func(*tune.Config)) *fixture {
	t.Helper()
	cfg := tune.DefaultConfig()
	for _, m := range modify {
		m(&cfg)
	}
	f := &fixture{audio: &tune.RenderContext{Rate: cfg.SampleRate}}
	s := synth.New(cfg.SampleRate, cfg.Clip)
	f.vm = vm.New(s, synth.NewMixer(cfg.Chord), f.audio, cfg, log.New(&f.output, "", 0))
	return f
}

func (f *fixture) run(t *testing.T, body ...tune.Statement) {
	t.Helper()
	if err := f.vm.Run(context.Background(), tune.Program{Body: body}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func (f *fixture) variable(t *testing.T, name string) float64 {
	t.Helper()
	v, ok := f.vm.Lookup(name)
	if !ok {
		t.Fatalf("variable %v is not bound", name)
	}
	return v.Float()
}

func num(f float64) tune.Expression       { return &tune.Number{Value: f} }
func ident(name string) tune.Expression   { return &tune.Identifier{Name: name} }
func note(literal string) tune.Expression { return &tune.NoteLiteral{Value: literal} }
func str(s string) tune.Expression        { return &tune.StringLiteral{Value: s} }

func add(l, r tune.Expression) tune.Expression {
	return &tune.BinOp{Op: "+", Left: l, Right: r}
}

func increment(name string) tune.Statement {
	return &tune.Assign{Var: name, Value: add(ident(name), num(1))}
}

func TestTempoVolumeNote(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Tempo{BPM: num(120)},
		&tune.Volume{Level: num(0.5)},
		&tune.Note{Pitches: []tune.Expression{note("C4")}, Duration: num(1.0)},
	)
	if s := f.vm.State(); s.Tempo != 120 || s.Volume != 0.5 {
		t.Fatalf("state: got %+v, expected tempo 120 and volume 0.5", s)
	}
	if len(f.audio.Buffers) != 1 {
		t.Fatalf("buffers played: got %v, expected 1", len(f.audio.Buffers))
	}
	buf := f.audio.Buffers[0]
	if len(buf) != 44100 {
		t.Fatalf("buffer length: got %v, expected 44100", len(buf))
	}
	if buf[len(buf)-1] != 0 {
		t.Fatalf("terminal sample: got %v, expected 0", buf[len(buf)-1])
	}
	events := f.vm.Performance().Events
	if len(events) != 1 || math.Abs(events[0].Frequencies[0]-261.63) > 0.01 {
		t.Fatalf("events: got %+v, expected one C4 at 261.63 Hz", events)
	}
}

func TestGuitarChord(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.InstrumentSelect{Name: "guitar"},
		&tune.Chord{Pitches: []tune.Expression{note("C4"), note("E4"), note("G4")}, Duration: num(1.0)},
	)
	if len(f.audio.Buffers) != 1 {
		t.Fatalf("buffers played: got %v, expected 1", len(f.audio.Buffers))
	}
	buf := f.audio.Buffers[0]
	if len(buf) != 44100 {
		t.Fatalf("chord length: got %v, expected 44100", len(buf))
	}
	for i, v := range buf {
		if math.Abs(float64(v)) > tune.DefaultConfig().Clip {
			t.Fatalf("sample %v above clip: %v", i, v)
		}
	}
	e := f.vm.Performance().Events[0]
	if e.Kind != tune.EventChord || e.Instrument != tune.Guitar || len(e.Notes) != 3 {
		t.Fatalf("event: got %+v, expected a three note guitar chord", e)
	}
}

func TestVolumeIsClamped(t *testing.T) {
	for _, x := range []float64{-3, -0.1, 0, 0.3, 1, 1.5, math.Inf(1)} {
		f := newFixture(t)
		f.run(t, &tune.Volume{Level: num(x)})
		if v, expected := f.vm.State().Volume, math.Max(0, math.Min(1, x)); v != expected {
			t.Fatalf("volume %v: got %v, expected %v", x, v, expected)
		}
	}
}

func TestWhileFalseRunsZeroTimes(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Assign{Var: "n", Value: num(0)},
		&tune.While{Condition: num(0), Body: []tune.Statement{increment("n")}},
	)
	if n := f.variable(t, "n"); n != 0 {
		t.Fatalf("iterations: got %v, expected 0", n)
	}
}

func TestWhileTrueIsCapped(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Assign{Var: "n", Value: num(0)},
		&tune.While{Condition: num(1), Body: []tune.Statement{increment("n")}},
	)
	if n := f.variable(t, "n"); n != 1000 {
		t.Fatalf("iterations: got %v, expected 1000", n)
	}
	if !strings.Contains(f.output.String(), "while loop stopped after 1000 iterations") {
		t.Fatalf("expected a warning, got %q", f.output.String())
	}
}

func TestWhileCondition(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Assign{Var: "n", Value: num(0)},
		&tune.While{
			Condition: &tune.Comparison{Op: "<", Left: ident("n"), Right: num(5)},
			Body:      []tune.Statement{increment("n")},
		},
	)
	if n := f.variable(t, "n"); n != 5 {
		t.Fatalf("iterations: got %v, expected 5", n)
	}
}

func TestForRange(t *testing.T) {
	f := newFixture(t)
	digits := &tune.Assign{Var: "seen", Value: add(&tune.BinOp{Op: "*", Left: ident("seen"), Right: num(10)}, ident("i"))}
	f.run(t,
		&tune.Assign{Var: "seen", Value: num(0)},
		&tune.For{Var: "i", Start: num(2), End: num(5), Body: []tune.Statement{digits}},
	)
	if seen := f.variable(t, "seen"); seen != 234 {
		t.Fatalf("iterations: got %v, expected 234", seen)
	}
	if i := f.variable(t, "i"); i != 4 {
		t.Fatalf("loop variable after the loop: got %v, expected 4", i)
	}
	f.run(t,
		&tune.Assign{Var: "n", Value: num(0)},
		&tune.For{Var: "j", Start: num(5), End: num(5), Body: []tune.Statement{increment("n")}},
	)
	if n := f.variable(t, "n"); n != 0 {
		t.Fatalf("empty range iterations: got %v, expected 0", n)
	}
}

func TestForRangeBeyondFloatPrecision(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Assign{Var: "n", Value: num(0)},
		&tune.For{Var: "i", Start: num(1e16), End: num(1e16 + 4), Body: []tune.Statement{increment("n")}},
	)
	if n := f.variable(t, "n"); n != 4 {
		t.Fatalf("iterations: got %v, expected 4", n)
	}
}

func TestForRangeWithInfiniteBound(t *testing.T) {
	f := newFixture(t)
	overflow := &tune.BinOp{Op: "-", Left: num(0), Right: &tune.BinOp{Op: "*", Left: num(1e308), Right: num(10)}}
	f.run(t,
		&tune.Assign{Var: "n", Value: num(0)},
		&tune.For{Var: "i", Start: overflow, End: num(1e16 + 64), Body: []tune.Statement{increment("n")}},
		&tune.For{Var: "j", Start: num(0), End: num(math.NaN()), Body: []tune.Statement{increment("n")}},
	)
	if n := f.variable(t, "n"); n != 0 {
		t.Fatalf("iterations: got %v, expected 0", n)
	}
	if !strings.Contains(f.output.String(), "invalid range") {
		t.Fatalf("expected a warning for the infinite bound, got %q", f.output.String())
	}
}

func TestLoopCount(t *testing.T) {
	for _, c := range []struct {
		count    float64
		expected float64
	}{{3, 3}, {2.7, 2}, {0, 0}, {-2, 0}, {math.NaN(), 0}} {
		f := newFixture(t)
		f.run(t,
			&tune.Assign{Var: "n", Value: num(0)},
			&tune.Loop{Count: num(c.count), Body: []tune.Statement{increment("n")}},
		)
		if n := f.variable(t, "n"); n != c.expected {
			t.Fatalf("loop %v: got %v iterations, expected %v", c.count, n, c.expected)
		}
	}
}

func TestIfElseIf(t *testing.T) {
	branch := func() tune.Statement {
		return &tune.If{
			Condition: &tune.Comparison{Op: ">", Left: ident("x"), Right: num(10)},
			Then:      []tune.Statement{&tune.Assign{Var: "b", Value: num(1)}},
			ElseIfs: []tune.ElseIf{
				{Condition: &tune.Comparison{Op: ">", Left: ident("x"), Right: num(5)}, Body: []tune.Statement{&tune.Assign{Var: "b", Value: num(2)}}},
				{Condition: &tune.Comparison{Op: ">", Left: ident("x"), Right: num(0)}, Body: []tune.Statement{&tune.Assign{Var: "b", Value: num(3)}}},
			},
			Else: []tune.Statement{&tune.Assign{Var: "b", Value: num(4)}},
		}
	}
	for _, c := range []struct{ x, expected float64 }{{11, 1}, {7, 2}, {6, 2}, {1, 3}, {-1, 4}} {
		f := newFixture(t)
		f.run(t, &tune.Assign{Var: "x", Value: num(c.x)}, branch())
		if b := f.variable(t, "b"); b != c.expected {
			t.Fatalf("x=%v: got branch %v, expected %v", c.x, b, c.expected)
		}
	}
}

func TestFunctionLocalsDisappear(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Assign{Var: "x", Value: num(1)},
		&tune.FunctionDef{Name: "f", Body: []tune.Statement{
			&tune.Assign{Var: "temp", Value: num(7)},
			&tune.Assign{Var: "x", Value: num(5)},
			&tune.Assign{Var: "inner", Value: ident("x")},
		}},
		&tune.FunctionCall{Name: "f"},
	)
	if _, ok := f.vm.Lookup("temp"); ok {
		t.Fatalf("temp is visible after the call returned")
	}
	if x := f.variable(t, "x"); x != 1 {
		t.Fatalf("x after call: got %v, expected 1", x)
	}
}

func TestFunctionArguments(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Assign{Var: "base", Value: num(60)},
		&tune.FunctionDef{Name: "speed", Params: []string{"a", "b"}, Body: []tune.Statement{
			// base is read from the caller's frame, b was not passed
			&tune.Tempo{BPM: add(add(ident("a"), ident("b")), ident("base"))},
		}},
		&tune.FunctionCall{Name: "speed", Args: []tune.Expression{num(10)}},
		&tune.FunctionDef{Name: "play", Params: []string{"p"}, Body: []tune.Statement{
			&tune.Note{Pitches: []tune.Expression{ident("p")}, Duration: num(0.05)},
		}},
		&tune.FunctionCall{Name: "play", Args: []tune.Expression{note("E4")}},
	)
	if tempo := f.vm.State().Tempo; tempo != 70 {
		t.Fatalf("tempo: got %v, expected 70", tempo)
	}
	events := f.vm.Performance().Events
	if len(events) != 1 || events[0].Notes[0] != "E4" {
		t.Fatalf("events: got %+v, expected one E4", events)
	}
}

func TestFunctionRedefinitionOverwrites(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.FunctionDef{Name: "f", Body: []tune.Statement{&tune.Tempo{BPM: num(100)}}},
		&tune.FunctionDef{Name: "f", Body: []tune.Statement{&tune.Tempo{BPM: num(140)}}},
		&tune.FunctionCall{Name: "f"},
	)
	if tempo := f.vm.State().Tempo; tempo != 140 {
		t.Fatalf("tempo: got %v, expected 140", tempo)
	}
}

func TestRecursionDepthIsLimited(t *testing.T) {
	f := newFixture(t, func(c *tune.Config) { c.MaxCallDepth = 16 })
	err := f.vm.Run(context.Background(), tune.Program{Body: []tune.Statement{
		&tune.FunctionDef{Name: "forever", Body: []tune.Statement{&tune.FunctionCall{Name: "forever"}}},
		&tune.FunctionCall{Name: "forever"},
	}})
	if !errors.Is(err, vm.ErrCallDepthExceeded) {
		t.Fatalf("got error %v, expected %v", err, vm.ErrCallDepthExceeded)
	}
}

func TestRecoverableWarnings(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.FunctionCall{Name: "missing"},
		&tune.RefCall{Name: "no-such-builtin"},
		&tune.InstrumentSelect{Name: "kazoo"},
		&tune.Note{Pitches: []tune.Expression{note("H9")}, Duration: num(0.05)},
		&tune.Unsupported{Type: "pragma"},
		&tune.Tempo{BPM: num(-5)},
	)
	for _, w := range []string{`undefined function "missing"`, `unknown ref function "no-such-builtin"`, "unknown instrument", "invalid note", `unsupported statement "pragma"`, "invalid tempo"} {
		if !strings.Contains(f.output.String(), w) {
			t.Fatalf("expected warning %q, got %q", w, f.output.String())
		}
	}
	s := f.vm.State()
	if s.Instrument != tune.Piano || s.Tempo != 120 {
		t.Fatalf("state: got %+v, expected piano at 120", s)
	}
	if e := f.vm.Performance().Events[0]; e.Frequencies[0] != tune.DefaultFrequency {
		t.Fatalf("invalid note frequency: got %v, expected %v", e.Frequencies[0], tune.DefaultFrequency)
	}
}

func TestRefCalls(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.RefCall{Name: "set-volume", Args: []tune.Expression{num(0.3)}},
		&tune.RefCall{Name: "set-tempo", Args: []tune.Expression{num(90)}},
		&tune.RefCall{Name: "set-instrument", Args: []tune.Expression{str("Violin")}},
		&tune.RefCall{Name: "play-note", Args: []tune.Expression{note("A4"), num(0.1)}},
		&tune.RefCall{Name: "refInstrument", Args: []tune.Expression{ident("organ")}},
	)
	s := f.vm.State()
	if s.Volume != 0.3 || s.Tempo != 90 || s.Instrument != tune.Organ {
		t.Fatalf("state: got %+v, expected volume 0.3, tempo 90, organ", s)
	}
	events := f.vm.Performance().Events
	if len(events) != 1 || events[0].Instrument != tune.Violin || events[0].Frequencies[0] != 440 {
		t.Fatalf("events: got %+v, expected one violin A4", events)
	}
}

func TestNoteSequence(t *testing.T) {
	f := newFixture(t)
	f.run(t, &tune.Note{Pitches: []tune.Expression{note("C4"), note("D4"), note("E4")}, Sequence: true, Duration: num(0.1)})
	if len(f.audio.Buffers) != 3 {
		t.Fatalf("buffers played: got %v, expected 3", len(f.audio.Buffers))
	}
	events := f.vm.Performance().Events
	if events[2].Start != 2*events[0].Duration {
		t.Fatalf("third note start: got %v, expected %v", events[2].Start, 2*events[0].Duration)
	}
}

func TestTraceShowsSequences(t *testing.T) {
	f := newFixture(t)
	var trace bytes.Buffer
	f.vm.SetTrace(log.New(&trace, "", 0))
	f.run(t,
		&tune.Note{Pitches: []tune.Expression{note("C4"), note("D4")}, Sequence: true, Duration: num(0.01)},
		&tune.Note{Pitches: []tune.Expression{note("C4")}, Duration: num(0.01)},
	)
	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	if len(lines) != 2 || lines[0] != "note sequence of 2" || lines[1] != "note" {
		t.Fatalf("got trace %q, expected a sequence line and a plain note line", lines)
	}
}

func TestBuiltins(t *testing.T) {
	names := vm.Builtins()
	if !slices.IsSorted(names) {
		t.Fatalf("got %v, expected sorted names", names)
	}
	for _, name := range []string{"set-volume", "set-tempo", "set-instrument", "play-note", "refInstrument"} {
		if !slices.Contains(names, name) {
			t.Fatalf("got %v, expected it to contain %v", names, name)
		}
	}
}

func TestDurations(t *testing.T) {
	f := newFixture(t)
	f.run(t,
		&tune.Tempo{BPM: num(60)},
		&tune.Note{Pitches: []tune.Expression{note("C4")}},
		&tune.Rest{Duration: num(0.5)},
		&tune.Rest{Duration: num(0)},
	)
	if len(f.audio.Buffers) != 2 {
		t.Fatalf("buffers played: got %v, expected 2", len(f.audio.Buffers))
	}
	if l := len(f.audio.Buffers[0]); l != 44100 {
		t.Fatalf("default duration: got %v samples, expected one beat of 44100", l)
	}
	for i, v := range f.audio.Buffers[1] {
		if v != 0 {
			t.Fatalf("rest sample %v: got %v, expected 0", i, v)
		}
	}
	if l := len(f.audio.Buffers[1]); l != 22050 {
		t.Fatalf("rest: got %v samples, expected 22050", l)
	}
	if !strings.Contains(f.output.String(), "invalid duration") {
		t.Fatalf("expected a warning for the zero rest, got %q", f.output.String())
	}
	g := newFixture(t, func(c *tune.Config) { c.Durations = tune.Beats })
	g.run(t, &tune.Tempo{BPM: num(120)}, &tune.Note{Pitches: []tune.Expression{note("C4")}, Duration: num(2)})
	if l := len(g.audio.Buffers[0]); l != 44100 {
		t.Fatalf("two beats at 120 BPM: got %v samples, expected 44100", l)
	}
}

func TestCancelledRunStops(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.vm.Run(ctx, tune.Program{Body: []tune.Statement{
		&tune.Note{Pitches: []tune.Expression{note("C4")}, Duration: num(0.1)},
	}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, expected %v", err, context.Canceled)
	}
	if len(f.audio.Buffers) != 0 {
		t.Fatalf("buffers played: got %v, expected 0", len(f.audio.Buffers))
	}
}

type failingContext struct{ plays int }

func (c *failingContext) Play(tune.AudioBuffer) (tune.CloserWaiter, error) {
	c.plays++
	return nil, errors.New("device unplugged")
}
func (c *failingContext) SampleRate() int { return 44100 }
func (c *failingContext) Close() error    { return nil }

type countingWaiter struct{ waits, closes *int }

func (w countingWaiter) Wait()        { *w.waits++ }
func (w countingWaiter) Close() error { *w.closes++; return nil }

type countingContext struct{ waits, closes int }

func (c *countingContext) Play(tune.AudioBuffer) (tune.CloserWaiter, error) {
	return countingWaiter{&c.waits, &c.closes}, nil
}
func (c *countingContext) SampleRate() int { return 44100 }
func (c *countingContext) Close() error    { return nil }

func TestPartialAudioFailureStillWaits(t *testing.T) {
	cfg := tune.DefaultConfig()
	device := &countingContext{}
	var output bytes.Buffer
	i := vm.New(synth.New(cfg.SampleRate, cfg.Clip), synth.NewMixer(cfg.Chord), tune.TeeContext(device, &failingContext{}), cfg, log.New(&output, "", 0))
	err := i.Run(context.Background(), tune.Program{Body: []tune.Statement{
		&tune.Rest{Duration: num(0.01)},
		&tune.Note{Pitches: []tune.Expression{note("A4")}, Duration: num(0.01)},
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if device.waits != 2 || device.closes != 2 {
		t.Fatalf("got %v waits and %v closes, expected 2 of each", device.waits, device.closes)
	}
	if !strings.Contains(output.String(), "device unplugged") {
		t.Fatalf("expected the failure to be logged, got %q", output.String())
	}
}

func TestAudioFailuresDoNotStopTheRun(t *testing.T) {
	cfg := tune.DefaultConfig()
	audio := &failingContext{}
	var output bytes.Buffer
	i := vm.New(synth.New(cfg.SampleRate, cfg.Clip), synth.NewMixer(cfg.Chord), audio, cfg, log.New(&output, "", 0))
	err := i.Run(context.Background(), tune.Program{Body: []tune.Statement{
		&tune.Loop{Count: num(20), Body: []tune.Statement{&tune.Rest{Duration: num(0.01)}}},
		&tune.Tempo{BPM: num(100)},
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if audio.plays != 20 || i.State().Tempo != 100 {
		t.Fatalf("got %v plays and tempo %v, expected 20 and 100", audio.plays, i.State().Tempo)
	}
	if n := strings.Count(output.String(), "device unplugged"); n == 0 || n > 5 {
		t.Fatalf("failure warnings: got %v, expected between 1 and 5", n)
	}
}

func TestPrograms(t *testing.T) {
	_, myname, _, _ := runtime.Caller(0)
	files, err := filepath.Glob(filepath.Join(filepath.Dir(myname), "testdata", "*.*"))
	if err != nil {
		t.Fatalf("cannot glob files in the testdata directory: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no test programs found")
	}
	for _, filename := range files {
		basename := filepath.Base(filename)
		t.Run(strings.TrimSuffix(basename, filepath.Ext(basename)), func(t *testing.T) {
			data, err := os.ReadFile(filename)
			if err != nil {
				t.Fatalf("cannot read %v: %v", filename, err)
			}
			program, err := tune.DecodeProgram(data)
			if err != nil {
				t.Fatalf("could not decode the program: %v", err)
			}
			f := newFixture(t)
			f.run(t, program.Body...)
			if strings.Contains(f.output.String(), "warning") {
				t.Fatalf("unexpected warnings: %q", f.output.String())
			}
			if len(f.audio.Buffer()) == 0 {
				t.Fatalf("program played nothing")
			}
		})
	}
}
