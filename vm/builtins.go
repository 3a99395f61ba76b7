package vm

import (
	"context"
	"maps"
	"slices"

	"github.com/tunelang/tune"
)

type builtin func(i *Interpreter, ctx context.Context, args []tune.Expression) error

var builtins = map[string]builtin{
	"set-volume":     setVolume,
	"set-tempo":      setTempo,
	"set-instrument": setInstrument,
	"play-note":      playNote,

	"refVolume":     setVolume,
	"refTempo":      setTempo,
	"refInst":       setInstrument,
	"refInstrument": setInstrument,
	"play-one-note": playNote,
}

// Builtins lists the names a ref call can use, sorted.
func Builtins() []string {
	return slices.Sorted(maps.Keys(builtins))
}

func (i *Interpreter) refCall(ctx context.Context, s *tune.RefCall) error {
	fn, ok := builtins[s.Name]
	if !ok {
		i.log.Printf("warning: unknown ref function %q", s.Name)
		return nil
	}
	return fn(i, ctx, s.Args)
}

func arg(args []tune.Expression, n int) tune.Expression {
	if n < len(args) {
		return args[n]
	}
	return nil
}

func setVolume(i *Interpreter, _ context.Context, args []tune.Expression) error {
	i.setVolume(i.Evaluate(arg(args, 0)))
	return nil
}

func setTempo(i *Interpreter, _ context.Context, args []tune.Expression) error {
	i.setTempo(i.Evaluate(arg(args, 0)))
	return nil
}

func setInstrument(i *Interpreter, _ context.Context, args []tune.Expression) error {
	i.setInstrument(i.literal(arg(args, 0)))
	return nil
}

func playNote(i *Interpreter, ctx context.Context, args []tune.Expression) error {
	return i.playNote(ctx, []tune.Expression{arg(args, 0)}, arg(args, 1))
}
