package script

import (
	"context"
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

// hookInterval is the number of VM instructions between cancellation checks.
const hookInterval = 1000

const computeFunc = "compute"

// program is a syntax-checked Lua chunk that defines compute(input).
type program struct {
	id     string
	source string
}

// compile loads source once in a scratch state to surface syntax errors and a
// missing compute function at manifest load rather than at first execution.
func compile(id, source string) (*program, error) {
	l := newState()
	if err := load(l, id, source); err != nil {
		return nil, err
	}
	l.Global(computeFunc)
	if l.TypeOf(-1) != lua.TypeFunction {
		return nil, fmt.Errorf("%w: %s: %s(input) is not defined", ErrInvalidScript, id, computeFunc)
	}
	return &program{id: id, source: source}, nil
}

// compute runs the program in a fresh state so no globals survive between
// calls. The debug hook aborts the script once ctx is done.
func (p *program) compute(ctx context.Context, in calculator.Input) (calculator.Output, error) {
	l := newState()
	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		if err := ctx.Err(); err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
	}, lua.MaskCount, hookInterval)

	if err := load(l, p.id, p.source); err != nil {
		return calculator.Output{}, err
	}
	l.Global(computeFunc)
	pushInput(l, in)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return calculator.Output{}, ctxErr
		}
		return calculator.Output{}, fmt.Errorf("lua: %w", err)
	}
	return p.readOutput(l)
}

// newState opens only the side-effect free standard libraries.
func newState() *lua.State {
	l := lua.NewState()
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "require"} {
		l.PushNil()
		l.SetGlobal(name)
	}
	return l
}

func load(l *lua.State, id, source string) error {
	if err := lua.LoadString(l, source); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidScript, id, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidScript, id, err)
	}
	return nil
}

func pushInput(l *lua.State, in calculator.Input) {
	l.NewTable()
	for name, v := range in.Values() {
		switch x := v.(type) {
		case float64:
			l.PushNumber(x)
		case string:
			l.PushString(x)
		case bool:
			l.PushBoolean(x)
		default:
			continue
		}
		l.SetField(-2, name)
	}
}

// readOutput accepts either a bare number or a table
// {result=, breakdown={}, recommendation=, risk_level=}.
func (p *program) readOutput(l *lua.State) (calculator.Output, error) {
	switch l.TypeOf(-1) {
	case lua.TypeNumber:
		n, _ := l.ToNumber(-1)
		return calculator.Output{Result: n}, nil
	case lua.TypeTable:
	default:
		return calculator.Output{}, p.malformed("compute returned %s, want number or table", lua.TypeNameOf(l, -1))
	}

	idx := l.AbsIndex(-1)
	var out calculator.Output

	l.Field(idx, "result")
	if l.TypeOf(-1) != lua.TypeNumber {
		return calculator.Output{}, p.malformed("result must be a number, got %s", lua.TypeNameOf(l, -1))
	}
	out.Result, _ = l.ToNumber(-1)
	l.Pop(1)

	l.Field(idx, "breakdown")
	switch l.TypeOf(-1) {
	case lua.TypeNil:
	case lua.TypeTable:
		breakdown, err := p.readBreakdown(l, l.AbsIndex(-1))
		if err != nil {
			return calculator.Output{}, err
		}
		out.Breakdown = breakdown
	default:
		return calculator.Output{}, p.malformed("breakdown must be a table, got %s", lua.TypeNameOf(l, -1))
	}
	l.Pop(1)

	recommendation, hasRec := p.optString(l, idx, "recommendation")
	risk, hasRisk := p.optString(l, idx, "risk_level")
	if hasRec || hasRisk {
		out.Analysis = &calculator.Analysis{Recommendation: recommendation, RiskLevel: calculator.RiskLevel(risk)}
	}
	return out, nil
}

func (p *program) readBreakdown(l *lua.State, idx int) (map[string]float64, error) {
	breakdown := make(map[string]float64)
	l.PushNil()
	for l.Next(idx) {
		if l.TypeOf(-2) != lua.TypeString || l.TypeOf(-1) != lua.TypeNumber {
			return nil, p.malformed("breakdown entries must map names to numbers")
		}
		key, _ := l.ToString(-2)
		breakdown[key], _ = l.ToNumber(-1)
		l.Pop(1)
	}
	return breakdown, nil
}

func (p *program) optString(l *lua.State, idx int, name string) (string, bool) {
	l.Field(idx, name)
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeString {
		return "", false
	}
	s, _ := l.ToString(-1)
	return s, true
}

func (p *program) malformed(format string, args ...any) error {
	return &calculator.ComputeError{
		ID:    p.id,
		Cause: calculator.CauseMalformedOutput,
		Err:   fmt.Errorf("%w: %s", calculator.ErrMalformedOutput, fmt.Sprintf(format, args...)),
	}
}
