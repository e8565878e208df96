//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Consecutive guards with the same return can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

func errorWrapping(m dsl.Matcher) {
	// Sentinels such as calculator.ErrNotFound are matched with errors.Is,
	// so wrapping must keep the chain.
	m.Match(`fmt.Errorf($f, $*_, $err)`).
		Where(m["err"].Type.Is("error") && m["f"].Text.Matches(`%v"$`)).
		Report(`error formatted with %v loses the chain; use %w`)

	m.Match(`errors.New(fmt.Sprintf($*args))`).
		Report(`use fmt.Errorf instead of errors.New(fmt.Sprintf(...))`).
		Suggest(`fmt.Errorf($args)`)

	m.Match(`$err == $sentinel`).
		Where(m["err"].Type.Is("error") && m["sentinel"].Text.Matches(`^(calculator|script)\.Err`)).
		Report(`compare sentinel errors with errors.Is`).
		Suggest(`errors.Is($err, $sentinel)`)
}

func computeContracts(m dsl.Matcher) {
	// Compute functions report failures as errors; the dispatcher recovers
	// panics but classifies them as internal faults.
	m.Match(`func $name($_ context.Context, $_ calculator.Input) (calculator.Output, error) { $*_; panic($*_); $*_ }`).
		Report(`compute function $name panics; return an error instead`)

	m.Match(`time.Sleep($_)`).
		Where(m.File().PkgPath.Matches(`/calculator`)).
		Report(`sleeping in calculator code ignores context cancellation; select on ctx.Done()`)
}
