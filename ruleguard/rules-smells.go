package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// 1) Two consecutive guards with the same return can be merged with ||
	//      if a { return err }
	//      if b { return err }
	//    => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// 2) Triple-nested loops are expected in the hkl and supercell walks only;
	//    anywhere else they deserve a second look.
	m.Match(`for $*_ { for $*_ { for $*_ { $*_ } } }`).
		Where(!m.File().Name.Matches(`^(builder|lattice)\.go$`)).
		Report(`triple-nested for-loop; consider extracting the inner loops`)
}

func numerics(m dsl.Matcher) {
	// Exact float comparison is almost never what a solver wants; compare
	// against a named tolerance instead. Comparisons with literal zero are allowed.
	m.Match(`$x == $y`, `$x != $y`).
		Where(m["x"].Type.Is(`float64`) && m["y"].Type.Is(`float64`) &&
			!m["x"].Const && !m["y"].Const &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report(`exact float64 comparison; compare |$x-$y| against a tolerance`)

	// Small integer powers are cheaper and exact as multiplications.
	m.Match(`math.Pow($x, 2)`).
		Report(`use $x*$x instead of math.Pow($x, 2)`).
		Suggest(`$x*$x`)

	m.Match(`math.Sqrt($x*$x + $y*$y)`).
		Report(`use math.Hypot($x, $y); it avoids overflow`).
		Suggest(`math.Hypot($x, $y)`)
}

func errorsWrapping(m dsl.Matcher) {
	// Errors must stay inspectable with errors.Is / errors.As up the stack.
	m.Match(`fmt.Errorf($f, $*_, $err)`).
		Where(m["err"].Type.Is(`error`) && !m["f"].Text.Matches(`%w`)).
		Report(`error formatted without %w; wrap it so callers can match it`)

	m.Match(`$_, _ = json.Marshal($_)`).
		Report(`json.Marshal error ignored`)
}
