package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two guards in a row with the same return can be merged with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// sentinels: provider and chat errors are wrapped, so == never matches.
func sentinels(m dsl.Matcher) {
	m.Match(`$err == $sentinel`, `$err != $sentinel`).
		Where(m["err"].Type.Is(`error`) &&
			m["sentinel"].Text.Matches(`^(llm|chat|conversation|preview)\.Err[A-Z]\w*$`)).
		Report(`compare wrapped errors with errors.Is`).
		Suggest(`errors.Is($err, $sentinel)`)
}

// logging: structured fields instead of formatted messages.
func logging(m dsl.Matcher) {
	m.Import(`github.com/sirupsen/logrus`)

	m.Match(`$log.Infof($*_)`, `$log.Warnf($*_)`, `$log.Errorf($*_)`, `$log.Debugf($*_)`).
		Where(m["log"].Type.Implements(`logrus.FieldLogger`)).
		Report(`prefer WithField/WithFields plus a constant message over formatted log lines`)

	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`) && !m.File().PkgPath.Matches(`/cmd/`)).
		Report(`use the injected logrus logger instead of printing to stdout`)
}

// requests: outbound provider calls must carry the caller's context.
func requests(m dsl.Matcher) {
	m.Match(`http.NewRequest($method, $url, $body)`).
		Report(`use http.NewRequestWithContext so provider calls honor cancellation`).
		Suggest(`http.NewRequestWithContext(ctx, $method, $url, $body)`)

	m.Match(`http.Get($*_)`, `http.Post($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`the default client has no timeout; use a configured *http.Client with a context`)
}
