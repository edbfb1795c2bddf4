package dtmf

import (
	"strings"
	"time"
)

// LitzConfig configures the inter-digit timing gate: a digit arriving at
// least TimeMS after the previous one, and present in Chars, injects Cmd
// into the macro buffer directly instead of going through the normal
// per-source function table. Named for the original controller's
// litztime/litzchar/litzcmd settings.
type LitzConfig struct {
	TimeMS int
	Chars  string
	Cmd    string
}

// checkLitz reports whether digit qualifies for the LiTZ gate given how
// long it's been since the previous digit from the same source. An unset
// config (any of the three fields empty/zero) never matches.
func checkLitz(cfg LitzConfig, digit byte, sinceLastDigit time.Duration) (macro string, ok bool) {
	if cfg.TimeMS <= 0 || cfg.Chars == "" || cfg.Cmd == "" {
		return "", false
	}
	if sinceLastDigit < time.Duration(cfg.TimeMS)*time.Millisecond {
		return "", false
	}
	if !strings.ContainsRune(cfg.Chars, rune(digit)) {
		return "", false
	}
	return cfg.Cmd, true
}

// FeedWithLitz is Feed plus the LiTZ timing gate: if digit qualifies (per
// checkLitz against the time elapsed since this source's previous digit),
// the gate's command is appended to the macro buffer via ctx.RunMacro and
// the digit is consumed without ever reaching the source's function
// table, matching the original's litz handling returning before normal
// DTMF processing. lastDigitAt is the caller-owned per-source timestamp
// store (rptnode.Node keeps one per source) so the gate works across
// calls without the dispatcher itself tracking wall-clock time.
func (d *Dispatcher) FeedWithLitz(ctx NodeContext, source Source, digit byte, now time.Time, lastDigitAt *time.Time, litz LitzConfig) Completion {
	var sinceLast time.Duration
	if !lastDigitAt.IsZero() {
		sinceLast = now.Sub(*lastDigitAt)
	} else {
		sinceLast = time.Hour // first digit ever: treat as long-elapsed
	}
	*lastDigitAt = now

	if macro, ok := checkLitz(litz, digit, sinceLast); ok {
		ctx.RunMacro(macro)
		d.buf.Reset()
		return CompleteQuiet
	}
	return d.Feed(ctx, source, digit)
}
