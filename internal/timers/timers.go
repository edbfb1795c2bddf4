// Package timers implements the node controller's down-counter bank as a
// single struct with an advance method, replacing the scattered per-variable
// millisecond counters the original C controller kept (§9 "timer soup"
// redesign note). Each timer is independently armed, advanced, and tested.
package timers

// Timers aggregates every named down-counter a node controller tick needs.
// A zero value timer is disarmed (Active returns false). All durations are
// tracked in milliseconds; advance(elapsed_ms) is the only mutator that
// moves time forward, so the whole bank can be driven deterministically by
// tests without a real clock.
type Timers struct {
	hang          Timer // hang-time: courtesy tone to unkey
	altHang       Timer // alternate hang-time when a link is active
	totalTimeout  Timer // TOT: max continuous keyup
	identifier    Timer // time until next forced/polite ID
	tail          Timer // tail-message-time
	tailSquashed  Timer // tail cut short by a new keyup
	scheduler     Timer // minute-granular scheduler tick
	parrot        Timer // parrot playback delay ("once"/"always")
	linkPost      Timer // post-link-unkey hang
	keyPost       Timer // post-local-unkey hang
	dtmfInterdigit Timer // inter-digit timeout for the DTMF buffer
	localDTMF     Timer // local control DTMF collection window
	macro         Timer // macro step interval
	voxTimeout    Timer // VOX dropout confirmation
	voxRecover    Timer // VOX hang after dropout confirmation
	litz          Timer // LiTZ burst-tone hold
	sleep         Timer // auto-sleep countdown
	rxBurst       Timer // rx CTCSS/tone-burst detector hold
}

// Timer is a single millisecond down-counter. The zero value is disarmed.
type Timer struct {
	remainingMS int
	armed       bool
}

// Arm starts (or restarts) the timer at durationMS. durationMS <= 0 disarms it.
func (t *Timer) Arm(durationMS int) {
	if durationMS <= 0 {
		t.armed = false
		t.remainingMS = 0
		return
	}
	t.remainingMS = durationMS
	t.armed = true
}

// Disarm stops the timer without firing.
func (t *Timer) Disarm() {
	t.armed = false
	t.remainingMS = 0
}

// Active reports whether the timer is currently counting down.
func (t *Timer) Active() bool { return t.armed }

// Remaining returns the milliseconds left, or 0 if disarmed.
func (t *Timer) Remaining() int {
	if !t.armed {
		return 0
	}
	return t.remainingMS
}

// Advance moves the timer forward by elapsedMS and reports whether it just
// expired on this call (fires exactly once, on the tick that crosses zero).
func (t *Timer) Advance(elapsedMS int) (expired bool) {
	if !t.armed {
		return false
	}
	t.remainingMS -= elapsedMS
	if t.remainingMS <= 0 {
		t.remainingMS = 0
		t.armed = false
		return true
	}
	return false
}

// expiry is a bitset of which timers fired on a given Advance call, keyed by
// name for callers that need to react to specific expirations.
type Expiry struct {
	Hang, AltHang, TotalTimeout, Identifier, Tail, TailSquashed bool
	Scheduler, Parrot, LinkPost, KeyPost                       bool
	DTMFInterdigit, LocalDTMF, Macro                           bool
	VoxTimeout, VoxRecover, Litz, Sleep, RxBurst                bool
}

// Any reports whether at least one timer expired.
func (e Expiry) Any() bool {
	return e.Hang || e.AltHang || e.TotalTimeout || e.Identifier || e.Tail ||
		e.TailSquashed || e.Scheduler || e.Parrot || e.LinkPost || e.KeyPost ||
		e.DTMFInterdigit || e.LocalDTMF || e.Macro || e.VoxTimeout ||
		e.VoxRecover || e.Litz || e.Sleep || e.RxBurst
}

// Advance moves every timer in the bank forward by elapsedMS in one step,
// returning which ones expired on this tick. This is the only entry point a
// node controller loop should call once per tick.
func (b *Timers) Advance(elapsedMS int) Expiry {
	return Expiry{
		Hang:           b.hang.Advance(elapsedMS),
		AltHang:        b.altHang.Advance(elapsedMS),
		TotalTimeout:   b.totalTimeout.Advance(elapsedMS),
		Identifier:     b.identifier.Advance(elapsedMS),
		Tail:           b.tail.Advance(elapsedMS),
		TailSquashed:   b.tailSquashed.Advance(elapsedMS),
		Scheduler:      b.scheduler.Advance(elapsedMS),
		Parrot:         b.parrot.Advance(elapsedMS),
		LinkPost:       b.linkPost.Advance(elapsedMS),
		KeyPost:        b.keyPost.Advance(elapsedMS),
		DTMFInterdigit: b.dtmfInterdigit.Advance(elapsedMS),
		LocalDTMF:      b.localDTMF.Advance(elapsedMS),
		Macro:          b.macro.Advance(elapsedMS),
		VoxTimeout:     b.voxTimeout.Advance(elapsedMS),
		VoxRecover:     b.voxRecover.Advance(elapsedMS),
		Litz:           b.litz.Advance(elapsedMS),
		Sleep:          b.sleep.Advance(elapsedMS),
		RxBurst:        b.rxBurst.Advance(elapsedMS),
	}
}

func (b *Timers) Hang() *Timer           { return &b.hang }
func (b *Timers) AltHang() *Timer        { return &b.altHang }
func (b *Timers) TotalTimeout() *Timer   { return &b.totalTimeout }
func (b *Timers) Identifier() *Timer     { return &b.identifier }
func (b *Timers) Tail() *Timer           { return &b.tail }
func (b *Timers) TailSquashed() *Timer   { return &b.tailSquashed }
func (b *Timers) Scheduler() *Timer      { return &b.scheduler }
func (b *Timers) Parrot() *Timer         { return &b.parrot }
func (b *Timers) LinkPost() *Timer       { return &b.linkPost }
func (b *Timers) KeyPost() *Timer        { return &b.keyPost }
func (b *Timers) DTMFInterdigit() *Timer { return &b.dtmfInterdigit }
func (b *Timers) LocalDTMF() *Timer      { return &b.localDTMF }
func (b *Timers) Macro() *Timer          { return &b.macro }
func (b *Timers) VoxTimeout() *Timer     { return &b.voxTimeout }
func (b *Timers) VoxRecover() *Timer     { return &b.voxRecover }
func (b *Timers) Litz() *Timer           { return &b.litz }
func (b *Timers) Sleep() *Timer          { return &b.sleep }
func (b *Timers) RxBurst() *Timer        { return &b.rxBurst }
