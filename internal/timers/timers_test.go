package timers

import "testing"

func TestTimerArmAdvanceExpire(t *testing.T) {
	var tm Timer
	if tm.Active() {
		t.Fatal("zero value timer must be disarmed")
	}
	tm.Arm(100)
	if !tm.Active() {
		t.Fatal("armed timer must be active")
	}
	if expired := tm.Advance(40); expired {
		t.Fatal("timer fired early")
	}
	if got := tm.Remaining(); got != 60 {
		t.Fatalf("remaining = %d, want 60", got)
	}
	if expired := tm.Advance(60); !expired {
		t.Fatal("timer did not fire on the tick that crossed zero")
	}
	if tm.Active() {
		t.Fatal("timer must disarm itself after firing")
	}
	// Firing is a one-shot event: further advances must not refire.
	if expired := tm.Advance(10); expired {
		t.Fatal("disarmed timer refired")
	}
}

func TestTimerArmNonPositiveDisarms(t *testing.T) {
	var tm Timer
	tm.Arm(500)
	tm.Arm(0)
	if tm.Active() {
		t.Fatal("Arm(0) must disarm")
	}
	tm.Arm(500)
	tm.Arm(-5)
	if tm.Active() {
		t.Fatal("Arm(negative) must disarm")
	}
}

// TestTimeoutTimerIndependentOfLoopDriver exercises property P2: the total
// timeout timer fires after the configured duration regardless of how the
// elapsed time is chopped into Advance calls (one 180000ms call or nine
// thousand 20ms ticks behave identically).
func TestTimeoutTimerIndependentOfLoopDriver(t *testing.T) {
	const totalMS = 180000

	var coarse Timers
	coarse.TotalTimeout().Arm(totalMS)
	if exp := coarse.Advance(totalMS); !exp.TotalTimeout {
		t.Fatal("coarse single-step advance did not expire TOT")
	}

	var fine Timers
	fine.TotalTimeout().Arm(totalMS)
	fired := false
	for i := 0; i < totalMS/20; i++ {
		if fine.Advance(20).TotalTimeout {
			fired = true
			break
		}
	}
	if !fired {
		t.Fatal("fine-grained 20ms ticks never expired TOT")
	}
}

func TestBankAdvanceReportsOnlyExpiredTimers(t *testing.T) {
	var b Timers
	b.Hang().Arm(100)
	b.Identifier().Arm(500)

	exp := b.Advance(100)
	if !exp.Hang {
		t.Fatal("hang should have expired")
	}
	if exp.Identifier {
		t.Fatal("identifier should not have expired yet")
	}
	if exp.Tail || exp.TotalTimeout || exp.Parrot {
		t.Fatal("unarmed timers must never report expired")
	}
	if !exp.Any() {
		t.Fatal("Any() must be true when at least one timer expired")
	}

	var empty Timers
	if empty.Advance(1000).Any() {
		t.Fatal("Any() must be false when nothing is armed")
	}
}

func TestRemainingOnDisarmedTimerIsZero(t *testing.T) {
	var tm Timer
	if tm.Remaining() != 0 {
		t.Fatal("disarmed timer must report zero remaining")
	}
	tm.Arm(50)
	tm.Disarm()
	if tm.Remaining() != 0 || tm.Active() {
		t.Fatal("Disarm must reset both active flag and remaining duration")
	}
}
