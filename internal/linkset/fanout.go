package linkset

// Fanout distributes a frame originating from one link to every other
// connected link (distribute_to_all_links in the original controller).
// The source link never receives its own frame back. Send does not consult
// voter state: a link VoterEvaluate muted still receives frames.
type Fanout struct {
	set *Set
}

// NewFanout builds a Fanout bound to the given link set.
func NewFanout(set *Set) *Fanout { return &Fanout{set: set} }

// Send implements distribute_to_all_links (§4.3): if dest is non-empty,
// frame goes only to the link named dest and Send stops there; otherwise
// it walks the link set in order and writes to every link except
// sourceName, skipping phone-mode-only peers (non-empty Link.Phone) when
// skipPhoneOnly is set (callers pass true for voice/DTMF/key frames that
// must not reach a phone patch, false for text frames meant for everyone).
// write is supplied by the caller (keeps this package free of any real
// I/O dependency so it stays unit-testable).
func (fo *Fanout) Send(sourceName, dest string, frame Frame, skipPhoneOnly bool, write func(linkName string, f Frame) error) []error {
	if dest != "" {
		if l, ok := fo.set.Get(dest); ok {
			if err := write(l.Name, frame); err != nil {
				return []error{err}
			}
		}
		return nil
	}
	var errs []error
	for _, l := range fo.set.Snapshot() {
		if l.Name == sourceName {
			continue
		}
		if skipPhoneOnly && l.Phone != "" {
			continue
		}
		if err := write(l.Name, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// VoterDecision is the outcome of one voter-mode evaluation pass.
type VoterDecision struct {
	Winner string // link name chosen to carry audio, "" if none keyed
	Muted  []string
}

// VoterEvaluate implements the RSSI-based link selection the original
// controller ran every 10 audio frames in voter mode: the highest-RSSI
// currently-keyed link wins and all others are muted. Ties keep the
// previous winner if it is still keyed and tied for the max, else the
// first tied link in link-set order (stable, deterministic).
func VoterEvaluate(links []Link, previousWinner string) VoterDecision {
	best := -1
	bestName := ""
	anyKeyed := false
	for _, l := range links {
		if !l.Keyed {
			continue
		}
		anyKeyed = true
		if l.RSSI > best {
			best = l.RSSI
			bestName = l.Name
		} else if l.RSSI == best && l.Name == previousWinner {
			bestName = l.Name
		}
	}
	if !anyKeyed {
		return VoterDecision{}
	}
	var muted []string
	for _, l := range links {
		if l.Keyed && l.Name != bestName {
			muted = append(muted, l.Name)
		}
	}
	return VoterDecision{Winner: bestName, Muted: muted}
}
