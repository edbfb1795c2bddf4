package rptnode

// ComputeTotx implements the duplex/TX-arbitration table: given the
// current keying inputs and the configured duplex level (0-4), decide
// whether the local transmitter should be keyed this tick. This is a pure
// function precisely so it can be tested per duplex level independent of
// the loop driver.
//
// Duplex levels, matching the original controller:
//   0 - simplex, no local repeat of RX audio, links still get RX audio
//   1 - full repeat of RX audio to TX, no link audio mixed in
//   2 - full duplex: RX repeated to TX, and link audio mixed in when no
//       local carrier is present
//   3 - like 2, but local carrier always wins over link audio (no mixing)
//   4 - link-only: local RX never keys TX, only link/remote audio does
func ComputeTotx(k Keying, duplex int) bool {
	switch duplex {
	case 0:
		// Local RX never repeats, but a remote link or remote-base input
		// still keys TX (§4.5: "Remote links only; local RX never repeats").
		return k.ExtTx || k.RemoteRx
	case 1:
		return k.ReallyKeyed
	case 2:
		return k.ReallyKeyed || k.ExtTx
	case 3:
		if k.ReallyKeyed {
			return true
		}
		return k.ExtTx
	case 4:
		return k.ExtTx || k.RemoteRx
	default:
		return k.ReallyKeyed
	}
}

// ShouldMixLinkAudio reports whether link-originated audio should be
// blended with local RX audio on the way to the transmitter, which only
// happens at duplex 2 when there is no competing local carrier.
func ShouldMixLinkAudio(k Keying, duplex int) bool {
	return duplex == 2 && k.ExtTx && !k.ReallyKeyed
}
