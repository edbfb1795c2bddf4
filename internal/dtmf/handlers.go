package dtmf

import (
	"strconv"
	"strings"
)

// RegisterDefaults wires the twelve named action handlers onto table under
// their conventional function-selector digits, matching the original
// controller's default functions table. Callers may override individual
// selectors afterward via Table.Add.
func RegisterDefaults(t *Table) {
	t.Add("1", AutopatchUp)
	t.Add("2", AutopatchDown)
	t.Add("3", StatusHandler)
	t.Add("4", CmdHandler)
	t.Add("5", MeterHandler)
	t.Add("6", Ilink)
	t.Add("7", Remote)
	t.Add("8", Macro)
	t.Add("9", UserOutHandler)
	t.Add("0", Cop)
	t.Add("*", Playback)
	t.Add("**", LocalPlay)
}

// AutopatchUp originates the autopatch (phone bridge); out of scope for
// actual PSTN dialing (no telephony collaborator in this repo) but the
// digit-collection and completion contract is real: args accumulate until
// '#' terminates the dialed number.
func AutopatchUp(ctx NodeContext, args string) Completion {
	if !strings.HasSuffix(args, "#") {
		return Indeterminate
	}
	number := strings.TrimSuffix(args, "#")
	if number == "" {
		return Error
	}
	ctx.SendTelemetry("proc", number)
	return Complete
}

// AutopatchDown hangs up any in-progress autopatch.
func AutopatchDown(ctx NodeContext, args string) Completion {
	ctx.SendTelemetry("term", "")
	return CompleteQuiet
}

// StatusHandler plays one of the status telemetry messages selected by a
// single digit (node ID, time, stats, ...).
func StatusHandler(ctx NodeContext, args string) Completion {
	if len(args) == 0 {
		return Indeterminate
	}
	switch args[0] {
	case '1':
		ctx.SendTelemetry("status_message", ctx.StatusText())
	case '2':
		ctx.SendTelemetry("stats_time", "")
	case '3':
		ctx.SendTelemetry("stats_time_local", "")
	default:
		return Error
	}
	return Complete
}

// CmdHandler runs an arbitrary named system command previously bound in
// config (the "cmd" function), identified by a 2-digit selector.
func CmdHandler(ctx NodeContext, args string) Completion {
	if len(args) < 2 {
		return Indeterminate
	}
	if _, err := strconv.Atoi(args[:2]); err != nil {
		return Error
	}
	ctx.RunMacro(args[:2])
	return CompleteQuiet
}

// MeterHandler reads an analog meter channel and announces its value.
func MeterHandler(ctx NodeContext, args string) Completion {
	if len(args) == 0 {
		return Indeterminate
	}
	which, err := strconv.Atoi(args)
	if err != nil {
		if len(args) < 2 {
			return Indeterminate
		}
		return Error
	}
	v, err := ctx.ReadMeter(which)
	if err != nil {
		return Error
	}
	ctx.SendTelemetry("meter_read", strconv.FormatFloat(v, 'f', 2, 64))
	return Complete
}

// Ilink implements the inter-node link control sub-commands: connect modes
// 2/3/8/12/13/18, disconnect 1/11, disconnect-all 6, reconnect-last 16,
// status 5/15, text-send 9, last-keyed-query 7, identify-burst 17.
func Ilink(ctx NodeContext, args string) Completion {
	if len(args) == 0 {
		return Indeterminate
	}
	sub := args[0]
	rest := args[1:]

	// Two-digit sub-commands: 12/13/18 connect through the '8' path below
	// (13 in local-monitor mode); 11/15/16/17 go to ilinkTwoDigit.
	localMonitor := false
	if sub == '1' && rest != "" {
		switch rest[0] {
		case '2', '3', '8':
			localMonitor = rest[0] == '3'
			sub, rest = '8', rest[1:]
		case '1', '5', '6', '7':
			return ilinkTwoDigit(ctx, args)
		}
	}

	switch sub {
	case '1':
		if rest == "" {
			return Indeterminate
		}
		if err := ctx.DisconnectLink(rest); err != nil {
			return Error
		}
		return Complete
	case '2', '3':
		if !strings.HasSuffix(rest, "#") {
			return Indeterminate
		}
		peer := strings.TrimSuffix(rest, "#")
		mode := "transceive"
		if sub == '3' {
			mode = "monitor"
		}
		if err := ctx.ConnectLink(peer, mode); err != nil {
			return Error
		}
		return Complete
	case '5':
		ctx.SendTelemetry("linked_links", "")
		return CompleteQuiet
	case '6':
		ctx.DisconnectAllLinks()
		return Complete
	case '7':
		ctx.SendTelemetry("last_node_key", ctx.LastKeyedNode())
		return CompleteQuiet
	case '8':
		if !strings.HasSuffix(rest, "#") {
			return Indeterminate
		}
		peer := strings.TrimSuffix(rest, "#")
		mode := "transceive"
		if localMonitor {
			mode = "local_monitor"
		}
		if err := ctx.ConnectLink(peer, mode); err != nil {
			return Error
		}
		return Complete
	case '9':
		if !strings.HasSuffix(rest, "#") {
			return Indeterminate
		}
		return Complete
	default:
		return ilinkTwoDigit(ctx, args)
	}
}

func ilinkTwoDigit(ctx NodeContext, args string) Completion {
	if len(args) < 2 {
		return Indeterminate
	}
	switch args[:2] {
	case "11":
		if len(args) == 2 {
			return Indeterminate
		}
		if err := ctx.DisconnectLink(args[2:]); err != nil {
			return Error
		}
		return Complete
	case "15":
		ctx.SendTelemetry("linked_links", "")
		return CompleteQuiet
	case "16":
		if err := ctx.ReconnectLastLink(); err != nil {
			return Error
		}
		return Complete
	case "17":
		ctx.SendTelemetry("alpha_radio_id", "")
		return CompleteQuiet
	}
	return Error
}

// Remote implements remote-base control: set frequency/mode, enable/
// disable remote monitor.
func Remote(ctx NodeContext, args string) Completion {
	if !strings.HasSuffix(args, "#") {
		return Indeterminate
	}
	freq := strings.TrimSuffix(args, "#")
	if freq == "" {
		return Error
	}
	if err := ctx.SetRemoteFreq(freq); err != nil {
		return Error
	}
	return Complete
}

// Macro runs a configured macro string by its numeric index.
func Macro(ctx NodeContext, args string) Completion {
	if !strings.HasSuffix(args, "#") {
		return Indeterminate
	}
	idx := strings.TrimSuffix(args, "#")
	if idx == "" {
		return Error
	}
	ctx.RunMacro(idx)
	return DoKey
}

// Playback plays a previously recorded message by numeric index.
func Playback(ctx NodeContext, args string) Completion {
	if !strings.HasSuffix(args, "#") {
		return Indeterminate
	}
	idx := strings.TrimSuffix(args, "#")
	if err := ctx.PlaybackFile(idx); err != nil {
		return Error
	}
	return Complete
}

// LocalPlay plays a locally-stored announcement file that is not relayed
// to links (distinct from Playback, which may be fanned out).
func LocalPlay(ctx NodeContext, args string) Completion {
	if !strings.HasSuffix(args, "#") {
		return Indeterminate
	}
	idx := strings.TrimSuffix(args, "#")
	if err := ctx.LocalPlayFile(idx); err != nil {
		return Error
	}
	return Complete
}

// UserOutHandler toggles a general-purpose output bit: first digit is the
// bit number, second is 0/1.
func UserOutHandler(ctx NodeContext, args string) Completion {
	if len(args) < 2 {
		return Indeterminate
	}
	bit, err := strconv.Atoi(args[:1])
	if err != nil {
		return Error
	}
	switch args[1] {
	case '0':
		ctx.SetUserOut(bit, false)
	case '1':
		ctx.SetUserOut(bit, true)
	default:
		return Error
	}
	return CompleteQuiet
}
