package dtmf

import "strings"

// copTable names the control-operator sub-commands invoked by the '0'
// function (the "cop" function in the original controller). Each code maps
// to a short name describing the effect; Cop's job is only to collect the
// code (and optional trailing '#'-terminated argument) and hand it to
// NodeContext.ControlOp, which the node controller implements against its
// own state. This mirrors rpt_functions.c's cop_cmds switch, reduced to a
// table here rather than inlined so adding an effect is a one-line change.
var copTable = map[string]string{
	"1":  "enable_tot",
	"2":  "disable_tot",
	"3":  "enable_link_wait",
	"4":  "disable_link_wait",
	"5":  "enable_led",
	"6":  "disable_led",
	"7":  "enable_sleep_mode",
	"8":  "disable_sleep_mode",
	"9":  "enable_parrot_mode",
	"10": "disable_parrot_mode",
	"11": "id_now",
	"12": "enable_ct",
	"13": "disable_ct",
	"14": "reload_config",
	"15": "force_unkey",
	"16": "restart_courtesy_tone",
	"17": "enable_link_to_link",
	"18": "disable_link_to_link",
	"19": "enable_politeid",
	"20": "disable_politeid",
	"21": "enable_no_unkey_ct",
	"22": "disable_no_unkey_ct",
	"23": "enable_no_local_link_ct",
	"24": "disable_no_local_link_ct",
	"25": "enable_rx_burst_detect",
	"26": "disable_rx_burst_detect",
	"27": "toggle_duplex",
	"28": "set_duplex_0",
	"29": "set_duplex_1",
	"30": "set_duplex_2",
	"31": "set_duplex_3",
	"32": "set_duplex_4",
	"33": "enable_vox",
	"34": "disable_vox",
	"35": "reset_daily_counters",
	"36": "enable_archive",
	"37": "disable_archive",
	"38": "enable_holdoff_telem",
	"39": "disable_holdoff_telem",
	"40": "reset_timeout_counter",
	"41": "show_version",
	"42": "enable_scheduler",
	"43": "disable_scheduler",
	"44": "enable_litz",
	"45": "disable_litz",
	"46": "clear_macro_buffer",
	"47": "enable_morse_id",
	"48": "disable_morse_id",
	"49": "enable_tailmessage",
	"50": "disable_tailmessage",
	"51": "force_id",
	"52": "enable_voter",
	"53": "disable_voter",
	"54": "set_voter_type_0",
	"55": "set_voter_type_1",
	"56": "set_voter_type_2",
	"57": "enable_dias",
	"58": "disable_dias",
	"59": "test_tone",
	"60": "force_sleep",
}

// Cop collects a cop sub-command: either a bare numeric code known to end
// at a fixed length, or a code followed by a free-form '#'-terminated
// argument (e.g. "140#" meaning code 14 with argument "0"... in practice
// we require codes to be looked up against copTable directly and only
// fall back to '#'-termination for variable-length trailing arguments).
func Cop(ctx NodeContext, args string) Completion {
	if code, ok := copTable[args]; ok {
		if err := ctx.ControlOp(code, ""); err != nil {
			return Error
		}
		return CompleteQuiet
	}
	if anyCodeHasPrefix(args) {
		if strings.HasSuffix(args, "#") {
			// args is "<code><argument>#"; find the matching code by
			// longest known-code prefix.
			for i := len(args) - 1; i > 0; i-- {
				candidate := args[:i]
				if code, ok := copTable[candidate]; ok {
					arg := strings.TrimSuffix(args[i:], "#")
					if err := ctx.ControlOp(code, arg); err != nil {
						return Error
					}
					return CompleteQuiet
				}
			}
			return Error
		}
		return Indeterminate
	}
	return Error
}

func anyCodeHasPrefix(buf string) bool {
	for code := range copTable {
		if len(buf) <= len(code) && code[:len(buf)] == buf {
			return true
		}
		if len(buf) > len(code) && buf[:len(code)] == code {
			return true
		}
	}
	return false
}
