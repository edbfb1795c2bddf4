package amiview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbehnke/nexus-core/internal/linkset"
	"github.com/dbehnke/nexus-core/internal/rptnode"
)

// CLINodes renders the "rpt nodes <node>" verb's connected-node banner,
// matching rpt_do_nodes's eight-per-line, comma-separated layout.
func CLINodes(links []linkset.Link) string {
	names := make([]string, 0, len(links))
	for _, l := range links {
		if l.Connected {
			names = append(names, l.Name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\n************************* CONNECTED NODES *************************\n\n")
	if len(names) == 0 {
		b.WriteString("<NONE>")
	} else {
		for j, name := range names {
			b.WriteString(name)
			if j%8 == 7 {
				b.WriteByte('\n')
			} else if j != len(names)-1 {
				b.WriteString(", ")
			}
		}
	}
	b.WriteString("\n\n")
	return b.String()
}

// CLIStats renders the "rpt stats <node>" verb's summary block.
func CLIStats(snap rptnode.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node %s:\n", snap.Name)
	fmt.Fprintf(&b, "  Daily keyups: %d  kerchunks: %d  tx time: %s\n",
		snap.Counters.DailyKeyups, snap.Counters.DailyKerchunks, formatHMS(snap.Counters.DailyTxSeconds))
	fmt.Fprintf(&b, "  Lifetime keyups: %d  tx time: %s\n",
		snap.Counters.LifetimeKeyups, formatHMS(snap.Counters.LifetimeTxSeconds))
	return b.String()
}

// LStatsEntry is one row of the "rpt lstats" per-link detail listing.
type LStatsEntry struct {
	Node      string
	Mode      string
	Connected bool
	Keyed     bool
	RSSI      int
}

// CLILStats renders the "rpt lstats <node>" verb: one line per link with
// mode, connection, and keying state.
func CLILStats(links []linkset.Link) string {
	entries := make([]LStatsEntry, 0, len(links))
	for _, l := range links {
		entries = append(entries, LStatsEntry{Node: l.Name, Mode: modeLetter(l.Mode), Connected: l.Connected, Keyed: l.Keyed, RSSI: l.RSSI})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Node < entries[j].Node })

	var b strings.Builder
	for _, e := range entries {
		state := "DOWN"
		if e.Connected {
			state = "UP"
		}
		keyedStr := "not keyed"
		if e.Keyed {
			keyedStr = "keyed"
		}
		fmt.Fprintf(&b, "%s %s %s %s rssi=%d\n", e.Node, e.Mode, state, keyedStr, e.RSSI)
	}
	return b.String()
}

// CLIShowVersion renders the "rpt show version" verb.
func CLIShowVersion(version string) string {
	return fmt.Sprintf("nexuscored version %s\n", version)
}
