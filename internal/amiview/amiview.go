// Package amiview formats read-only, AMI-protocol-shaped projections of
// controller state: the same "Key: Value\r\n" field sets and CLI verb
// output app_rpt's manager interface (rpt_manager.c) and CLI (rpt_cli.c)
// produce, sourced directly from rptnode.Node/linkset.Set instead of a
// live Asterisk channel. No AMI *server* (socket, auth, action dispatch)
// is implemented here — that belongs to a collaborating Asterisk-facing
// process; this package only shapes the data half of the contract.
package amiview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dbehnke/nexus-core/internal/linkset"
	"github.com/dbehnke/nexus-core/internal/nodelookup"
	"github.com/dbehnke/nexus-core/internal/rptnode"
)

// notApplicable mirrors app_rpt's "N/A" placeholder for unset string fields.
const notApplicable = "N/A"

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

// RptStatus renders the manager interface's "RptStatus" action response
// body for one node, mirroring rpt_manager_do_stats's field set.
func RptStatus(snap rptnode.Snapshot, links []linkset.Link) string {
	var b strings.Builder
	fmt.Fprintf(&b, "IsRemoteBase: NO\r\n")
	fmt.Fprintf(&b, "NodeState: %d\r\n", int(snap.SysState)+1)
	fmt.Fprintf(&b, "SignalOnInput: %s\r\n", yesNo(snap.Keying.RxKeyed))
	fmt.Fprintf(&b, "TransmitterKeyed: %s\r\n", yesNo(snap.Keying.TxKeyed))
	fmt.Fprintf(&b, "KerchunksToday: %d\r\n", snap.Counters.DailyKerchunks)
	fmt.Fprintf(&b, "KeyupsToday: %d\r\n", snap.Counters.DailyKeyups)
	fmt.Fprintf(&b, "KeyupsSinceSystemInitialization: %d\r\n", snap.Counters.LifetimeKeyups)
	fmt.Fprintf(&b, "TxTimeToday: %s\r\n", formatHMS(snap.Counters.DailyTxSeconds))
	fmt.Fprintf(&b, "TxTimeSinceSystemInitialization: %s\r\n", formatHMS(snap.Counters.LifetimeTxSeconds))

	names := make([]string, 0, len(links))
	for _, l := range links {
		if l.Connected {
			names = append(names, l.Name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Fprintf(&b, "NodesCurrentlyConnectedToUs: <NONE>\r\n")
	} else {
		fmt.Fprintf(&b, "NodesCurrentlyConnectedToUs: %s\r\n", strings.Join(names, ","))
	}
	fmt.Fprintf(&b, "\r\n")
	return b.String()
}

// formatHMS renders whole seconds as HH:MM:SS, the same format the CLI
// stats verb (CLIStats) uses for its tx-time fields.
func formatHMS(totalSeconds int) string {
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// XStatResult is the parsed shape of the "XStat" action: local keying
// plus one row per connected link, with node lookups filled in where a
// lookup.Service is supplied.
type XStatResult struct {
	Node        string
	RxKeyed     bool
	TxKeyed     bool
	Connections []XStatConnection
}

// XStatConnection is one connected-node row.
type XStatConnection struct {
	Node      string
	Mode      string // "T"=Transceive (and unknown modes), "M"=Monitor, "R"=LocalMonitor
	Direction string // "IN" or "OUT"
	IsKeyed   bool
	Callsign  string
}

func modeLetter(m linkset.Mode) string {
	switch m {
	case linkset.ModeMonitor:
		return "M"
	case linkset.ModeLocalMonitor:
		return "R"
	default:
		return "T"
	}
}

// XStat builds an XStatResult from node and link-set state.
func XStat(snap rptnode.Snapshot, links []linkset.Link, lookup *nodelookup.Service) XStatResult {
	res := XStatResult{Node: snap.Name, RxKeyed: snap.Keying.RxKeyed, TxKeyed: snap.Keying.TxKeyed}
	for _, l := range links {
		conn := XStatConnection{Node: l.Name, Mode: modeLetter(l.Mode), IsKeyed: l.Keyed}
		if l.IsLocal {
			conn.Direction = "OUT"
		} else {
			conn.Direction = "IN"
		}
		if lookup != nil {
			if id, err := parseNodeID(l.Name); err == nil {
				if entry, ok := lookup.Lookup(id); ok {
					conn.Callsign = entry.Callsign
				}
			}
		}
		res.Connections = append(res.Connections, conn)
	}
	return res
}

// String renders XStatResult in the manager action's line-oriented shape.
func (r XStatResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node: %s\r\n", r.Node)
	fmt.Fprintf(&b, "RPT_RXKEYED=%d\r\n", boolInt(r.RxKeyed))
	fmt.Fprintf(&b, "RPT_TXKEYED=%d\r\n", boolInt(r.TxKeyed))
	for _, c := range r.Connections {
		fmt.Fprintf(&b, "Conn: %s %s %s %d %s\r\n", c.Node, c.Mode, c.Direction, boolInt(c.IsKeyed), c.Callsign)
	}
	return b.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseNodeID(name string) (int, error) {
	var id int
	_, err := fmt.Sscanf(name, "%d", &id)
	return id, err
}
