package web

import (
	"strconv"
	"time"

	"github.com/dbehnke/nexus-core/internal/linkset"
	"github.com/dbehnke/nexus-core/internal/rptnode"
	"github.com/dbehnke/nexus-core/internal/telemetry"
)

// NodeView is the observability projection of a rptnode.Snapshot, the
// payload carried in STATUS_UPDATE messages.
type NodeView struct {
	Name         string `json:"node"`
	RxKeyed      bool   `json:"rx_keyed"`
	TxKeyed      bool   `json:"tx_keyed"`
	CallMode     string `json:"call_mode"`
	SysState     int    `json:"sys_state"`
	DailyKeyups  int    `json:"daily_keyups"`
	DailyTxSec   int    `json:"daily_tx_seconds"`
	LifetimeKeyups int  `json:"lifetime_keyups"`
	NumLinks     int    `json:"num_links"`
	StateVersion int64  `json:"state_version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var callModeNames = map[rptnode.CallMode]string{
	rptnode.ModeIdle:     "idle",
	rptnode.ModeLocalTx:  "local_tx",
	rptnode.ModeLinkTx:   "link_tx",
	rptnode.ModeRemoteTx: "remote_tx",
	rptnode.ModeParrotTx: "parrot_tx",
}

// NewNodeView projects a rptnode.Snapshot plus the link count into the
// wire view, assigning stateVersion so clients can detect stale snapshots
// after a reconnect (mirrors the teacher's StateVersion/Heartbeat fields).
func NewNodeView(snap rptnode.Snapshot, numLinks int, stateVersion int64) NodeView {
	name, ok := callModeNames[snap.CallMode]
	if !ok {
		name = "unknown"
	}
	return NodeView{
		Name: snap.Name, RxKeyed: snap.Keying.RxKeyed, TxKeyed: snap.Keying.TxKeyed,
		CallMode: name, SysState: int(snap.SysState),
		DailyKeyups: snap.Counters.DailyKeyups, DailyTxSec: snap.Counters.DailyTxSeconds,
		LifetimeKeyups: snap.Counters.LifetimeKeyups,
		NumLinks:       numLinks, StateVersion: stateVersion, UpdatedAt: snap.At,
	}
}

// LinkView is the observability projection of a linkset.Link, masked of
// its IP for non-admin viewers by the hub before being sent.
type LinkView struct {
	Name        string    `json:"name"`
	IsLocal     bool      `json:"is_local"`
	Mode        string    `json:"mode"`
	Connected   bool      `json:"connected"`
	Keyed       bool      `json:"keyed"`
	RSSI        int       `json:"rssi,omitempty"`
	IP          string    `json:"ip,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
	Callsign    string    `json:"node_callsign,omitempty"`
	Description string    `json:"node_description,omitempty"`
}

var linkModeNames = map[linkset.Mode]string{
	linkset.ModeTransceive:   "transceive",
	linkset.ModeMonitor:      "monitor",
	linkset.ModeLocalMonitor: "local_monitor",
}

// NewLinkView projects a linkset.Link into its wire view. ip is supplied
// by the caller (echolink directory lookup, or "" for RF-only peers)
// since Link itself carries no network address.
func NewLinkView(l linkset.Link, ip string) LinkView {
	mode, ok := linkModeNames[l.Mode]
	if !ok {
		mode = "transceive"
	}
	return LinkView{
		Name: l.Name, IsLocal: l.IsLocal, Mode: mode, Connected: l.Connected,
		Keyed: l.Keyed, RSSI: l.RSSI, IP: ip, ConnectedAt: l.ConnectedAt,
	}
}

// TxEvent mirrors a keying-tracker TX session edge (SourceNodeKeyingEvent
// in the teacher), sent as SOURCE_NODE_KEYING_EVENT messages.
type TxEvent struct {
	Type        string     `json:"type"` // "TX_START" or "TX_END"
	LocalNode   string      `json:"local_node"`
	Adjacent    string      `json:"adjacent"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// TelemetryView mirrors a dispatched telemetry.Item for TELEMETRY messages.
type TelemetryView struct {
	Kind    string `json:"kind"`
	Channel string `json:"channel"`
	Param   string `json:"param,omitempty"`
}

var telemetryKindNames = map[telemetry.TelemetryKind]string{
	telemetry.KindID: "id", telemetry.KindProc: "proc", telemetry.KindTerm: "term",
	telemetry.KindTimeout: "timeout", telemetry.KindTimeoutWarning: "timeout_warning",
	telemetry.KindStatusMessage: "status_message", telemetry.KindConnected: "connected",
	telemetry.KindConnFail: "conn_fail", telemetry.KindMeterRead: "meter_read",
	telemetry.KindSleepTimeout: "sleep_timeout", telemetry.KindParrot: "parrot",
	telemetry.KindScheduler: "scheduler", telemetry.KindLinkedLinks: "linked_links",
	telemetry.KindLastNodeKey: "last_node_key",
}

var channelNames = map[telemetry.AudioChannel]string{
	telemetry.ChannelLocal: "local", telemetry.ChannelLink: "link", telemetry.ChannelMonitor: "monitor",
}

// NewTelemetryView projects a telemetry.Item into its wire view; kinds
// without a registered name fall back to their ordinal so nothing is lost.
func NewTelemetryView(item telemetry.Item) TelemetryView {
	kind, ok := telemetryKindNames[item.Kind]
	if !ok {
		kind = strconv.Itoa(int(item.Kind))
	}
	channel, ok := channelNames[item.Channel]
	if !ok {
		channel = strconv.Itoa(int(item.Channel))
	}
	return TelemetryView{Kind: kind, Channel: channel, Param: item.Param}
}
