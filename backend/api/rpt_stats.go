package api

import (
	"net/http"
	"strings"

	"github.com/dbehnke/nexus-core/internal/amiview"
)

// RPTStats reports the controller's own "rpt stats"-shaped summary for a
// node, built directly from rptnode.Node state rather than parsed out of
// an AMI command response.
// Endpoint: GET /api/rpt-stats?node=<node_number>
// Requires authentication
func (a *API) RPTStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, 405, "method_not_allowed", "only GET supported")
		return
	}

	nodeStr := strings.TrimSpace(r.URL.Query().Get("node"))
	if nodeStr == "" {
		writeError(w, 400, "bad_request", "query parameter 'node' is required")
		return
	}

	n, ok := a.Nodes[nodeStr]
	if !ok {
		writeError(w, 404, "not_found", "unknown node "+nodeStr)
		return
	}

	snap := n.Snapshot()
	writeJSON(w, 200, map[string]any{
		"node":             nodeStr,
		"daily_keyups":     snap.Counters.DailyKeyups,
		"daily_kerchunks":  snap.Counters.DailyKerchunks,
		"daily_tx_seconds": snap.Counters.DailyTxSeconds,
		"lifetime_keyups":  snap.Counters.LifetimeKeyups,
		"rx_keyed":         snap.Keying.RxKeyed,
		"tx_keyed":         snap.Keying.TxKeyed,
		"summary":          amiview.CLIStats(snap),
	})
}
