package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dbehnke/nexus-core/internal/rptnode"
	"github.com/dbehnke/nexus-core/internal/web"
)

// Status reports one node's current state plus its link set, both
// projected through internal/web's wire views and enriched with
// callsign/description for any link whose name resolves through the
// node lookup service (including negative, hashed text-node IDs).
// Endpoint: GET /api/status?node=<node_number>
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, 405, "method_not_allowed", "only GET supported")
		return
	}

	nodeStr := strings.TrimSpace(r.URL.Query().Get("node"))
	n := a.defaultNode(nodeStr)
	if n == nil {
		writeError(w, 404, "not_found", "unknown node "+nodeStr)
		return
	}

	links := n.LinkSet().Snapshot()
	views := make([]web.LinkView, 0, len(links))
	for _, l := range links {
		lv := web.NewLinkView(l, "")
		if a.NodeLookupSvc != nil {
			if id, err := strconv.Atoi(l.Name); err == nil {
				if e, ok := a.NodeLookupSvc.Lookup(id); ok {
					lv.Callsign = e.Callsign
					lv.Description = e.Description
				}
			}
		}
		views = append(views, lv)
	}

	state := web.NewNodeView(n.Snapshot(), len(links), 0)
	writeJSON(w, 200, map[string]any{
		"state": map[string]any{
			"node":           state.Name,
			"rx_keyed":       state.RxKeyed,
			"tx_keyed":       state.TxKeyed,
			"call_mode":      state.CallMode,
			"links_detailed": views,
		},
	})
}

// defaultNode resolves the node query parameter against a.Nodes; when the
// parameter is empty it falls back to the configured node only if there is
// exactly one node under management, and returns nil otherwise.
func (a *API) defaultNode(nodeStr string) *rptnode.Node {
	if nodeStr != "" {
		return a.Nodes[nodeStr]
	}
	if len(a.Nodes) == 1 {
		for _, n := range a.Nodes {
			return n
		}
	}
	return nil
}
