package api

import (
	"net/http"
	"strings"

	"github.com/dbehnke/nexus-core/internal/linkset"
)

// VoterReceiver is one link's voter-mode standing, structured straight
// off linkset.Link/VoterEvaluate instead of parsed from AMI command text.
type VoterReceiver struct {
	Node  string `json:"node"`
	RSSI  int    `json:"rssi"`
	Keyed bool   `json:"keyed"`
	Voted bool   `json:"voted"`
}

// VoterStats reports the current voter-mode standing for a node's link
// set: every link's RSSI and keyed state, and whether VoterEvaluate picked
// it to carry audio.
// Endpoint: GET /api/voter-stats?node=<node_number>
// Requires authentication
func (a *API) VoterStats(w http.ResponseWriter, r *http.Request) {
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

	links := n.LinkSet().Snapshot()
	decision := linkset.VoterEvaluate(links, a.lastVoterWinner(nodeStr))
	a.setLastVoterWinner(nodeStr, decision.Winner)

	receivers := make([]VoterReceiver, 0, len(links))
	for _, l := range links {
		receivers = append(receivers, VoterReceiver{
			Node: l.Name, RSSI: l.RSSI, Keyed: l.Keyed, Voted: l.Name == decision.Winner,
		})
	}

	writeJSON(w, 200, map[string]any{
		"node": nodeStr, "receivers": receivers, "count": len(receivers), "winner": decision.Winner,
	})
}

func (a *API) lastVoterWinner(node string) string {
	a.voterMu.Lock()
	defer a.voterMu.Unlock()
	return a.voterWinners[node]
}

func (a *API) setLastVoterWinner(node, winner string) {
	a.voterMu.Lock()
	defer a.voterMu.Unlock()
	if a.voterWinners == nil {
		a.voterWinners = make(map[string]string)
	}
	a.voterWinners[node] = winner
}
