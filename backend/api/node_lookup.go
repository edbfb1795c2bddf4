package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dbehnke/nexus-core/internal/nodelookup"
)

// NodeRecord is the API's public shape of a nodelookup.Entry.
type NodeRecord struct {
	Node        int    `json:"node"`
	Callsign    string `json:"callsign"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

func fromEntry(e nodelookup.Entry) NodeRecord {
	return NodeRecord{Node: e.Node, Callsign: e.Callsign, Description: e.Description, Location: e.Location}
}

// NodeLookup handles searching for AllStar nodes by number or callsign.
// Endpoint: GET /api/node-lookup?q=<search_term>
func (a *API) NodeLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, 405, "method_not_allowed", "only GET supported")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, 400, "bad_request", "query parameter 'q' is required")
		return
	}
	if a.NodeLookupSvc == nil {
		writeJSON(w, 200, map[string]any{"query": query, "results": []NodeRecord{}, "count": 0})
		return
	}

	entries := a.NodeLookupSvc.Search(query, 100)
	results := make([]NodeRecord, 0, len(entries))
	for _, e := range entries {
		results = append(results, fromEntry(e))
	}

	// No astdb match: treat a negative ID as a registered text node, and a
	// bare non-numeric query as a synthetic VOIP-node record (the lookup
	// found nothing because it's a callsign, not a node number).
	if len(results) == 0 {
		if nodeID, err := strconv.Atoi(query); err == nil {
			if e, ok := a.NodeLookupSvc.Lookup(nodeID); ok {
				results = append(results, fromEntry(e))
			}
		} else {
			results = append(results, NodeRecord{Callsign: strings.ToUpper(query), Description: "VOIP Node"})
		}
	}

	writeJSON(w, 200, map[string]any{"query": query, "results": results, "count": len(results)})
}

// LookupNodeByID performs a fast lookup of a single node by ID, returning
// nil if not found or if no lookup service is configured.
func (a *API) LookupNodeByID(nodeID int) *NodeRecord {
	if a.NodeLookupSvc == nil {
		return nil
	}
	e, ok := a.NodeLookupSvc.Lookup(nodeID)
	if !ok {
		return nil
	}
	rec := fromEntry(e)
	return &rec
}
