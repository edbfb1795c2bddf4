package models

import (
	"time"
)

// NodeInfo mirrors one row of AllStarLink's public astdb.txt, refreshed by
// internal/nodelookup.Downloader (cmd/nexuscored/main.go's periodic
// DownloadAndImport) through the nodeInfoStore adapter. The
// /api/node-lookup handlers do not read this table: they search and look
// up through nodelookup.Service, which reads astdb.txt directly. Nodes
// this controller is linked to get their live state from rptnode.Node +
// linkset.Set.
type NodeInfo struct {
	NodeID      int       `gorm:"primaryKey;column:node_id;index:idx_node_id" json:"node_id"`
	Callsign    string    `gorm:"column:callsign;size:20;index:idx_callsign" json:"callsign"`
	Description string    `gorm:"column:description;size:255" json:"description"`
	Location    string    `gorm:"column:location;size:255;index:idx_location" json:"location"`
	LastSeen    time.Time `gorm:"column:last_seen;index:idx_last_seen" json:"last_seen"` // Track when node was last in astdb
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName overrides the table name
func (NodeInfo) TableName() string {
	return "node_info"
}

// Stale reports whether this row hasn't been refreshed by an astdb
// import within maxAge of asOf; DeleteStaleNodes/GetStaleCount apply the
// same cutoff SQL-side, this is the in-memory equivalent for callers that
// already hold a NodeInfo (e.g. a cache entry) and want to avoid a
// round-trip just to check freshness.
func (n NodeInfo) Stale(asOf time.Time, maxAge time.Duration) bool {
	return asOf.Sub(n.LastSeen) > maxAge
}
