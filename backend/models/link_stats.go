package models

import "time"

// LinkStat is the cumulative view of one adjacent node's keying activity
// against this controller, rebuilt from rptnode.KeyingTracker's confirmed
// TX_START/TX_END callbacks (see cmd/nexuscored/main.go) rather than
// parsed out of an AMI rpt stats/xstat response.
type LinkStat struct {
	Node           int        `gorm:"primaryKey" json:"node"`
	TotalTxSeconds int        `gorm:"not null;default:0" json:"total_tx_seconds"`
	LastTxStart    *time.Time `gorm:"type:timestamp" json:"last_tx_start"`
	LastTxEnd      *time.Time `gorm:"type:timestamp" json:"last_tx_end"`
	ConnectedSince *time.Time `gorm:"type:timestamp" json:"connected_since"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default table name
func (LinkStat) TableName() string {
	return "link_stats"
}

// ConnectedDuration reports how long this link has been continuously
// connected as of asOf, or zero if it was never observed to connect.
func (s LinkStat) ConnectedDuration(asOf time.Time) time.Duration {
	if s.ConnectedSince == nil {
		return 0
	}
	return asOf.Sub(*s.ConnectedSince)
}

// TxRate returns total TX seconds per connected-second, the "airtime
// fraction" TopLinkStatsHandler sorts by in tx_rate mode; zero if the
// link has no recorded connect time or has never transmitted.
func (s LinkStat) TxRate(asOf time.Time) float64 {
	dur := s.ConnectedDuration(asOf).Seconds()
	if dur <= 0 {
		return 0
	}
	return float64(s.TotalTxSeconds) / dur
}
