package models

import (
	"fmt"
	"time"
)

// TransmissionLog records one confirmed unkey from rptnode.KeyingTracker:
// SourceID is this controller's own node, AdjacentLinkID the peer whose
// keying was observed. A peer that never resolves to a node number (an
// Echolink callsign, say) is logged with AdjacentLinkID 0 and Callsign
// carrying the name instead.
type TransmissionLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SourceID        int       `gorm:"index;not null" json:"source_id"`        // Local source node ID
	AdjacentLinkID  int       `gorm:"index;not null" json:"adjacent_link_id"` // Remote/adjacent node ID that transmitted
	Callsign        string    `gorm:"index;size:20" json:"callsign"`          // Callsign of the transmitting node
	TimestampStart  time.Time `gorm:"index;not null" json:"timestamp_start"`  // UTC timestamp when TX started
	TimestampEnd    time.Time `gorm:"index;not null" json:"timestamp_end"`    // UTC timestamp when TX ended
	DurationSeconds int       `gorm:"not null" json:"duration_seconds"`       // Duration in seconds
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`       // Record creation timestamp
}

// TableName overrides the default table name
func (TransmissionLog) TableName() string {
	return "transmission_logs"
}

// Valid rejects a record whose timestamps or duration can't have come
// from a real keying event, catching a clock-skew or arithmetic mistake
// in the caller before it reaches the database.
func (t TransmissionLog) Valid() error {
	if t.TimestampEnd.Before(t.TimestampStart) {
		return fmt.Errorf("transmission log: end %s before start %s", t.TimestampEnd, t.TimestampStart)
	}
	if t.DurationSeconds < 0 {
		return fmt.Errorf("transmission log: negative duration %ds", t.DurationSeconds)
	}
	return nil
}
