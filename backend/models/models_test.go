package models

import (
	"testing"
	"time"
)

func TestNodeInfoStale(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	n := NodeInfo{LastSeen: now.Add(-10 * 24 * time.Hour)}
	if !n.Stale(now, 7*24*time.Hour) {
		t.Fatal("expected node last seen 10 days ago to be stale past a 7-day cutoff")
	}
	if n.Stale(now, 30*24*time.Hour) {
		t.Fatal("did not expect staleness past a 30-day cutoff")
	}
}

func TestTransmissionLogValid(t *testing.T) {
	start := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	good := TransmissionLog{TimestampStart: start, TimestampEnd: start.Add(5 * time.Second), DurationSeconds: 5}
	if err := good.Valid(); err != nil {
		t.Fatalf("expected valid log, got %v", err)
	}
	bad := TransmissionLog{TimestampStart: start, TimestampEnd: start.Add(-1 * time.Second)}
	if err := bad.Valid(); err == nil {
		t.Fatal("expected error for end before start")
	}
	negDuration := TransmissionLog{TimestampStart: start, TimestampEnd: start, DurationSeconds: -1}
	if err := negDuration.Valid(); err == nil {
		t.Fatal("expected error for negative duration")
	}
}

func TestUserIsPrivileged(t *testing.T) {
	cases := []struct {
		role string
		want bool
	}{
		{RoleUser, false},
		{RoleAdmin, true},
		{RoleSuperAdmin, true},
	}
	for _, c := range cases {
		u := User{Role: c.role}
		if got := u.IsPrivileged(); got != c.want {
			t.Fatalf("role %q: IsPrivileged() = %v, want %v", c.role, got, c.want)
		}
	}
}

func TestLinkStatConnectedDurationAndTxRate(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	s := LinkStat{}
	if d := s.ConnectedDuration(now); d != 0 {
		t.Fatalf("expected zero duration with no ConnectedSince, got %v", d)
	}
	if rate := s.TxRate(now); rate != 0 {
		t.Fatalf("expected zero rate with no ConnectedSince, got %v", rate)
	}

	since := now.Add(-100 * time.Second)
	s = LinkStat{ConnectedSince: &since, TotalTxSeconds: 25}
	if d := s.ConnectedDuration(now); d != 100*time.Second {
		t.Fatalf("expected 100s connected duration, got %v", d)
	}
	if rate := s.TxRate(now); rate != 0.25 {
		t.Fatalf("expected tx rate 0.25, got %v", rate)
	}
}
