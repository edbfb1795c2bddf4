package repository

import (
	"context"
	"database/sql"

	"github.com/dbehnke/nexus-core/backend/models"
)

// LinkStatsRepo persists cumulative per-adjacent-node TX seconds fed by
// rptnode.KeyingTracker's TX_END callback (see cmd/nexuscored/main.go). It
// speaks database/sql directly against the same SQLite handle GORM opens,
// rather than going through gorm.io/gorm, because the hot path here is a
// single upsert per confirmed unkey and the query shape (ON CONFLICT DO
// UPDATE against one primary key) doesn't benefit from an ORM.
type LinkStatsRepo struct{ db *sql.DB }

func NewLinkStatsRepo(db *sql.DB) *LinkStatsRepo { return &LinkStatsRepo{db: db} }

// Upsert records a link's latest cumulative TX-seconds total and TX
// timestamps, called once per confirmed unkey (KeyingTracker's onTxEnd).
func (r *LinkStatsRepo) Upsert(ctx context.Context, s models.LinkStat) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO link_stats(node,total_tx_seconds,last_tx_start,last_tx_end,connected_since,updated_at)
		VALUES(?,?,?,?,?,CURRENT_TIMESTAMP)
		ON CONFLICT(node) DO UPDATE SET total_tx_seconds=excluded.total_tx_seconds,last_tx_start=excluded.last_tx_start,last_tx_end=excluded.last_tx_end,updated_at=CURRENT_TIMESTAMP`,
		s.Node, s.TotalTxSeconds, s.LastTxStart, s.LastTxEnd, s.ConnectedSince)
	return err
}

// TouchConnected sets connected_since the first time a peer links, without
// disturbing an already-recorded value; the ON CONFLICT update is guarded
// by connected_since IS NULL, so an existing row's non-null
// connected_since is left alone on a reconnect.
func (r *LinkStatsRepo) TouchConnected(ctx context.Context, node int, since sql.NullTime) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO link_stats(node,connected_since,updated_at) VALUES(?,?,CURRENT_TIMESTAMP)
		ON CONFLICT(node) DO UPDATE SET connected_since=excluded.connected_since, updated_at=CURRENT_TIMESTAMP
		WHERE link_stats.connected_since IS NULL`,
		node, since)
	return err
}

// GetAll returns every persisted link's cumulative stats, consumed by
// LinkStatsHandler/TopLinkStatsHandler for the dashboard's link table.
func (r *LinkStatsRepo) GetAll(ctx context.Context) ([]models.LinkStat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT node,total_tx_seconds,last_tx_start,last_tx_end,connected_since,updated_at FROM link_stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.LinkStat{}
	for rows.Next() {
		var s models.LinkStat
		var start, end, connected sql.NullTime
		if err := rows.Scan(&s.Node, &s.TotalTxSeconds, &start, &end, &connected, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if start.Valid {
			s.LastTxStart = &start.Time
		}
		if end.Valid {
			s.LastTxEnd = &end.Time
		}
		if connected.Valid {
			s.ConnectedSince = &connected.Time
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByNode returns one node's persisted stats (found is false when no row
// exists), backing LinkStatByNodeHandler's per-node endpoint.
func (r *LinkStatsRepo) GetByNode(ctx context.Context, node int) (models.LinkStat, bool, error) {
	var s models.LinkStat
	var start, end, connected sql.NullTime
	row := r.db.QueryRowContext(ctx, `SELECT node,total_tx_seconds,last_tx_start,last_tx_end,connected_since,updated_at FROM link_stats WHERE node = ?`, node)
	if err := row.Scan(&s.Node, &s.TotalTxSeconds, &start, &end, &connected, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return models.LinkStat{}, false, nil
		}
		return models.LinkStat{}, false, err
	}
	if start.Valid {
		s.LastTxStart = &start.Time
	}
	if end.Valid {
		s.LastTxEnd = &end.Time
	}
	if connected.Valid {
		s.ConnectedSince = &connected.Time
	}
	return s, true, nil
}
