package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Zachkp/metro-portfolio/internal/tiles"
)

// VisitorMetric is one page view, recorded with a hashed client address.
type VisitorMetric struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// TileCount is how often a tile was opened.
type TileCount struct {
	Key   tiles.Key `json:"key"`
	Opens int64     `json:"opens"`
}

// Stats feeds the admin dashboard.
type Stats struct {
	TotalVisitors    int64           `json:"total_visitors"`
	UniqueVisitors   int64           `json:"unique_visitors"`
	VisitorsToday    int64           `json:"visitors_today"`
	VisitorsThisWeek int64           `json:"visitors_this_week"`
	TotalOpens       int64           `json:"total_opens"`
	TopTiles         []TileCount     `json:"top_tiles"`
	RecentVisitors   []VisitorMetric `json:"recent_visitors"`
}

// RecordVisit stores a page view.
func (d *DB) RecordVisit(ctx context.Context, hashedIP, userAgent, path string, at time.Time) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO visitors (hashed_ip, user_agent, path, visited_at)
		VALUES (?, ?, ?, ?)
	`, hashedIP, userAgent, path, at.Unix())
	if err != nil {
		return fmt.Errorf("store: record visit: %w", err)
	}
	return nil
}

// RecordTileOpen stores that a session opened a tile.
func (d *DB) RecordTileOpen(ctx context.Context, key tiles.Key, hashedSession string, at time.Time) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO tile_opens (tile_key, hashed_session, opened_at)
		VALUES (?, ?, ?)
	`, string(key), hashedSession, at.Unix())
	if err != nil {
		return fmt.Errorf("store: record tile open: %w", err)
	}
	return nil
}

// PruneVisitors removes visitor rows older than maxAge.
func (d *DB) PruneVisitors(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := d.sql.ExecContext(ctx, `DELETE FROM visitors WHERE visited_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune visitors: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates visitor and tile metrics as of now.
func (d *DB) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
	weekAgo := now.Add(-7 * 24 * time.Hour).Unix()

	counts := []struct {
		query string
		args  []any
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM visitors`, nil, &stats.TotalVisitors},
		{`SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil, &stats.UniqueVisitors},
		{`SELECT COUNT(*) FROM visitors WHERE visited_at >= ?`, []any{startOfDay}, &stats.VisitorsToday},
		{`SELECT COUNT(*) FROM visitors WHERE visited_at >= ?`, []any{weekAgo}, &stats.VisitorsThisWeek},
		{`SELECT COUNT(*) FROM tile_opens`, nil, &stats.TotalOpens},
	}
	for _, c := range counts {
		if err := d.sql.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}

	rows, err := d.sql.QueryContext(ctx, `
		SELECT tile_key, COUNT(*) AS opens
		FROM tile_opens
		GROUP BY tile_key
		ORDER BY opens DESC, tile_key ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("store: top tiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TileCount
		var key string
		if err := rows.Scan(&key, &tc.Opens); err != nil {
			return nil, fmt.Errorf("store: top tiles: %w", err)
		}
		tc.Key = tiles.Key(key)
		stats.TopTiles = append(stats.TopTiles, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: top tiles: %w", err)
	}

	stats.RecentVisitors, err = d.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RecentVisitors returns the latest page views, newest first.
func (d *DB) RecentVisitors(ctx context.Context, limit int) ([]VisitorMetric, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), visited_at
		FROM visitors
		ORDER BY visited_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent visitors: %w", err)
	}
	defer rows.Close()

	var out []VisitorMetric
	for rows.Next() {
		var v VisitorMetric
		var at int64
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &at); err != nil {
			return nil, fmt.Errorf("store: recent visitors: %w", err)
		}
		v.Timestamp = time.Unix(at, 0)
		out = append(out, v)
	}
	return out, rows.Err()
}
