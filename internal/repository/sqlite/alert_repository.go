package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"analytics/internal/model"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert adds a new alert record to the database.
func (r *AlertRepository) Insert(alert *model.StoredAlert) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO alerts (uid, timestamp, track_id, x1, y1, x2, y2, confidence, class_id, source_info, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.UID, toUnix(alert.Timestamp), alert.TrackID,
		alert.BBox[0], alert.BBox[1], alert.BBox[2], alert.BBox[3],
		alert.Confidence, alert.ClassID, alert.SourceInfo, alert.ReceivedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read alert id: %w", err)
	}
	alert.ID = id
	return id, nil
}

// List returns up to limit alerts, newest first.
func (r *AlertRepository) List(limit int) ([]model.StoredAlert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, uid, timestamp, track_id, x1, y1, x2, y2, confidence, class_id, source_info, received_at
		FROM alerts ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.StoredAlert
	for rows.Next() {
		var (
			a          model.StoredAlert
			timestamp  float64
			receivedAt int64
		)
		if err := rows.Scan(&a.ID, &a.UID, &timestamp, &a.TrackID,
			&a.BBox[0], &a.BBox[1], &a.BBox[2], &a.BBox[3],
			&a.Confidence, &a.ClassID, &a.SourceInfo, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Timestamp = fromUnix(timestamp)
		a.ReceivedAt = time.Unix(0, receivedAt)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// Stats counts stored alerts and distinct tracks.
func (r *AlertRepository) Stats() (*model.AlertStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		stats model.AlertStats
		last  sql.NullFloat64
	)
	err := r.db.Conn().QueryRow(`
		SELECT COUNT(DISTINCT track_id), COUNT(*), MAX(timestamp) FROM alerts
	`).Scan(&stats.Tracks, &stats.Alerts, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert stats: %w", err)
	}
	if last.Valid {
		t := fromUnix(last.Float64)
		stats.LastAlert = &t
	}

	return &stats, nil
}

// Prune keeps the newest keep alerts and deletes the rest.
func (r *AlertRepository) Prune(keep int) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		DELETE FROM alerts WHERE id NOT IN (SELECT id FROM alerts ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}

	return result.RowsAffected()
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(seconds float64) time.Time {
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*1e9))
}
