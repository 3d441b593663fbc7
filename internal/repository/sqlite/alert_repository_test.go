package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"analytics/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "alerts_db_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := New(filepath.Join(tempDir, "nested", "alerts.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAlert(uid, trackID string, ts time.Time) *model.StoredAlert {
	return &model.StoredAlert{
		UID:        uid,
		Timestamp:  ts,
		TrackID:    trackID,
		BBox:       [4]float64{0.1, 0.2, 0.3, 0.4},
		Confidence: 0.9,
		ClassID:    1,
		SourceInfo: "camera_udp_0",
		ReceivedAt: ts.Add(time.Millisecond),
	}
}

// ========================================
// Database Integration Tests
// ========================================

func TestAlertRepository_InsertAndList(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	base := time.Unix(1_700_000_000, 500_000_000)

	for i, track := range []string{"1", "2", "1"} {
		a := sampleAlert("uid-"+string(rune('a'+i)), track, base.Add(time.Duration(i)*time.Second))
		id, err := repo.Insert(a)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if id == 0 || a.ID != id {
			t.Errorf("Expected the id to be assigned, got %d / %d", id, a.ID)
		}
	}

	alerts, err := repo.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].UID != "uid-c" || alerts[1].UID != "uid-b" {
		t.Errorf("Expected newest first, got %s, %s", alerts[0].UID, alerts[1].UID)
	}
	if alerts[0].BBox != [4]float64{0.1, 0.2, 0.3, 0.4} {
		t.Errorf("BBox not preserved: %v", alerts[0].BBox)
	}
	if d := alerts[0].Timestamp.Sub(base.Add(2 * time.Second)); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("Timestamp drifted by %s", d)
	}
}

func TestAlertRepository_Stats(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Alerts != 0 || stats.LastAlert != nil {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	base := time.Unix(1_700_000_000, 0)
	repo.Insert(sampleAlert("a", "7", base))
	repo.Insert(sampleAlert("b", "7", base.Add(time.Second)))
	repo.Insert(sampleAlert("c", "9", base.Add(2*time.Second)))

	stats, err = repo.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Tracks != 2 || stats.Alerts != 3 {
		t.Errorf("Expected 2 tracks / 3 alerts, got %+v", stats)
	}
	if stats.LastAlert == nil || !stats.LastAlert.Equal(base.Add(2*time.Second)) {
		t.Errorf("Unexpected last alert time %v", stats.LastAlert)
	}
}

func TestAlertRepository_Prune(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		if _, err := repo.Insert(sampleAlert(string(rune('a'+i)), "1", base)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	removed, err := repo.Prune(3)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 rows removed, got %d", removed)
	}

	alerts, _ := repo.List(10)
	if len(alerts) != 3 || alerts[2].UID != "c" {
		t.Errorf("Expected the 3 newest alerts to remain, got %+v", alerts)
	}
}

func TestAlertRepository_DuplicateUID(t *testing.T) {
	repo := NewAlertRepository(setupTestDB(t))
	a := sampleAlert("same", "1", time.Now())

	if _, err := repo.Insert(a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := repo.Insert(a); err == nil {
		t.Error("Expected a unique constraint error")
	}
}

// ========================================
// Error Paths
// ========================================

func TestAlertRepository_InsertError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer conn.Close()

	dbErr := errors.New("disk I/O error")
	mock.ExpectExec("INSERT INTO alerts").WillReturnError(dbErr)

	repo := NewAlertRepository(Wrap(conn))
	_, err = repo.Insert(sampleAlert("x", "1", time.Now()))
	if !errors.Is(err, dbErr) {
		t.Errorf("Expected the driver error to be wrapped, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestAlertRepository_ListScanError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer conn.Close()

	rows := sqlmock.NewRows([]string{"id", "uid"}).AddRow(1, "short")
	mock.ExpectQuery("SELECT (.+) FROM alerts").WithArgs(10).WillReturnRows(rows)

	repo := NewAlertRepository(Wrap(conn))
	if _, err := repo.List(10); err == nil {
		t.Error("Expected a scan error for a mismatched row")
	}
}

func TestAlertRepository_StatsError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("locked"))

	repo := NewAlertRepository(Wrap(conn))
	if _, err := repo.Stats(); err == nil {
		t.Error("Expected an error from a failing query")
	}
}
