package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func metricsTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(MetricsSchema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMetricsManager_RecordFlushesAtBufferSize(t *testing.T) {
	db := metricsTestDB(t)
	mm := NewMetricsManager(db, 2, time.Hour)
	defer mm.Close()

	mm.RecordSimple(MetricSessionStartedCount, 1, "count")
	mm.RecordSimple(MetricSessionStartedCount, 1, "count")

	var count int
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if err := db.QueryRow("SELECT COUNT(*) FROM metrics_timeseries").Scan(&count); err != nil {
			t.Fatalf("count: %v", err)
		}
		if count == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected 2 flushed metrics, got %d", count)
}

func TestMetricsManager_CloseFlushesRemaining(t *testing.T) {
	db := metricsTestDB(t)
	mm := NewMetricsManager(db, 100, time.Hour)

	mm.RecordSimple(MetricFrameEmittedCount, 5, "count")
	if err := mm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM metrics_timeseries").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 metric flushed on Close, got %d", count)
	}
}

func TestMetricsManager_QueryFiltersByNameAndTime(t *testing.T) {
	db := metricsTestDB(t)
	mm := NewMetricsManager(db, 100, time.Hour)

	mm.Record(&Metric{Name: MetricSessionStartedCount, Timestamp: time.Now(), Value: 1, Unit: "count"})
	mm.Record(&Metric{Name: MetricAssetFetchDurationMs, Timestamp: time.Now(), Value: 42, Unit: "milliseconds"})
	if err := mm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := mm.Query(MetricAssetFetchDurationMs, nil, nil, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d metrics, want 1", len(got))
	}
	if got[0].Name != MetricAssetFetchDurationMs || got[0].Value != 42 {
		t.Errorf("got %+v", got[0])
	}
}

func TestMetricsManager_Cleanup(t *testing.T) {
	db := metricsTestDB(t)
	old := time.Now().AddDate(0, 0, -10)
	recent := time.Now()

	mm := NewMetricsManager(db, 100, time.Hour)
	mm.Record(&Metric{Name: "old_metric", Timestamp: old, Value: 1, Unit: "count"})
	mm.Record(&Metric{Name: "recent_metric", Timestamp: recent, Value: 1, Unit: "count"})
	if err := mm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	removed, err := mm.Cleanup(context.Background(), 3)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
