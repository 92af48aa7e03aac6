package observability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(HeartbeatSchema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCollectRuntimeMetrics(t *testing.T) {
	m := CollectRuntimeMetrics()
	if m.GoroutinesCount <= 0 {
		t.Errorf("GoroutinesCount = %d, want > 0", m.GoroutinesCount)
	}
	if m.MemoryAllocMB <= 0 {
		t.Errorf("MemoryAllocMB = %f, want > 0", m.MemoryAllocMB)
	}
}

func TestHeartbeatWriter_WriteAndRead(t *testing.T) {
	db := testDB(t)
	hw := NewHeartbeatWriter(db, "domcorderd", time.Hour)

	if err := hw.WriteHeartbeat(); err != nil {
		t.Fatalf("WriteHeartbeat: %v", err)
	}

	status, err := LatestHeartbeat(context.Background(), db, "domcorderd", time.Minute)
	if err != nil {
		t.Fatalf("LatestHeartbeat: %v", err)
	}
	if status == nil {
		t.Fatal("expected a heartbeat status, got nil")
	}
	if status.Process != "domcorderd" {
		t.Errorf("Process = %q, want domcorderd", status.Process)
	}
	if !status.Alive {
		t.Error("expected Alive true for a freshly written heartbeat")
	}
	if status.StaleSince != nil {
		t.Errorf("expected StaleSince nil for a live heartbeat, got %v", *status.StaleSince)
	}
}

func TestLatestHeartbeat_NoneRecorded(t *testing.T) {
	db := testDB(t)
	status, err := LatestHeartbeat(context.Background(), db, "domcorderd", time.Minute)
	if err != nil {
		t.Fatalf("LatestHeartbeat: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status with no heartbeats recorded, got %+v", status)
	}
}

func TestLatestHeartbeat_StaleWhenPastThreshold(t *testing.T) {
	db := testDB(t)
	old := time.Now().Add(-time.Hour).Unix()
	if _, err := db.Exec(`
		INSERT INTO process_heartbeats (
			process, hostname, pid, timestamp,
			goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count
		) VALUES (?,?,?,?,?,?,?,?)`,
		"domcorderd", "host", 1, old, 4, 10.0, 20.0, 2); err != nil {
		t.Fatalf("seed heartbeat: %v", err)
	}

	status, err := LatestHeartbeat(context.Background(), db, "domcorderd", time.Minute)
	if err != nil {
		t.Fatalf("LatestHeartbeat: %v", err)
	}
	if status.Alive {
		t.Error("expected Alive false for a heartbeat older than the staleness threshold")
	}
	if status.StaleSince == nil {
		t.Error("expected StaleSince to be set for a stale heartbeat")
	}
}

func TestHeartbeatWriter_StartAndStop(t *testing.T) {
	db := testDB(t)
	hw := NewHeartbeatWriter(db, "domcorderd", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hw.Start(ctx)
	time.Sleep(40 * time.Millisecond)
	hw.Stop()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM process_heartbeats").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count < 2 {
		t.Errorf("expected at least 2 heartbeats written, got %d", count)
	}
}

func TestCleanupHeartbeats(t *testing.T) {
	db := testDB(t)
	old := time.Now().AddDate(0, 0, -10).Unix()
	recent := time.Now().Unix()
	for _, ts := range []int64{old, recent} {
		if _, err := db.Exec(`
			INSERT INTO process_heartbeats (
				process, hostname, pid, timestamp,
				goroutines_count, memory_alloc_mb, memory_sys_mb, gc_count
			) VALUES (?,?,?,?,?,?,?,?)`,
			"domcorderd", "host", 1, ts, 4, 10.0, 20.0, 2); err != nil {
			t.Fatalf("seed heartbeat: %v", err)
		}
	}

	removed, err := CleanupHeartbeats(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("CleanupHeartbeats: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM process_heartbeats").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining count = %d, want 1", count)
	}
}
