package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"parkscan/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) (*DB, *SessionRepository) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, NewSessionRepository(db)
}

func insertSession(t *testing.T, repo *SessionRepository, id string, startedAt time.Time) {
	t.Helper()

	err := repo.Insert(&model.Session{
		ID:             id,
		StartedAt:      startedAt,
		Outcome:        model.OutcomePending,
		DispatchStatus: model.DispatchNone,
	})
	if err != nil {
		t.Fatalf("Failed to insert session %s: %v", id, err)
	}
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "nested", "scan.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrateIsRepeatable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scan.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	insertSession(t, NewSessionRepository(db), "a", time.Now())
	db.Close()

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	s, err := NewSessionRepository(db).GetByID("a")
	if err != nil || s == nil {
		t.Fatalf("Expected session to survive reopen, got %v, %v", s, err)
	}
}

// ========================================
// Session Repository Tests
// ========================================

func TestSessionRepository_Lifecycle(t *testing.T) {
	_, repo := setupTestDB(t)

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	insertSession(t, repo, "session-1", started)

	ended := started.Add(4 * time.Second)
	if err := repo.Finish("session-1", model.OutcomeDecoded, 12, ended); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := repo.SetDispatchStatus("session-1", model.DispatchDelivered); err != nil {
		t.Fatalf("SetDispatchStatus failed: %v", err)
	}

	s, err := repo.GetByID("session-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if s == nil {
		t.Fatal("Expected session, got nil")
	}
	if !s.StartedAt.Equal(started) {
		t.Errorf("Expected started_at %v, got %v", started, s.StartedAt)
	}
	if s.EndedAt == nil || !s.EndedAt.Equal(ended) {
		t.Errorf("Expected ended_at %v, got %v", ended, s.EndedAt)
	}
	if s.Outcome != model.OutcomeDecoded {
		t.Errorf("Expected outcome decoded, got %s", s.Outcome)
	}
	if s.DispatchStatus != model.DispatchDelivered {
		t.Errorf("Expected dispatch delivered, got %s", s.DispatchStatus)
	}
	if s.DecodeAttempts != 12 {
		t.Errorf("Expected 12 attempts, got %d", s.DecodeAttempts)
	}
}

func TestSessionRepository_GetByIDMissing(t *testing.T) {
	_, repo := setupTestDB(t)

	s, err := repo.GetByID("nope")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s != nil {
		t.Errorf("Expected nil session, got %+v", s)
	}
}

func TestSessionRepository_UpdateMissing(t *testing.T) {
	_, repo := setupTestDB(t)

	if err := repo.Finish("nope", model.OutcomeCancelled, 0, time.Now()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Finish: expected ErrSessionNotFound, got %v", err)
	}
	if err := repo.SetDispatchStatus("nope", model.DispatchFailed); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SetDispatchStatus: expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_DuplicateInsert(t *testing.T) {
	_, repo := setupTestDB(t)
	insertSession(t, repo, "dup", time.Now())

	if err := repo.Insert(&model.Session{ID: "dup", StartedAt: time.Now(), Outcome: model.OutcomePending, DispatchStatus: model.DispatchNone}); err == nil {
		t.Error("Expected duplicate insert to fail")
	}
}

func TestSessionRepository_GetRecent(t *testing.T) {
	_, repo := setupTestDB(t)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		insertSession(t, repo, id, base.Add(time.Duration(i)*time.Minute))
	}

	tests := []struct {
		limit    int
		expected []string
	}{
		{0, []string{"third", "second", "first"}},
		{2, []string{"third", "second"}},
		{10, []string{"third", "second", "first"}},
	}

	for _, tt := range tests {
		sessions, err := repo.GetRecent(tt.limit)
		if err != nil {
			t.Fatalf("GetRecent(%d) failed: %v", tt.limit, err)
		}
		if len(sessions) != len(tt.expected) {
			t.Fatalf("GetRecent(%d) returned %d sessions, expected %d", tt.limit, len(sessions), len(tt.expected))
		}
		for i, id := range tt.expected {
			if sessions[i].ID != id {
				t.Errorf("GetRecent(%d)[%d] = %s, expected %s", tt.limit, i, sessions[i].ID, id)
			}
		}
	}
}

func TestSessionRepository_GetRecentEmpty(t *testing.T) {
	_, repo := setupTestDB(t)

	sessions, err := repo.GetRecent(5)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", sessions)
	}
}

func TestSessionRepository_GetStats(t *testing.T) {
	_, repo := setupTestDB(t)
	now := time.Now()

	insertSession(t, repo, "a", now)
	insertSession(t, repo, "b", now)
	insertSession(t, repo, "c", now)
	insertSession(t, repo, "d", now)

	repo.Finish("a", model.OutcomeDecoded, 3, now)
	repo.SetDispatchStatus("a", model.DispatchDelivered)
	repo.Finish("b", model.OutcomeDecoded, 5, now)
	repo.SetDispatchStatus("b", model.DispatchFailed)
	repo.Finish("c", model.OutcomeCancelled, 1, now)

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if stats.TotalSessions != 4 {
		t.Errorf("Expected 4 sessions, got %d", stats.TotalSessions)
	}
	if stats.ByOutcome[model.OutcomeDecoded] != 2 {
		t.Errorf("Expected 2 decoded, got %d", stats.ByOutcome[model.OutcomeDecoded])
	}
	if stats.ByOutcome[model.OutcomeCancelled] != 1 {
		t.Errorf("Expected 1 cancelled, got %d", stats.ByOutcome[model.OutcomeCancelled])
	}
	if stats.ByOutcome[model.OutcomePending] != 1 {
		t.Errorf("Expected 1 pending, got %d", stats.ByOutcome[model.OutcomePending])
	}
	if stats.ByDispatch[model.DispatchNone] != 2 {
		t.Errorf("Expected 2 without dispatch, got %d", stats.ByDispatch[model.DispatchNone])
	}
	if stats.ByDispatch[model.DispatchFailed] != 1 {
		t.Errorf("Expected 1 failed dispatch, got %d", stats.ByDispatch[model.DispatchFailed])
	}
}

func TestSessionRepository_GetStatsClosedDatabase(t *testing.T) {
	db, repo := setupTestDB(t)
	db.Close()

	stats, err := repo.GetStats()
	if err == nil {
		t.Fatal("Expected an error from a closed database")
	}
	if stats != nil {
		t.Errorf("Expected no stats on error, got %+v", stats)
	}
	if !strings.Contains(err.Error(), "failed to count sessions") {
		t.Errorf("Expected a wrapped count error, got %v", err)
	}
}

func TestSessionRepository_DeleteBefore(t *testing.T) {
	_, repo := setupTestDB(t)

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	insertSession(t, repo, "old-1", cutoff.Add(-48*time.Hour))
	insertSession(t, repo, "old-2", cutoff.Add(-time.Hour))
	insertSession(t, repo, "new", cutoff.Add(time.Hour))

	n, err := repo.DeleteBefore(cutoff)
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deleted, got %d", n)
	}

	remaining, _ := repo.GetRecent(0)
	if len(remaining) != 1 || remaining[0].ID != "new" {
		t.Errorf("Expected only 'new' to remain, got %v", remaining)
	}
}

func TestSessionRepository_ConcurrentAccess(t *testing.T) {
	_, repo := setupTestDB(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id := "concurrent_" + string(rune('a'+idx))
			if err := repo.Insert(&model.Session{ID: id, StartedAt: time.Now(), Outcome: model.OutcomePending, DispatchStatus: model.DispatchNone}); err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
				return
			}
			if err := repo.Finish(id, model.OutcomeCancelled, idx, time.Now()); err != nil {
				t.Errorf("Concurrent finish %d failed: %v", idx, err)
			}
		}(i)
	}
	wg.Wait()

	stats, err := repo.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.ByOutcome[model.OutcomeCancelled] != 10 {
		t.Errorf("Expected 10 cancelled sessions, got %d", stats.ByOutcome[model.OutcomeCancelled])
	}
}
