package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoadCurrentMonth(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	events := []models.UsageEvent{
		{
			UserID: "alice", Role: models.RoleTeacher, ModelID: "gpt-4o-mini",
			TaskType: models.TaskGrading, InputTokens: 1200, OutputTokens: 300,
			Cost: 0.00036, LatencyMS: 850, Timestamp: now, Success: true,
		},
		{
			UserID: "bob", Role: models.RoleStudent, ModelID: "qwen2.5-7b-local",
			TaskType: models.TaskTutoring, Timestamp: now.AddDate(0, 0, -2),
			Success: false, Error: "provider timeout",
		},
		{
			UserID: "old", Role: models.RoleStudent, ModelID: "qwen2.5-7b-local",
			TaskType: models.TaskTutoring, Timestamp: now.AddDate(0, -1, 0),
			Success: true,
		},
	}
	for _, ev := range events {
		id, err := s.Append(ctx, ev)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if id <= 0 {
			t.Errorf("Append returned id %d, want > 0", id)
		}
	}

	got, err := s.LoadCurrentMonth(ctx, now)
	if err != nil {
		t.Fatalf("LoadCurrentMonth: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadCurrentMonth returned %d events, want 2 (previous month excluded)", len(got))
	}

	// Oldest first.
	if got[0].UserID != "bob" || got[1].UserID != "alice" {
		t.Errorf("LoadCurrentMonth order = [%s, %s], want [bob, alice]", got[0].UserID, got[1].UserID)
	}

	first := got[1]
	if first.Role != models.RoleTeacher || first.TaskType != models.TaskGrading {
		t.Errorf("round-trip enums = %s/%s, want TEACHER/GRADING", first.Role, first.TaskType)
	}
	if first.InputTokens != 1200 || first.OutputTokens != 300 || first.LatencyMS != 850 {
		t.Errorf("round-trip tokens/latency = %d/%d/%d, want 1200/300/850", first.InputTokens, first.OutputTokens, first.LatencyMS)
	}
	if !first.Success || first.Error != "" {
		t.Errorf("round-trip success = %v/%q, want true with no error", first.Success, first.Error)
	}
	if failed := got[0]; failed.Success || failed.Error != "provider timeout" {
		t.Errorf("round-trip failed event = %v/%q, want false/provider timeout", failed.Success, failed.Error)
	}
}

func TestLoadCurrentMonthEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LoadCurrentMonth(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("LoadCurrentMonth: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadCurrentMonth on empty store = %d events, want 0", len(got))
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.db")
	ctx := context.Background()
	now := time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Append(ctx, models.UsageEvent{
		UserID: "alice", Role: models.RoleTeacher, ModelID: "gpt-4o-mini",
		TaskType: models.TaskGrading, Cost: 0.01, Timestamp: now, Success: true,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadCurrentMonth(ctx, now)
	if err != nil {
		t.Fatalf("LoadCurrentMonth: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "alice" {
		t.Errorf("LoadCurrentMonth after reopen = %v, want the persisted alice event", got)
	}
}
