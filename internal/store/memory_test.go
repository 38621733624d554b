package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/store"
	"github.com/google/uuid"
)

func newPending(t *testing.T, s store.Store) *report.Report {
	t.Helper()
	r := &report.Report{
		Kind:        report.KindHazardReport,
		Description: "octopus connection at the covered court",
		ReporterID:  "juan",
		Severity:    report.SeverityUnclassified,
		RoutedTo:    report.TargetUnrouted,
	}
	r.AppendHistory(report.StatusPending, "juan", "report submitted")
	if err := s.Create(context.Background(), r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func TestCreateAssignsIdentityAndVersion(t *testing.T) {
	s := store.NewMemoryStore()
	r := newPending(t, s)

	if r.ID == uuid.Nil {
		t.Error("Create must assign an ID")
	}
	if r.Version != 1 {
		t.Errorf("Version = %d, want 1", r.Version)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("Create must set timestamps")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := store.NewMemoryStore()
	r := newPending(t, s)

	got, err := s.Get(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Mutating the snapshot must not leak into the store.
	got.Description = "tampered"
	got.History[0].Actor = "mallory"

	again, _ := s.Get(context.Background(), r.ID)
	if again.Description != r.Description {
		t.Error("snapshot mutation leaked into stored description")
	}
	if again.History[0].Actor != "juan" {
		t.Error("snapshot mutation leaked into stored history")
	}
}

func TestGetMissing(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.Get(context.Background(), uuid.New())
	if !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	s := store.NewMemoryStore()
	r := newPending(t, s)

	r.Severity = report.SeverityMinor
	if err := s.Update(context.Background(), r); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if r.Version != 2 {
		t.Errorf("Version = %d, want 2", r.Version)
	}
}

func TestUpdateStaleVersion(t *testing.T) {
	s := store.NewMemoryStore()
	r := newPending(t, s)

	a, _ := s.Get(context.Background(), r.ID)
	b, _ := s.Get(context.Background(), r.ID)

	a.Severity = report.SeverityMajor
	if err := s.Update(context.Background(), a); err != nil {
		t.Fatalf("first Update: %v", err)
	}

	b.Severity = report.SeverityMinor
	err := s.Update(context.Background(), b)
	if !errors.Is(err, report.ErrStaleVersion) {
		t.Fatalf("second Update err = %v, want ErrStaleVersion", err)
	}

	// First writer's commit must be untouched.
	got, _ := s.Get(context.Background(), r.ID)
	if got.Severity != report.SeverityMajor {
		t.Errorf("Severity = %s, want major (first committed wins)", got.Severity)
	}
}

func TestUpdateMissing(t *testing.T) {
	s := store.NewMemoryStore()
	r := &report.Report{ID: uuid.New(), Version: 1}
	if err := s.Update(context.Background(), r); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentUpdatesOneWinnerPerVersion(t *testing.T) {
	s := store.NewMemoryStore()
	r := newPending(t, s)

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, stale := 0, 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := s.Get(context.Background(), r.ID)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			snap.Description = "updated"
			err = s.Update(context.Background(), snap)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, report.ErrStaleVersion):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins < 1 {
		t.Fatal("at least one writer must win")
	}
	if wins+stale != writers {
		t.Errorf("wins(%d) + stale(%d) != %d", wins, stale, writers)
	}

	got, _ := s.Get(context.Background(), r.ID)
	if got.Version != 1+wins {
		t.Errorf("Version = %d, want %d (one bump per winner)", got.Version, 1+wins)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := store.NewMemoryStore()
	for i := 0; i < 3; i++ {
		newPending(t, s)
	}

	out, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].CreatedAt.After(out[i-1].CreatedAt) {
			t.Errorf("list not ordered newest first at %d", i)
		}
	}
}
