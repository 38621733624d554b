package session_test

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/session"
	"github.com/firewatch-ph/firewatch/internal/store"
)

func seedStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemoryStore()
	seed := []struct {
		kind     report.Kind
		severity report.Severity
		status   report.Status
		desc     string
		loc      string
	}{
		{report.KindUrgentIncident, report.SeverityMajor, report.StatusDispatched, "kitchen fire", "Barangay Malanday"},
		{report.KindUrgentIncident, report.SeverityUnclassified, report.StatusPending, "smoke from warehouse", "Barangay Concepcion"},
		{report.KindHazardReport, report.SeverityMinor, report.StatusPending, "exposed wiring", "Barangay Malanday"},
		{report.KindHazardReport, report.SeverityMajor, report.StatusResolved, "flammable storage", "Barangay Bayan"},
	}
	for _, s := range seed {
		r := &report.Report{
			Kind:        s.kind,
			Severity:    s.severity,
			Description: s.desc,
			Location:    report.Location{Description: s.loc},
			ReporterID:  "juan",
			RoutedTo:    report.TargetUnrouted,
		}
		r.AppendHistory(s.status, "seed", "")
		if err := st.Create(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	return st
}

func newSessions(t *testing.T) (*session.Manager, store.Store) {
	t.Helper()
	st := seedStore(t)
	return session.NewManager(st, zap.NewNop()), st
}

func TestOpenDefaults(t *testing.T) {
	m, _ := newSessions(t)
	s := m.Open("op-1")

	if s.ActiveTab != session.TabIncidents {
		t.Errorf("default tab = %s, want incidents", s.ActiveTab)
	}
	if s.Criteria.Search != "" || s.Criteria.From != nil || len(s.Criteria.Barangays) != 0 {
		t.Errorf("fresh session must have empty criteria: %+v", s.Criteria)
	}
	if s.OperatorID != "op-1" {
		t.Errorf("operator = %s", s.OperatorID)
	}
}

func TestGetAndCloseSession(t *testing.T) {
	m, _ := newSessions(t)
	if m.Get("op-1") != nil {
		t.Fatal("no session should exist before Open")
	}
	m.Open("op-1")
	if m.Get("op-1") == nil {
		t.Fatal("session missing after Open")
	}
	m.Close("op-1")
	if m.Get("op-1") != nil {
		t.Fatal("session must be gone after Close")
	}

	if _, err := m.ApplyFilter("op-1", session.Criteria{Search: "x"}); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestCriteriaSurviveTabSwitch(t *testing.T) {
	m, _ := newSessions(t)
	m.Open("op-1")

	from := time.Now().Add(-24 * time.Hour)
	if _, err := m.ApplyFilter("op-1", session.Criteria{
		Search:    "wiring",
		From:      &from,
		Barangays: []string{"Malanday"},
	}); err != nil {
		t.Fatal(err)
	}

	s, err := m.SwitchTab("op-1", session.TabHazards)
	if err != nil {
		t.Fatal(err)
	}
	if s.ActiveTab != session.TabHazards {
		t.Errorf("tab = %s, want hazards", s.ActiveTab)
	}
	if s.Criteria.Search != "wiring" || s.Criteria.From == nil || len(s.Criteria.Barangays) != 1 {
		t.Errorf("criteria must survive the tab switch unchanged: %+v", s.Criteria)
	}

	// And back again.
	s, _ = m.SwitchTab("op-1", session.TabIncidents)
	if s.Criteria.Search != "wiring" {
		t.Errorf("criteria lost on second switch: %+v", s.Criteria)
	}
}

func TestSwitchTabUnknown(t *testing.T) {
	m, _ := newSessions(t)
	m.Open("op-1")
	if _, err := m.SwitchTab("op-1", "archive"); err == nil {
		t.Fatal("unknown tab must fail")
	}
}

func TestApplyFilterMerges(t *testing.T) {
	m, _ := newSessions(t)
	m.Open("op-1")

	if _, err := m.ApplyFilter("op-1", session.Criteria{Search: "fire"}); err != nil {
		t.Fatal(err)
	}
	s, err := m.ApplyFilter("op-1", session.Criteria{Barangays: []string{"Malanday"}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Criteria.Search != "fire" {
		t.Errorf("earlier criteria clobbered by merge: %+v", s.Criteria)
	}
	if len(s.Criteria.Barangays) != 1 {
		t.Errorf("new criteria not applied: %+v", s.Criteria)
	}
}

func TestClearFiltersKeepsTab(t *testing.T) {
	m, _ := newSessions(t)
	m.Open("op-1")
	m.ApplyFilter("op-1", session.Criteria{Search: "fire"})
	m.SwitchTab("op-1", session.TabHazards)

	s, err := m.ClearFilters("op-1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Criteria.Search != "" {
		t.Errorf("criteria not cleared: %+v", s.Criteria)
	}
	if s.ActiveTab != session.TabHazards {
		t.Errorf("tab = %s, clearing filters must not change the tab", s.ActiveTab)
	}
}

func TestListFiltersByTabAndCriteria(t *testing.T) {
	m, _ := newSessions(t)
	ctx := context.Background()
	m.Open("op-1")

	// Incidents tab: both urgent incidents, no hazards.
	out, err := m.List(ctx, "op-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("incidents tab returned %d reports, want 2", len(out))
	}
	for _, r := range out {
		if r.Kind != report.KindUrgentIncident {
			t.Errorf("incidents tab leaked kind %s", r.Kind)
		}
	}

	// Hazards tab with a severity filter.
	m.SwitchTab("op-1", session.TabHazards)
	m.ApplyFilter("op-1", session.Criteria{Severities: []report.Severity{report.SeverityMinor}})
	out, err = m.List(ctx, "op-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Description != "exposed wiring" {
		t.Fatalf("filtered hazards = %+v, want only the minor wiring report", out)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m, _ := newSessions(t)
	m.Open("op-1")
	m.Open("op-2")

	m.ApplyFilter("op-1", session.Criteria{Search: "fire"})
	m.SwitchTab("op-1", session.TabHazards)

	s2 := m.Get("op-2")
	if s2.Criteria.Search != "" || s2.ActiveTab != session.TabIncidents {
		t.Errorf("op-2's session affected by op-1's actions: %+v", s2)
	}
}

func TestFilterHelper(t *testing.T) {
	st := seedStore(t)
	all, _ := st.List(context.Background())

	out := session.Filter(all, report.KindHazardReport, session.Criteria{Search: "WIRING"})
	if len(out) != 1 {
		t.Fatalf("case-insensitive search returned %d, want 1", len(out))
	}

	out = session.Filter(all, report.KindUrgentIncident, session.Criteria{Barangays: []string{"concepcion"}})
	if len(out) != 1 || out[0].Description != "smoke from warehouse" {
		t.Fatalf("barangay filter = %+v", out)
	}

	out = session.Filter(all, report.KindHazardReport, session.Criteria{Statuses: []report.Status{report.StatusResolved}})
	if len(out) != 1 || out[0].Description != "flammable storage" {
		t.Fatalf("status filter = %+v", out)
	}
}

// Criteria must change only through ApplyFilter and ClearFilters, and the
// active tab only through SwitchTab, no matter how the calls interleave.
func TestFilterStateUnderRandomSequences(t *testing.T) {
	m, _ := newSessions(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	m.Open("op-1")

	tabs := []session.Tab{session.TabIncidents, session.TabHazards}
	searches := []string{"fire", "smoke", "wiring", "storage"}

	// Shadow copy of what the session is supposed to hold.
	wantTab := session.TabIncidents
	var want session.Criteria

	for step := 0; step < 300; step++ {
		switch rng.Intn(4) {
		case 0:
			c := session.Criteria{Search: searches[rng.Intn(len(searches))]}
			if rng.Intn(2) == 0 {
				c.Barangays = []string{"Malanday"}
			}
			if rng.Intn(3) == 0 {
				c.Severities = []report.Severity{report.SeverityMajor}
			}
			if _, err := m.ApplyFilter("op-1", c); err != nil {
				t.Fatalf("step %d: ApplyFilter: %v", step, err)
			}
			want.Search = c.Search
			if c.Barangays != nil {
				want.Barangays = c.Barangays
			}
			if c.Severities != nil {
				want.Severities = c.Severities
			}
		case 1:
			tab := tabs[rng.Intn(len(tabs))]
			if _, err := m.SwitchTab("op-1", tab); err != nil {
				t.Fatalf("step %d: SwitchTab: %v", step, err)
			}
			wantTab = tab
		case 2:
			if _, err := m.ClearFilters("op-1"); err != nil {
				t.Fatalf("step %d: ClearFilters: %v", step, err)
			}
			want = session.Criteria{}
		case 3:
			// Reads must not disturb anything.
			if _, err := m.List(ctx, "op-1"); err != nil {
				t.Fatalf("step %d: List: %v", step, err)
			}
		}

		s := m.Get("op-1")
		if s.ActiveTab != wantTab {
			t.Fatalf("step %d: tab = %s, want %s", step, s.ActiveTab, wantTab)
		}
		if !reflect.DeepEqual(s.Criteria, want) {
			t.Fatalf("step %d: criteria diverged: got %+v, want %+v", step, s.Criteria, want)
		}
	}
}
