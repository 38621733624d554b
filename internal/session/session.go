// Package session holds per-operator dashboard filter state. A session's
// criteria survive tab switches by construction: the active tab is a separate
// field beside a single criteria struct, so switching between the incidents
// and hazards views changes only the kind projection, never the filters.
// Sessions are never shared between operators and never touch the store's
// write path — filtering is a pure read over snapshots.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/firewatch-ph/firewatch/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tab selects which report kind the dashboard displays.
type Tab string

const (
	TabIncidents Tab = "incidents"
	TabHazards   Tab = "hazards"
)

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	return t == TabIncidents || t == TabHazards
}

// Kind returns the report kind a tab projects.
func (t Tab) Kind() report.Kind {
	if t == TabIncidents {
		return report.KindUrgentIncident
	}
	return report.KindHazardReport
}

// Criteria is the operator's filter state, shared across both tabs.
type Criteria struct {
	Search     string            `json:"search,omitempty"`
	From       *time.Time        `json:"from,omitempty"`
	To         *time.Time        `json:"to,omitempty"`
	Barangays  []string          `json:"barangays,omitempty"`
	Severities []report.Severity `json:"severities,omitempty"`
	Statuses   []report.Status   `json:"statuses,omitempty"`
}

// Session is one operator's filter state. Created at login, discarded at
// logout.
type Session struct {
	ID         uuid.UUID `json:"id"`
	OperatorID string    `json:"operator_id"`
	Criteria   Criteria  `json:"criteria"`
	ActiveTab  Tab       `json:"active_tab"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Session) clone() *Session {
	c := *s
	if s.Criteria.From != nil {
		v := *s.Criteria.From
		c.Criteria.From = &v
	}
	if s.Criteria.To != nil {
		v := *s.Criteria.To
		c.Criteria.To = &v
	}
	c.Criteria.Barangays = append([]string(nil), s.Criteria.Barangays...)
	c.Criteria.Severities = append([]report.Severity(nil), s.Criteria.Severities...)
	c.Criteria.Statuses = append([]report.Status(nil), s.Criteria.Statuses...)
	return &c
}

// Manager tracks sessions keyed by operator ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    store.Store
	logger   *zap.Logger
}

// NewManager creates a session Manager reading from the given store.
func NewManager(st store.Store, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    st,
		logger:   logger,
	}
}

// Open creates (or replaces) the session for an operator. Defaults: empty
// criteria, incidents tab.
func (m *Manager) Open(operatorID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	s := &Session{
		ID:         uuid.New(),
		OperatorID: operatorID,
		ActiveTab:  TabIncidents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.sessions[operatorID] = s
	m.logger.Info("filter session opened", zap.String("operator_id", operatorID))
	return s.clone()
}

// Get returns a snapshot of an operator's session, or nil when none is open.
func (m *Manager) Get(operatorID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[operatorID]
	if !ok {
		return nil
	}
	return s.clone()
}

// Close discards an operator's session (logout).
func (m *Manager) Close(operatorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, operatorID)
}

// ApplyFilter merges the non-zero fields of c into the session criteria.
// The active tab is untouched.
func (m *Manager) ApplyFilter(operatorID string, c Criteria) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[operatorID]
	if !ok {
		return nil, ErrNoSession
	}

	if c.Search != "" {
		s.Criteria.Search = c.Search
	}
	if c.From != nil {
		s.Criteria.From = c.From
	}
	if c.To != nil {
		s.Criteria.To = c.To
	}
	if c.Barangays != nil {
		s.Criteria.Barangays = c.Barangays
	}
	if c.Severities != nil {
		s.Criteria.Severities = c.Severities
	}
	if c.Statuses != nil {
		s.Criteria.Statuses = c.Statuses
	}
	s.UpdatedAt = time.Now().UTC()
	return s.clone(), nil
}

// SwitchTab changes which kind the dashboard projects. All criteria fields
// are left exactly as they were.
func (m *Manager) SwitchTab(operatorID string, tab Tab) (*Session, error) {
	if !tab.Valid() {
		return nil, &report.ErrValidation{Msg: "unknown tab: " + string(tab)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[operatorID]
	if !ok {
		return nil, ErrNoSession
	}
	s.ActiveTab = tab
	s.UpdatedAt = time.Now().UTC()
	return s.clone(), nil
}

// ClearFilters resets criteria to defaults, keeping the active tab.
func (m *Manager) ClearFilters(operatorID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[operatorID]
	if !ok {
		return nil, ErrNoSession
	}
	s.Criteria = Criteria{}
	s.UpdatedAt = time.Now().UTC()
	return s.clone(), nil
}

// List returns the store snapshots matching the operator's active tab and
// criteria.
func (m *Manager) List(ctx context.Context, operatorID string) ([]*report.Report, error) {
	s := m.Get(operatorID)
	if s == nil {
		return nil, ErrNoSession
	}

	all, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, s.ActiveTab.Kind(), s.Criteria), nil
}

// Filter applies criteria to snapshots for one report kind. Shared by the
// session path and the stateless list endpoint.
func Filter(reports []*report.Report, kind report.Kind, c Criteria) []*report.Report {
	out := make([]*report.Report, 0, len(reports))
	for _, r := range reports {
		if r.Kind != kind {
			continue
		}
		if !matches(r, c) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r *report.Report, c Criteria) bool {
	if c.Search != "" {
		q := strings.ToLower(c.Search)
		if !strings.Contains(strings.ToLower(r.Description), q) &&
			!strings.Contains(strings.ToLower(r.Location.Description), q) {
			return false
		}
	}
	if c.From != nil && r.CreatedAt.Before(*c.From) {
		return false
	}
	if c.To != nil && r.CreatedAt.After(*c.To) {
		return false
	}
	if len(c.Barangays) > 0 {
		loc := strings.ToLower(r.Location.Description)
		found := false
		for _, b := range c.Barangays {
			if strings.Contains(loc, strings.ToLower(b)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.Severities) > 0 && !containsSeverity(c.Severities, r.Severity) {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, r.Status) {
		return false
	}
	return true
}

func containsSeverity(set []report.Severity, s report.Severity) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsStatus(set []report.Status, s report.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
