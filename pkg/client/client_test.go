package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/firewatch-ph/firewatch/pkg/client"
)

func stubEngine(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitReport(t *testing.T) {
	var gotPath, gotOperator string
	srv := stubEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOperator = r.Header.Get("X-Operator-ID")

		var req client.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode submit body: %v", err)
		}
		if req.Kind != "hazard_report" {
			t.Errorf("kind = %s", req.Kind)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id":       "8d7c9f2e-0b1a-4c3d-9e8f-7a6b5c4d3e2f",
			"kind":     req.Kind,
			"status":   "pending",
			"severity": "unclassified",
		})
	})

	c := client.New(srv.URL, client.WithOperatorID("op-glenda"))
	r, err := c.SubmitReport(context.Background(), client.SubmitRequest{
		Kind:        "hazard_report",
		Description: "exposed wiring",
		Location:    client.Location{Description: "Barangay Malanday"},
		ReporterID:  "juan",
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotPath != "/api/v1/reports" {
		t.Errorf("path = %s", gotPath)
	}
	if gotOperator != "op-glenda" {
		t.Errorf("operator header = %q, want op-glenda", gotOperator)
	}
	if r.Status != "pending" {
		t.Errorf("status = %s", r.Status)
	}
}

func TestListReportsQueryEncoding(t *testing.T) {
	srv := stubEngine(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("kind") != "urgent_incident" || q.Get("search") != "fire" {
			t.Errorf("query = %v", q)
		}
		if len(q["severity"]) != 2 {
			t.Errorf("severity params = %v", q["severity"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"reports": []map[string]any{{"id": "a", "kind": "urgent_incident"}},
			"count":   1,
		})
	})

	c := client.New(srv.URL)
	out, err := c.ListReports(context.Background(), client.ListFilter{
		Kind:       "urgent_incident",
		Search:     "fire",
		Severities: []string{"minor", "major"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d reports, want 1", len(out))
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"not found", http.StatusNotFound, "not_found", client.ErrNotFound},
		{"invalid transition", http.StatusConflict, "invalid_transition", client.ErrConflict},
		{"stale version", http.StatusConflict, "stale_transition", client.ErrConflict},
		{"validation", http.StatusBadRequest, "validation", client.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := stubEngine(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(map[string]string{"code": tc.code, "error": tc.name})
			})

			c := client.New(srv.URL, client.WithOperatorID("op-1"))
			_, err := c.GetReport(context.Background(), "8d7c9f2e-0b1a-4c3d-9e8f-7a6b5c4d3e2f")
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestServerErrorIsNotSentinel(t *testing.T) {
	srv := stubEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := client.New(srv.URL)
	_, err := c.GetReport(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, client.ErrNotFound) || errors.Is(err, client.ErrConflict) || errors.Is(err, client.ErrValidation) {
		t.Errorf("500 must not map to a sentinel: %v", err)
	}
}

func TestVerifyAudit(t *testing.T) {
	srv := stubEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/audit/verify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"valid": true})
	})

	c := client.New(srv.URL)
	ok, detail, err := c.VerifyAudit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok || detail != "" {
		t.Errorf("valid = %v, detail = %q", ok, detail)
	}
}
