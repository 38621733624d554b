package classify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/firewatch-ph/firewatch/internal/classify"
	"github.com/firewatch-ph/firewatch/internal/report"
)

func TestRemoteClassifierSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in classify.Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode input: %v", err)
		}
		json.NewEncoder(w).Encode(classify.Result{Label: report.SeverityMajor, Confidence: 0.91})
	}))
	defer srv.Close()

	c := classify.NewRemoteClassifier(srv.URL, time.Second)
	res, err := c.Classify(context.Background(), classify.Input{Description: "fire"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Label != report.SeverityMajor || res.Confidence != 0.91 {
		t.Errorf("result = %+v", res)
	}
}

func TestRemoteClassifierServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := classify.NewRemoteClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), classify.Input{Description: "fire"})
	if !errors.Is(err, classify.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRemoteClassifierTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := classify.NewRemoteClassifier(srv.URL, 20*time.Millisecond)
	_, err := c.Classify(context.Background(), classify.Input{Description: "fire"})
	if !errors.Is(err, classify.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRemoteClassifierBadLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"label": "catastrophic", "confidence": 0.5})
	}))
	defer srv.Close()

	c := classify.NewRemoteClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), classify.Input{Description: "fire"})
	if !errors.Is(err, classify.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRemoteClassifierConfidenceOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"label": "major", "confidence": 1.7})
	}))
	defer srv.Close()

	c := classify.NewRemoteClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), classify.Input{Description: "fire"})
	if !errors.Is(err, classify.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
