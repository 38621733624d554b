package classify_test

import (
	"context"
	"testing"

	"github.com/firewatch-ph/firewatch/internal/classify"
	"github.com/firewatch-ph/firewatch/internal/report"
)

func TestRuleClassifierVerdicts(t *testing.T) {
	c := classify.NewRuleClassifier()

	cases := []struct {
		name        string
		description string
		location    string
		wantLabel   report.Severity
	}{
		{
			name:        "active fire is major",
			description: "May sunog! Flames visible from the second floor",
			wantLabel:   report.SeverityMajor,
		},
		{
			name:        "gas leak is major",
			description: "strong smell, possible gas leak from the LPG tank",
			wantLabel:   report.SeverityMajor,
		},
		{
			name:        "exposed wiring is minor",
			description: "exposed wiring hanging over the alley near the pump",
			wantLabel:   report.SeverityMinor,
		},
		{
			name:        "blocked fire exit is minor",
			description: "the blocked fire exit at the market has not been cleared",
			wantLabel:   report.SeverityMinor,
		},
		{
			name:        "major indicator outweighs minor ones",
			description: "exposed wiring and octopus connection caused sparks flying",
			wantLabel:   report.SeverityMajor,
		},
		{
			name:        "location description is inspected too",
			description: "please send someone",
			location:    "building with smoke on Rizal street",
			wantLabel:   report.SeverityMajor,
		},
		{
			name:        "no indicators fall back to minor",
			description: "something looks off in the warehouse",
			wantLabel:   report.SeverityMinor,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := c.Classify(context.Background(), classify.Input{
				Description:  tc.description,
				LocationDesc: tc.location,
			})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if res.Label != tc.wantLabel {
				t.Errorf("label = %s, want %s", res.Label, tc.wantLabel)
			}
			if res.Confidence <= 0 || res.Confidence > 1 {
				t.Errorf("confidence %v out of range", res.Confidence)
			}
		})
	}
}

func TestRuleClassifierConfidenceGrowsWithHits(t *testing.T) {
	c := classify.NewRuleClassifier()
	ctx := context.Background()

	one, _ := c.Classify(ctx, classify.Input{Description: "there is smoke"})
	many, _ := c.Classify(ctx, classify.Input{Description: "fire, smoke, flames, explosion, people trapped"})

	if many.Confidence <= one.Confidence {
		t.Errorf("confidence with many hits (%v) should exceed one hit (%v)", many.Confidence, one.Confidence)
	}
	if many.Confidence > 0.95 {
		t.Errorf("confidence %v exceeds the cap", many.Confidence)
	}
}

func TestRuleClassifierNoMatchUsesFloorConfidence(t *testing.T) {
	c := classify.NewRuleClassifier()
	res, _ := c.Classify(context.Background(), classify.Input{Description: "nothing remarkable"})
	if res.Confidence >= 0.55 {
		t.Errorf("unmatched description should carry floor confidence, got %v", res.Confidence)
	}
}

func TestRuleClassifierIdempotent(t *testing.T) {
	c := classify.NewRuleClassifier()
	in := classify.Input{Description: "electrical fire behind the school, smoke spreading"}

	first, err := c.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := c.Classify(context.Background(), in)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if again != first {
			t.Fatalf("verdict changed across identical inputs: %+v vs %+v", again, first)
		}
	}
}
