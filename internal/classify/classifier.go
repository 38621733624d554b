// Package classify produces severity verdicts for submitted reports.
// The engine treats a Classifier as a black box: a verdict with a confidence
// score, or ErrUnavailable when the upstream dependency cannot answer in time.
// Classification failure never blocks intake — the lifecycle falls back to the
// manual path and surfaces the failure as a report status field.
package classify

import (
	"context"
	"errors"
	"time"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/google/uuid"
)

// ErrUnavailable is returned when the classifier's upstream dependency is
// unreachable or times out. Recoverable: the caller routes manually.
var ErrUnavailable = errors.New("classifier unavailable")

// DefaultTimeout bounds a single classification attempt.
const DefaultTimeout = 5 * time.Second

// Input is the report content a classifier may inspect. It carries no
// mutable engine state, so classification is pure with respect to content.
type Input struct {
	ReportID     uuid.UUID   `json:"report_id"`
	Kind         report.Kind `json:"kind"`
	Description  string      `json:"description"`
	LocationDesc string      `json:"location_desc"`
	MediaCount   int         `json:"media_count"`
}

// Result is a severity verdict. Label is always Minor or Major — a classifier
// never answers Unclassified — and Confidence is in [0,1].
type Result struct {
	Label      report.Severity `json:"label"`
	Confidence float64         `json:"confidence"`
}

// Classifier turns report content into a severity verdict.
// Implementations must be idempotent for identical input.
type Classifier interface {
	Classify(ctx context.Context, in Input) (Result, error)
}
