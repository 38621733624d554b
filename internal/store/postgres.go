package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists reports to PostgreSQL. History, media refs, and
// delivery records live in JSONB columns; code is the only writer and treats
// history as append-only. The version column carries the optimistic lock:
// Update is a single UPDATE ... WHERE id AND version, so a stale writer
// affects zero rows and fails without touching the committed state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, r *report.Report) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	history, media, deliveries, err := marshalDocs(r)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO reports (
			id, kind, lat, lng, location_desc, description, media_refs,
			reporter_id, severity, confidence, routed_to, status,
			classifier_state, history, deliveries, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18
		)`,
		r.ID, r.Kind, r.Location.Lat, r.Location.Lng, r.Location.Description,
		r.Description, media, r.ReporterID, r.Severity, r.Confidence,
		r.RoutedTo, r.Status, r.ClassifierState, history, deliveries,
		r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` FROM reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, report.ErrNotFound
	}
	return r, err
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]*report.Report, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` FROM reports ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, r *report.Report) error {
	history, media, deliveries, err := marshalDocs(r)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE reports SET
			lat = $3, lng = $4, location_desc = $5, description = $6,
			media_refs = $7, severity = $8, confidence = $9, routed_to = $10,
			status = $11, classifier_state = $12, history = $13,
			deliveries = $14, version = version + 1, updated_at = $15
		WHERE id = $1 AND version = $2`,
		r.ID, r.Version, r.Location.Lat, r.Location.Lng, r.Location.Description,
		r.Description, media, r.Severity, r.Confidence, r.RoutedTo,
		r.Status, r.ClassifierState, history, deliveries, now,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means either a version conflict or a missing report.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, r.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check report existence: %w", err)
		}
		if !exists {
			return report.ErrNotFound
		}
		return report.ErrStaleVersion
	}

	r.Version++
	r.UpdatedAt = now
	return nil
}

const selectColumns = `
	SELECT id, kind, lat, lng, location_desc, description, media_refs,
	       reporter_id, severity, confidence, routed_to, status,
	       classifier_state, history, deliveries, version, created_at, updated_at`

// scanReport reads one row into a Report, decoding the JSONB documents.
func scanReport(row pgx.Row) (*report.Report, error) {
	r := &report.Report{}
	var history, media, deliveries []byte
	if err := row.Scan(
		&r.ID, &r.Kind, &r.Location.Lat, &r.Location.Lng, &r.Location.Description,
		&r.Description, &media, &r.ReporterID, &r.Severity, &r.Confidence,
		&r.RoutedTo, &r.Status, &r.ClassifierState, &history, &deliveries,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &r.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if err := json.Unmarshal(media, &r.MediaRefs); err != nil {
		return nil, fmt.Errorf("decode media refs: %w", err)
	}
	if err := json.Unmarshal(deliveries, &r.Deliveries); err != nil {
		return nil, fmt.Errorf("decode deliveries: %w", err)
	}
	return r, nil
}

// marshalDocs encodes the JSONB document columns.
func marshalDocs(r *report.Report) (history, media, deliveries []byte, err error) {
	if history, err = json.Marshal(r.History); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal history: %w", err)
	}
	if r.MediaRefs == nil {
		media = []byte("[]")
	} else if media, err = json.Marshal(r.MediaRefs); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal media refs: %w", err)
	}
	if r.Deliveries == nil {
		deliveries = []byte("[]")
	} else if deliveries, err = json.Marshal(r.Deliveries); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal deliveries: %w", err)
	}
	return history, media, deliveries, nil
}
