package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresStore struct {
	db  DB
	now func() time.Time
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// periodBounds returns the calendar-month billing window containing now.
// End is exclusive.
func periodBounds(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// ensurePeriod finds the identity's active period, opening it if the
// previous one has lapsed. The insert is ON CONFLICT DO NOTHING so two
// concurrent first requests race safely; both re-read the winner's row.
func (s *PostgresStore) ensurePeriod(ctx context.Context, identity string) (*Period, error) {
	now := s.now().UTC()

	selectQuery := `
		SELECT id, identity, period_start, period_end, credits_used
		FROM usage_periods
		WHERE identity = $1 AND period_start <= $2 AND $2 < period_end
	`
	var p Period
	err := s.db.QueryRow(ctx, selectQuery, identity, now).Scan(&p.ID, &p.Identity, &p.Start, &p.End, &p.CreditsUsed)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to query usage period: %w", err)
	}

	start, end := periodBounds(now)
	insertQuery := `
		INSERT INTO usage_periods (id, identity, period_start, period_end, credits_used)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (identity, period_start) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, insertQuery, uuid.New().String(), identity, start, end); err != nil {
		return nil, fmt.Errorf("failed to open usage period: %w", err)
	}

	err = s.db.QueryRow(ctx, selectQuery, identity, now).Scan(&p.ID, &p.Identity, &p.Start, &p.End, &p.CreditsUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read usage period: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) CurrentPeriodUsage(ctx context.Context, identity string) (int64, error) {
	p, err := s.ensurePeriod(ctx, identity)
	if err != nil {
		return 0, err
	}
	return p.CreditsUsed, nil
}

// AppendRecord inserts the record and bumps the period running total in a
// single transaction. The increment is one UPDATE statement, never a
// read-modify-write, so concurrent appends for the same period serialize
// at the row.
func (s *PostgresStore) AppendRecord(ctx context.Context, rec *Record) error {
	p, err := s.ensurePeriod(ctx, rec.Identity)
	if err != nil {
		return err
	}
	rec.PeriodID = p.ID

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO usage_records (identity, period_id, feature, credits, tokens_in, tokens_out, model, cached_hit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		rec.Identity, rec.PeriodID, rec.Feature, rec.Credits,
		rec.TokensIn, rec.TokensOut, rec.Model, rec.CachedHit,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	if rec.Credits > 0 {
		updateQuery := `UPDATE usage_periods SET credits_used = credits_used + $1 WHERE id = $2`
		if _, err := tx.Exec(ctx, updateQuery, rec.Credits, rec.PeriodID); err != nil {
			return fmt.Errorf("failed to increment period total: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit usage record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, identity string, from, to time.Time) ([]*Record, error) {
	query := `
		SELECT id, identity, period_id, feature, credits, tokens_in, tokens_out, model, cached_hit, created_at
		FROM usage_records
		WHERE identity = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, identity, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID, &r.Identity, &r.PeriodID, &r.Feature, &r.Credits,
			&r.TokensIn, &r.TokensOut, &r.Model, &r.CachedHit, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}
