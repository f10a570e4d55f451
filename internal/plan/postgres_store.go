package plan

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/promptdeck/gateway/internal/pricing"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LoadLimits reads the plan_limits table. An empty table yields the
// compiled-in defaults so a fresh deployment still boots with sane plans.
func (s *PostgresStore) LoadLimits(ctx context.Context) (map[Tier]Limits, error) {
	query := `
		SELECT tier, monthly_credit_cap, requests_per_window, limiter_tier, allowed_model_tiers, features
		FROM plan_limits
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan limits: %w", err)
	}
	defer rows.Close()

	limits := make(map[Tier]Limits)
	for rows.Next() {
		var (
			l            Limits
			tier         string
			allowedTiers []string
			featuresJSON []byte
		)
		if err := rows.Scan(&tier, &l.MonthlyCreditCap, &l.RequestsPerWindow, &l.LimiterTier, &allowedTiers, &featuresJSON); err != nil {
			return nil, fmt.Errorf("failed to scan plan limits: %w", err)
		}
		l.Tier = Tier(tier)
		for _, t := range allowedTiers {
			l.AllowedModelTiers = append(l.AllowedModelTiers, pricing.CapabilityTier(t))
		}
		if len(featuresJSON) > 0 {
			if err := json.Unmarshal(featuresJSON, &l.Features); err != nil {
				return nil, fmt.Errorf("failed to decode features for tier %s: %w", tier, err)
			}
		}
		limits[l.Tier] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan limits: %w", err)
	}

	if len(limits) == 0 {
		return DefaultLimits(), nil
	}
	return limits, nil
}
