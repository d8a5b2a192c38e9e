package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
)

const subscriptionColumns = `user_id, tier, is_active, expires_at, purchased_at, checked_at`

type subscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository creates a new subscription status repository
func NewSubscriptionRepository(db *sql.DB) repository.SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Save(ctx context.Context, status *models.SubscriptionStatus) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, is_active, expires_at, purchased_at, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			is_active = EXCLUDED.is_active,
			expires_at = EXCLUDED.expires_at,
			purchased_at = EXCLUDED.purchased_at,
			checked_at = EXCLUDED.checked_at`

	_, err := r.db.ExecContext(ctx, query,
		status.UserID,
		status.Tier,
		status.IsActive,
		status.ExpiresAt,
		status.PurchasedAt,
		status.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription status: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*models.SubscriptionStatus, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	status := &models.SubscriptionStatus{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&status.UserID,
		&status.Tier,
		&status.IsActive,
		&status.ExpiresAt,
		&status.PurchasedAt,
		&status.CheckedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription status: %w", err)
	}

	return status, nil
}

func (r *subscriptionRepository) GetExpiredPremium(ctx context.Context, now time.Time) ([]*models.SubscriptionStatus, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tier = $1 AND is_active = true AND expires_at IS NOT NULL AND expires_at < $2
		ORDER BY expires_at ASC`

	rows, err := r.db.QueryContext(ctx, query, models.SubscriptionTierPremium, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired subscriptions: %w", err)
	}
	defer rows.Close()

	var statuses []*models.SubscriptionStatus
	for rows.Next() {
		status := &models.SubscriptionStatus{}
		if err := rows.Scan(
			&status.UserID,
			&status.Tier,
			&status.IsActive,
			&status.ExpiresAt,
			&status.PurchasedAt,
			&status.CheckedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription status: %w", err)
		}
		statuses = append(statuses, status)
	}

	return statuses, rows.Err()
}
