package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
)

type statsRepository struct {
	db *sql.DB
}

// NewStatsRepository creates a new user stats repository
func NewStatsRepository(db *sql.DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Save(ctx context.Context, stats *models.UserStats) error {
	query := `
		INSERT INTO user_stats (user_id, total_saved_amount, monthly_saved_amount, total_purchased_amount,
			monthly_purchased_amount, prevention_rate, waiting_count, total_waiting_amount, ready_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			total_saved_amount = EXCLUDED.total_saved_amount,
			monthly_saved_amount = EXCLUDED.monthly_saved_amount,
			total_purchased_amount = EXCLUDED.total_purchased_amount,
			monthly_purchased_amount = EXCLUDED.monthly_purchased_amount,
			prevention_rate = EXCLUDED.prevention_rate,
			waiting_count = EXCLUDED.waiting_count,
			total_waiting_amount = EXCLUDED.total_waiting_amount,
			ready_count = EXCLUDED.ready_count,
			last_updated = EXCLUDED.last_updated`

	_, err := r.db.ExecContext(ctx, query,
		stats.UserID,
		stats.TotalSavedAmount,
		stats.MonthlySavedAmount,
		stats.TotalPurchasedAmount,
		stats.MonthlyPurchasedAmount,
		stats.PreventionRate,
		stats.WaitingCount,
		stats.TotalWaitingAmount,
		stats.ReadyCount,
		stats.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save user stats: %w", err)
	}

	return nil
}

func (r *statsRepository) GetByUserID(ctx context.Context, userID int64) (*models.UserStats, error) {
	query := `
		SELECT user_id, total_saved_amount, monthly_saved_amount, total_purchased_amount,
			monthly_purchased_amount, prevention_rate, waiting_count, total_waiting_amount, ready_count, last_updated
		FROM user_stats
		WHERE user_id = $1`

	stats := &models.UserStats{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.TotalSavedAmount,
		&stats.MonthlySavedAmount,
		&stats.TotalPurchasedAmount,
		&stats.MonthlyPurchasedAmount,
		&stats.PreventionRate,
		&stats.WaitingCount,
		&stats.TotalWaitingAmount,
		&stats.ReadyCount,
		&stats.LastUpdated,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return stats, nil
}
