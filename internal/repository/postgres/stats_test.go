package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsSave(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatsRepository(db)
	now := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)

	stats := &models.UserStats{
		UserID:             2,
		TotalSavedAmount:   50000,
		MonthlySavedAmount: 20000,
		PreventionRate:     50,
		WaitingCount:       1,
		TotalWaitingAmount: 12000,
		LastUpdated:        now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_stats")).
		WithArgs(int64(2), int64(50000), int64(20000), int64(0), int64(0), float64(50), 1, int64(12000), 0, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), stats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsSaveError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatsRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_stats")).
		WillReturnError(errors.New("connection reset"))

	err := repo.Save(context.Background(), &models.UserStats{UserID: 2})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save user stats")
}

func TestStatsGetByUserID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStatsRepository(db)
	now := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_stats")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "total_saved_amount", "monthly_saved_amount", "total_purchased_amount",
			"monthly_purchased_amount", "prevention_rate", "waiting_count", "total_waiting_amount", "ready_count", "last_updated",
		}).AddRow(int64(2), int64(50000), int64(20000), int64(30000), int64(0), 62.5, 3, int64(45000), 1, now))

	stats, err := repo.GetByUserID(context.Background(), 2)

	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(30000), stats.TotalPurchasedAmount)
	assert.InDelta(t, 62.5, stats.PreventionRate, 0.001)
	assert.Equal(t, 3, stats.WaitingCount)
	assert.Equal(t, 1, stats.ReadyCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
