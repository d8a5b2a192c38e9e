package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "tier", "is_active", "expires_at", "purchased_at", "checked_at"})
}

func TestSubscriptionSave(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSubscriptionRepository(db)
	now := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 1, 0)

	status := &models.SubscriptionStatus{
		UserID:      4,
		Tier:        models.SubscriptionTierPremium,
		IsActive:    true,
		ExpiresAt:   &expires,
		PurchasedAt: &now,
		CheckedAt:   now,
	}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO UPDATE")).
		WithArgs(int64(4), string(models.SubscriptionTierPremium), true, &expires, &now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), status))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionGetByUserIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSubscriptionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE user_id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(subscriptionRows())

	status, err := repo.GetByUserID(context.Background(), 9)

	require.NoError(t, err)
	assert.Nil(t, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionGetExpiredPremium(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSubscriptionRepository(db)
	now := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tier = $1 AND is_active = true")).
		WithArgs(string(models.SubscriptionTierPremium), now).
		WillReturnRows(subscriptionRows().
			AddRow(int64(4), string(models.SubscriptionTierPremium), true, expired, nil, now.Add(-24*time.Hour)))

	statuses, err := repo.GetExpiredPremium(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, int64(4), statuses[0].UserID)
	assert.Equal(t, models.SubscriptionTierPremium, statuses[0].Tier)
	require.NotNil(t, statuses[0].ExpiresAt)
	assert.True(t, statuses[0].ExpiresAt.Equal(expired))
	assert.Nil(t, statuses[0].PurchasedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
