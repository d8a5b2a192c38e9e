package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserGetByBillingCustomerID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE billing_customer_id = $1")).
		WithArgs("cus_123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "telegram_id", "telegram_username", "first_name", "last_name",
			"billing_customer_id", "is_active", "created_at", "updated_at",
		}).AddRow(int64(3), int64(777), "minji", "Minji", "", "cus_123", true, now, now))

	user, err := repo.GetByBillingCustomerID(context.Background(), "cus_123")

	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, user.BillingCustomerID)
	assert.Equal(t, "cus_123", *user.BillingCustomerID)
	assert.Equal(t, "@minji", user.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByTelegramIDWithoutCustomer(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE telegram_id = $1")).
		WithArgs(int64(777)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "telegram_id", "telegram_username", "first_name", "last_name",
			"billing_customer_id", "is_active", "created_at", "updated_at",
		}).AddRow(int64(3), int64(777), "", "Minji", "Kim", nil, true, now, now))

	user, err := repo.GetByTelegramID(context.Background(), 777)

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Nil(t, user.BillingCustomerID)
	assert.Equal(t, "Minji Kim", user.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}
