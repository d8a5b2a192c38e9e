package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderSchedule(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReminderRepository(db)
	itemID := uuid.New()
	remindAt := time.Date(2025, time.October, 9, 10, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (item_id) DO UPDATE")).
		WithArgs(itemID, int64(2), int64(555), remindAt, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), now, now))

	reminder, err := repo.Schedule(context.Background(), &models.Reminder{
		ItemID:   itemID,
		UserID:   2,
		ChatID:   555,
		RemindAt: remindAt,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), reminder.ID)
	assert.True(t, reminder.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderGetDue(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReminderRepository(db)
	now := time.Date(2025, time.October, 9, 10, 0, 0, 0, time.UTC)
	itemID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = true AND remind_at <= $1")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "item_id", "user_id", "chat_id", "remind_at", "active", "last_sent_at", "created_at", "updated_at",
		}).AddRow(int64(1), itemID.String(), int64(2), int64(555), now.Add(-time.Minute), true, nil, now, now))

	reminders, err := repo.GetDue(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, itemID, reminders[0].ItemID)
	assert.True(t, reminders[0].IsDue(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderMarkSentMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewReminderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reminders")).
		WithArgs(int64(99), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSent(context.Background(), 99, time.Now())

	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
