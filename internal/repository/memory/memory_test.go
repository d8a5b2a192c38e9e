package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemsFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		item := models.NewWishItem(1, "item", int64(i*1000), base.Add(time.Duration(i)*time.Hour), 7)
		_, err := store.Items().Create(ctx, item)
		require.NoError(t, err)
	}
	other := models.NewWishItem(2, "other", 1, base, 7)
	_, err := store.Items().Create(ctx, other)
	require.NoError(t, err)

	all, err := store.Items().GetByUserID(ctx, 1, repository.WishItemFilters{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(3000), all[0].Price, "newest first")

	page, err := store.Items().GetByUserID(ctx, 1, repository.WishItemFilters{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2000), page[0].Price)

	all[0].Status = models.WishItemStatusAbandoned
	_, err = store.Items().Update(ctx, all[0])
	require.NoError(t, err)

	waiting := models.WishItemStatusWaiting
	onlyWaiting, err := store.Items().GetByUserID(ctx, 1, repository.WishItemFilters{Status: &waiting})
	require.NoError(t, err)
	assert.Len(t, onlyWaiting, 3)

	count, err := store.Items().CountWaiting(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRemindersRescheduleAndCancel(t *testing.T) {
	ctx := context.Background()
	store := New()
	item := models.NewWishItem(1, "item", 1000, time.Now(), 7)
	at := time.Date(2025, time.October, 9, 10, 0, 0, 0, time.UTC)

	first, err := store.Reminders().Schedule(ctx, &models.Reminder{ItemID: item.ID, UserID: 1, ChatID: 10, RemindAt: at})
	require.NoError(t, err)

	second, err := store.Reminders().Schedule(ctx, &models.Reminder{ItemID: item.ID, UserID: 1, ChatID: 10, RemindAt: at.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	due, err := store.Reminders().GetDue(ctx, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.Reminders().GetDue(ctx, at.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, store.Reminders().CancelByItemID(ctx, item.ID))
	due, err = store.Reminders().GetDue(ctx, at.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	item := models.NewWishItem(1, "item", 1000, time.Now(), 7)
	_, err := store.Items().Create(ctx, item)
	require.NoError(t, err)

	got, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "item", again.Name)
}

func TestCreateWithinLimit(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := store.Items().CreateWithinLimit(ctx, models.NewWishItem(1, "item", 1000, base, 7), 2)
		require.NoError(t, err)
	}

	_, err := store.Items().CreateWithinLimit(ctx, models.NewWishItem(1, "third", 1000, base, 7), 2)
	assert.ErrorIs(t, err, repository.ErrLimitReached)

	_, err = store.Items().CreateWithinLimit(ctx, models.NewWishItem(2, "other user", 1000, base, 7), 2)
	assert.NoError(t, err)
}

func TestUpdateWaitingRejectsStaleWrites(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	item, err := store.Items().Create(ctx, models.NewWishItem(1, "Camera", 700000, base, 7))
	require.NoError(t, err)

	first, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	second, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)

	require.NoError(t, first.MarkAbandoned(base.Add(time.Hour)))
	_, err = store.Items().UpdateWaiting(ctx, first, 0)
	require.NoError(t, err)

	require.NoError(t, second.Extend())
	_, err = store.Items().UpdateWaiting(ctx, second, 0)
	assert.ErrorIs(t, err, repository.ErrStaleItem)

	stored, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WishItemStatusAbandoned, stored.Status)
	assert.Equal(t, 0, stored.ExtensionCount)
}
