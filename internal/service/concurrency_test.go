package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
	"github.com/Kerhoff/cooloff/internal/repository/memory"
	"github.com/Kerhoff/cooloff/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// barrier holds the first n arrivals until all of them are there. Later
// arrivals pass straight through.
type barrier struct {
	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{pending: n, release: make(chan struct{})}
}

func (b *barrier) arrive() {
	b.mu.Lock()
	if b.pending == 0 {
		b.mu.Unlock()
		return
	}
	b.pending--
	if b.pending == 0 {
		close(b.release)
	}
	b.mu.Unlock()
	<-b.release
}

// racingItems makes concurrent requests read the same item state before
// either of them writes
type racingItems struct {
	repository.WishItemRepository
	reads  *barrier
	counts *barrier
}

func (r racingItems) GetByID(ctx context.Context, id uuid.UUID) (*models.WishItem, error) {
	item, err := r.WishItemRepository.GetByID(ctx, id)
	if r.reads != nil {
		r.reads.arrive()
	}
	return item, err
}

func (r racingItems) CountWaiting(ctx context.Context, userID int64) (int, error) {
	n, err := r.WishItemRepository.CountWaiting(ctx, userID)
	if r.counts != nil {
		r.counts.arrive()
	}
	return n, err
}

// flakyUsers fails user lookups by ID once fail is set
type flakyUsers struct {
	repository.UserRepository
	fail *bool
}

func (u flakyUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if *u.fail {
		return nil, errors.New("connection reset")
	}
	return u.UserRepository.GetByID(ctx, id)
}

type raceFixture struct {
	svc   *Service
	store *memory.Store
	clock *fakeClock
	user  *models.User
}

func newRaceFixture(t *testing.T, items repository.WishItemRepository, users repository.UserRepository, store *memory.Store) *raceFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, time.October, 10, 12, 0, 0, 0, time.UTC)}
	svc := New(logger.Discard(), Repositories{
		Users:         users,
		Items:         items,
		Stats:         store.Stats(),
		Subscriptions: store.Subscriptions(),
		Reminders:     store.Reminders(),
	}, Options{Now: clock.Now})

	user, err := svc.RegisterUser(context.Background(), 5550002, "bob", "Bob", "")
	require.NoError(t, err)
	return &raceFixture{svc: svc, store: store, clock: clock, user: user}
}

type outcome struct {
	item *models.WishItem
	err  error
}

func runTogether(fns ...func() (*models.WishItem, error)) []outcome {
	out := make([]outcome, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn func() (*models.WishItem, error)) {
			defer wg.Done()
			item, err := fn()
			out[i] = outcome{item: item, err: err}
		}(i, fn)
	}
	wg.Wait()
	return out
}

func TestConcurrentDecisionsOnlyOneWins(t *testing.T) {
	store := memory.New()
	items := racingItems{WishItemRepository: store.Items()}
	f := newRaceFixture(t, items, store.Users(), store)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.user.ID, AddItemInput{Name: "Console", Price: 520000})
	require.NoError(t, err)
	f.clock.Advance(8 * 24 * time.Hour)

	items.reads = newBarrier(2)
	f.svc.items = items

	results := runTogether(
		func() (*models.WishItem, error) { return f.svc.PurchaseItem(ctx, f.user.ID, item.ID) },
		func() (*models.WishItem, error) { return f.svc.AbandonItem(ctx, f.user.ID, item.ID) },
	)

	var winner *models.WishItem
	failures := 0
	for _, r := range results {
		if r.err != nil {
			assert.ErrorIs(t, r.err, models.ErrNotWaiting)
			failures++
			continue
		}
		winner = r.item
	}
	require.Equal(t, 1, failures)
	require.NotNil(t, winner)

	stored, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, winner.Status, stored.Status)
}

func TestConcurrentExtensionsAreNotLost(t *testing.T) {
	store := memory.New()
	items := racingItems{WishItemRepository: store.Items()}
	f := newRaceFixture(t, items, store.Users(), store)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.user.ID, AddItemInput{Name: "Tent", Price: 210000})
	require.NoError(t, err)

	items.reads = newBarrier(2)
	f.svc.items = items

	results := runTogether(
		func() (*models.WishItem, error) { return f.svc.ExtendItem(ctx, f.user.ID, item.ID) },
		func() (*models.WishItem, error) { return f.svc.ExtendItem(ctx, f.user.ID, item.ID) },
	)

	succeeded := 0
	for _, r := range results {
		if r.err != nil {
			assert.ErrorIs(t, r.err, ErrItemChanged)
			continue
		}
		succeeded++
	}
	assert.Equal(t, 1, succeeded)

	stored, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ExtensionCount)
	assert.Equal(t, item.WaitingUntil.AddDate(0, 0, models.ExtensionDays), stored.WaitingUntil)
}

func TestConcurrentAddsRespectFreeTierCap(t *testing.T) {
	store := memory.New()
	items := racingItems{WishItemRepository: store.Items()}
	f := newRaceFixture(t, items, store.Users(), store)
	ctx := context.Background()

	for _, name := range []string{"Watch", "Lens"} {
		_, err := f.svc.AddItem(ctx, f.user.ID, AddItemInput{Name: name, Price: 1000})
		require.NoError(t, err)
	}

	items.counts = newBarrier(2)
	f.svc.items = items

	results := runTogether(
		func() (*models.WishItem, error) {
			return f.svc.AddItem(ctx, f.user.ID, AddItemInput{Name: "Speaker", Price: 1000})
		},
		func() (*models.WishItem, error) {
			return f.svc.AddItem(ctx, f.user.ID, AddItemInput{Name: "Lamp", Price: 1000})
		},
	)

	rejected := 0
	for _, r := range results {
		if r.err != nil {
			assert.ErrorIs(t, r.err, ErrFreeTierLimit)
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)

	waiting, err := store.Items().CountWaiting(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFreeItemLimit, waiting)
}

func TestExtendItemLeavesItemUntouchedWhenUserLookupFails(t *testing.T) {
	store := memory.New()
	fail := false
	f := newRaceFixture(t, store.Items(), flakyUsers{UserRepository: store.Users(), fail: &fail}, store)
	ctx := context.Background()

	item, err := f.svc.AddItem(ctx, f.user.ID, AddItemInput{Name: "Kayak", Price: 890000})
	require.NoError(t, err)

	fail = true
	_, err = f.svc.ExtendItem(ctx, f.user.ID, item.ID)
	require.Error(t, err)

	stored, err := store.Items().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ExtensionCount)
	assert.Equal(t, item.WaitingUntil, stored.WaitingUntil)
}
