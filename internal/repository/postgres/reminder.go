package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
	"github.com/google/uuid"
)

const reminderColumns = `id, item_id, user_id, chat_id, remind_at, active, last_sent_at, created_at, updated_at`

type reminderRepository struct {
	db *sql.DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *sql.DB) repository.ReminderRepository {
	return &reminderRepository{db: db}
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	err := row.Scan(
		&reminder.ID,
		&reminder.ItemID,
		&reminder.UserID,
		&reminder.ChatID,
		&reminder.RemindAt,
		&reminder.Active,
		&reminder.LastSentAt,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reminder, nil
}

// Schedule creates the reminder for an item, or re-arms the existing one at
// the new time. Each item has at most one reminder.
func (r *reminderRepository) Schedule(ctx context.Context, reminder *models.Reminder) (*models.Reminder, error) {
	query := `
		INSERT INTO reminders (item_id, user_id, chat_id, remind_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $5)
		ON CONFLICT (item_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			remind_at = EXCLUDED.remind_at,
			active = true,
			last_sent_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	now := time.Now()
	reminder.Active = true
	reminder.LastSentAt = nil

	err := r.db.QueryRowContext(ctx, query,
		reminder.ItemID,
		reminder.UserID,
		reminder.ChatID,
		reminder.RemindAt,
		now,
	).Scan(&reminder.ID, &reminder.CreatedAt, &reminder.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to schedule reminder: %w", err)
	}

	return reminder, nil
}

func (r *reminderRepository) GetByItemID(ctx context.Context, itemID uuid.UUID) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE item_id = $1`

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	return reminder, nil
}

func (r *reminderRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + `
		FROM reminders
		WHERE active = true AND remind_at <= $1
		ORDER BY remind_at ASC`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	return reminders, rows.Err()
}

func (r *reminderRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `
		UPDATE reminders
		SET active = false, last_sent_at = $2, updated_at = $2
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("reminder with ID %d not found", id)
	}

	return nil
}

// CancelByItemID deactivates the item's reminder. A missing reminder is not an error.
func (r *reminderRepository) CancelByItemID(ctx context.Context, itemID uuid.UUID) error {
	query := `
		UPDATE reminders
		SET active = false, updated_at = $2
		WHERE item_id = $1 AND active = true`

	if _, err := r.db.ExecContext(ctx, query, itemID, time.Now()); err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}

	return nil
}
