package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/cooloff/internal/models"
	"github.com/Kerhoff/cooloff/internal/repository"
)

const userColumns = `id, telegram_id, telegram_username, first_name, last_name, billing_customer_id, is_active, created_at, updated_at`

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_id, telegram_username, first_name, last_name, billing_customer_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true

	err := r.db.QueryRowContext(ctx, query,
		user.TelegramID,
		user.TelegramUsername,
		user.FirstName,
		user.LastName,
		user.BillingCustomerID,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return r.getOne(ctx, "telegram ID", query, telegramID)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, "ID", query, id)
}

func (r *userRepository) GetByBillingCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE billing_customer_id = $1`
	return r.getOne(ctx, "billing customer ID", query, customerID)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		UPDATE users
		SET telegram_username = $2, first_name = $3, last_name = $4, billing_customer_id = $5, is_active = $6, updated_at = $7
		WHERE id = $1
		RETURNING updated_at`

	user.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.TelegramUsername,
		user.FirstName,
		user.LastName,
		user.BillingCustomerID,
		user.IsActive,
		user.UpdatedAt,
	).Scan(&user.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

func (r *userRepository) getOne(ctx context.Context, by, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var customerID sql.NullString

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.TelegramID,
		&user.TelegramUsername,
		&user.FirstName,
		&user.LastName,
		&customerID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}

	if customerID.Valid {
		user.BillingCustomerID = &customerID.String
	}

	return user, nil
}
