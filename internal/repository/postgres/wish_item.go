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

const wishItemColumns = `id, user_id, name, price, purchase_url, memo, image_data, created_at, waiting_until, status, extension_count, decided_at, updated_at`

type wishItemRepository struct {
	db *sql.DB
}

// NewWishItemRepository creates a new wish item repository
func NewWishItemRepository(db *sql.DB) repository.WishItemRepository {
	return &wishItemRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWishItem(row rowScanner) (*models.WishItem, error) {
	item := &models.WishItem{}
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Name,
		&item.Price,
		&item.PurchaseURL,
		&item.Memo,
		&item.ImageData,
		&item.CreatedAt,
		&item.WaitingUntil,
		&item.Status,
		&item.ExtensionCount,
		&item.DecidedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// queryRower is satisfied by both *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *wishItemRepository) Create(ctx context.Context, item *models.WishItem) (*models.WishItem, error) {
	return insertWishItem(ctx, r.db, item)
}

// CreateWithinLimit locks the owner's user row so concurrent registrations
// for the same user see each other's inserts.
func (r *wishItemRepository) CreateWithinLimit(ctx context.Context, item *models.WishItem, limit int) (*models.WishItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, item.UserID).Scan(&userID); err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", item.UserID, err)
	}

	var waiting int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wish_items WHERE user_id = $1 AND status = $2`,
		item.UserID, models.WishItemStatusWaiting,
	).Scan(&waiting)
	if err != nil {
		return nil, fmt.Errorf("failed to count waiting wish items: %w", err)
	}
	if waiting >= limit {
		return nil, repository.ErrLimitReached
	}

	if _, err := insertWishItem(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit wish item: %w", err)
	}

	return item, nil
}

func insertWishItem(ctx context.Context, q queryRower, item *models.WishItem) (*models.WishItem, error) {
	query := `
		INSERT INTO wish_items (id, user_id, name, price, purchase_url, memo, image_data, created_at, waiting_until, status, extension_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING updated_at`

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.UpdatedAt = time.Now()

	err := q.QueryRowContext(ctx, query,
		item.ID,
		item.UserID,
		item.Name,
		item.Price,
		item.PurchaseURL,
		item.Memo,
		item.ImageData,
		item.CreatedAt,
		item.WaitingUntil,
		item.Status,
		item.ExtensionCount,
		item.UpdatedAt,
	).Scan(&item.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create wish item: %w", err)
	}

	return item, nil
}

func (r *wishItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WishItem, error) {
	query := `SELECT ` + wishItemColumns + ` FROM wish_items WHERE id = $1`

	item, err := scanWishItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wish item: %w", err)
	}

	return item, nil
}

func (r *wishItemRepository) GetByUserID(ctx context.Context, userID int64, filters repository.WishItemFilters) ([]*models.WishItem, error) {
	query := `SELECT ` + wishItemColumns + ` FROM wish_items WHERE user_id = $1`
	args := []interface{}{userID}
	argIdx := 2

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filters.Status)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wish items: %w", err)
	}
	defer rows.Close()

	var items []*models.WishItem
	for rows.Next() {
		item, err := scanWishItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wish item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *wishItemRepository) CountWaiting(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM wish_items WHERE user_id = $1 AND status = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, models.WishItemStatusWaiting).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count waiting wish items: %w", err)
	}

	return count, nil
}

func (r *wishItemRepository) Update(ctx context.Context, item *models.WishItem) (*models.WishItem, error) {
	query := `
		UPDATE wish_items
		SET name = $2, price = $3, purchase_url = $4, memo = $5, image_data = $6,
			waiting_until = $7, status = $8, extension_count = $9, decided_at = $10, updated_at = $11
		WHERE id = $1
		RETURNING updated_at`

	item.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.ID,
		item.Name,
		item.Price,
		item.PurchaseURL,
		item.Memo,
		item.ImageData,
		item.WaitingUntil,
		item.Status,
		item.ExtensionCount,
		item.DecidedAt,
		item.UpdatedAt,
	).Scan(&item.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("wish item with ID %s not found", item.ID)
		}
		return nil, fmt.Errorf("failed to update wish item: %w", err)
	}

	return item, nil
}

func (r *wishItemRepository) UpdateWaiting(ctx context.Context, item *models.WishItem, extensionCount int) (*models.WishItem, error) {
	query := `
		UPDATE wish_items
		SET waiting_until = $2, status = $3, extension_count = $4, decided_at = $5, updated_at = $6
		WHERE id = $1 AND status = $7 AND extension_count = $8
		RETURNING updated_at`

	item.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.ID,
		item.WaitingUntil,
		item.Status,
		item.ExtensionCount,
		item.DecidedAt,
		item.UpdatedAt,
		models.WishItemStatusWaiting,
		extensionCount,
	).Scan(&item.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrStaleItem
		}
		return nil, fmt.Errorf("failed to update wish item: %w", err)
	}

	return item, nil
}

func (r *wishItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM wish_items WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete wish item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("wish item with ID %s not found", id)
	}

	return nil
}
