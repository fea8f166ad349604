package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// CreateComment stores an already validated comment as visible.
func CreateComment(ctx context.Context, db *sql.DB, productID, userID int64, content string) (*models.Comment, error) {
	comment := &models.Comment{}

	query := `
		INSERT INTO comments (product_id, user_id, content, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		RETURNING id, product_id, user_id, content, is_active, created_at`

	err := db.QueryRowContext(ctx, query, productID, userID, content).Scan(
		&comment.ID,
		&comment.ProductID,
		&comment.UserID,
		&comment.Content,
		&comment.IsActive,
		&comment.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}

	return comment, nil
}

// ActiveComments lists the visible comments of a product, oldest first.
func ActiveComments(ctx context.Context, db *sql.DB, productID int64) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.product_id, c.user_id, u.username, c.content, c.is_active, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.product_id = $1 AND c.is_active
		ORDER BY c.created_at, c.id`

	rows, err := db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		err := rows.Scan(
			&c.ID,
			&c.ProductID,
			&c.UserID,
			&c.Username,
			&c.Content,
			&c.IsActive,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return comments, nil
}

func SetCommentActive(ctx context.Context, db *sql.DB, commentID int64, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE comments SET is_active = $1 WHERE id = $2`, active, commentID)
	if err != nil {
		return fmt.Errorf("set comment active: %w", err)
	}
	return expectOneRow(result, sql.ErrNoRows)
}
