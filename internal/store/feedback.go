package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/models"
)

func CreateFeedback(ctx context.Context, db *sql.DB, userID int64, subject, message string) (*models.Feedback, error) {
	fb := &models.Feedback{}

	query := `
		INSERT INTO feedback (user_id, subject, message, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, user_id, subject, message, created_at`

	err := db.QueryRowContext(ctx, query, userID, subject, message).Scan(
		&fb.ID,
		&fb.UserID,
		&fb.Subject,
		&fb.Message,
		&fb.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}

	return fb, nil
}

func ListFeedbackByUser(ctx context.Context, db *sql.DB, userID int64) ([]models.Feedback, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, subject, message, created_at
		 FROM feedback
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var list []models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Subject, &fb.Message, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		list = append(list, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return list, nil
}
