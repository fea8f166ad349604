package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const defaultUserAge = 18

const userColumns = `id, username, email, password_hash, name, age, avatar, created_at, updated_at, version`

func scanUser(row interface{ Scan(...any) error }, user *models.User) error {
	var age sql.NullInt32
	var avatar sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&age,
		&avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return err
	}
	if age.Valid {
		a := int(age.Int32)
		user.Age = &a
	}
	user.Avatar = avatar.String
	return nil
}

func CreateUser(ctx context.Context, db *sql.DB, username, email, passwordHash string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (username, email, password_hash, age, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING ` + userColumns

	err := scanUser(db.QueryRowContext(ctx, query, username, email, passwordHash, defaultUserAge), user)
	if err != nil {
		if database.IsUniqueViolation(err, "users_username_key") {
			return nil, database.ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := scanUser(db.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*models.User, error) {
	user := &models.User{}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	if err := scanUser(db.QueryRowContext(ctx, query, username), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return user, nil
}

func UsernameExists(ctx context.Context, db *sql.DB, username string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)",
		username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

type ProfileUpdate struct {
	Name  string
	Email string
	// Age and Avatar are left unchanged when nil.
	Age    *int
	Avatar *string
}

// UpdateProfile writes the profile fields using the version read by the
// caller; a concurrent edit makes it fail with ErrOptimisticLockFailed.
func UpdateProfile(ctx context.Context, db *sql.DB, userID int64, version int, upd ProfileUpdate) (*models.User, error) {
	user := &models.User{}

	query := `
		UPDATE users
		SET name = $1,
		    email = $2,
		    age = COALESCE($3, age),
		    avatar = COALESCE($4, avatar),
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING ` + userColumns

	var age sql.NullInt32
	if upd.Age != nil {
		age = sql.NullInt32{Int32: int32(*upd.Age), Valid: true}
	}
	var avatar sql.NullString
	if upd.Avatar != nil {
		avatar = sql.NullString{String: *upd.Avatar, Valid: true}
	}

	err := scanUser(db.QueryRowContext(ctx, query, upd.Name, upd.Email, age, avatar, userID, version), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOptimisticLockFailed
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}
