package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const blogColumns = `id, title, content, is_published, image, created_at, updated_at`

func scanBlog(row interface{ Scan(...any) error }, blog *models.Blog) error {
	var image sql.NullString
	err := row.Scan(
		&blog.ID,
		&blog.Title,
		&blog.Content,
		&blog.IsPublished,
		&image,
		&blog.CreatedAt,
		&blog.UpdatedAt,
	)
	if err != nil {
		return err
	}
	blog.Image = image.String
	return nil
}

type BlogInput struct {
	Title       string
	Content     string
	IsPublished bool
	// Image is left unchanged on update when empty.
	Image string
}

func CreateBlog(ctx context.Context, db *sql.DB, in BlogInput) (*models.Blog, error) {
	blog := &models.Blog{}

	query := `
		INSERT INTO blogs (title, content, is_published, image, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW(), NOW())
		RETURNING ` + blogColumns

	if err := scanBlog(db.QueryRowContext(ctx, query, in.Title, in.Content, in.IsPublished, in.Image), blog); err != nil {
		return nil, fmt.Errorf("create blog: %w", err)
	}

	return blog, nil
}

func GetBlog(ctx context.Context, db *sql.DB, id int64) (*models.Blog, error) {
	blog := &models.Blog{}

	query := `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1`

	if err := scanBlog(db.QueryRowContext(ctx, query, id), blog); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBlogNotFound
		}
		return nil, fmt.Errorf("get blog: %w", err)
	}

	return blog, nil
}

func UpdateBlog(ctx context.Context, db *sql.DB, id int64, in BlogInput) (*models.Blog, error) {
	blog := &models.Blog{}

	query := `
		UPDATE blogs
		SET title = $1,
		    content = $2,
		    is_published = $3,
		    image = COALESCE(NULLIF($4, ''), image),
		    updated_at = NOW()
		WHERE id = $5
		RETURNING ` + blogColumns

	if err := scanBlog(db.QueryRowContext(ctx, query, in.Title, in.Content, in.IsPublished, in.Image, id), blog); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBlogNotFound
		}
		return nil, fmt.Errorf("update blog: %w", err)
	}

	return blog, nil
}

func DeleteBlog(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	return expectOneRow(result, database.ErrBlogNotFound)
}

// ListBlogs returns every post, newest first.
func ListBlogs(ctx context.Context, db *sql.DB) ([]models.Blog, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+blogColumns+` FROM blogs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	var blogs []models.Blog
	for rows.Next() {
		var blog models.Blog
		if err := scanBlog(rows, &blog); err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, blog)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return blogs, nil
}
