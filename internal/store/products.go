package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const (
	CatalogPageSize = 12
	relatedLimit    = 4
)

const productColumns = `id, name, brand, image, description, price, del_price, stock, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...any) error }, product *models.Product) error {
	var image sql.NullString
	var delPrice decimal.NullDecimal
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Brand,
		&image,
		&product.Description,
		&product.Price,
		&delPrice,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return err
	}
	product.Image = image.String
	if delPrice.Valid {
		product.DelPrice = &delPrice.Decimal
	}
	return nil
}

type NewProduct struct {
	Name        string
	Brand       models.Brand
	Image       string
	Description string
	Price       decimal.Decimal
	DelPrice    *decimal.Decimal
	Stock       int
}

func CreateProduct(ctx context.Context, db *sql.DB, p NewProduct) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (name, brand, image, description, price, del_price, stock, created_at, updated_at, version)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	var delPrice decimal.NullDecimal
	if p.DelPrice != nil {
		delPrice = decimal.NullDecimal{Decimal: *p.DelPrice, Valid: true}
	}

	err := scanProduct(db.QueryRowContext(ctx, query,
		p.Name, p.Brand, p.Image, p.Description, p.Price, delPrice, p.Stock), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(db.QueryRowContext(ctx, query, id), product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// UpdatePriceOptimistic changes the price only if the row still carries
// version.
func UpdatePriceOptimistic(ctx context.Context, db *sql.DB, productID int64, price decimal.Decimal, version int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET price = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3`,
		price, productID, version)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrOptimisticLockFailed
	}

	return nil
}

// ProductFilter narrows the catalog. Zero values disable a filter.
type ProductFilter struct {
	Query    string
	Brand    models.Brand
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (f ProductFilter) where() (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + likeEscaper.Replace(q) + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", p, p))
	}
	if f.Brand != "" {
		conds = append(conds, "brand = "+arg(f.Brand))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*f.MaxPrice))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListProducts returns one page of the filtered catalog in id order. A page
// outside the result range is clamped to the first or last page.
func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter, page, pageSize int) (*OffsetPage, error) {
	where, args := filter.where()

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	totalPages := TotalPages(total, pageSize)
	page = ClampPage(page, totalPages)

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY id LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)

	rows, err := db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// RelatedProducts returns up to four other products of the same brand.
func RelatedProducts(ctx context.Context, db *sql.DB, product *models.Product) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE brand = $1 AND id <> $2
		ORDER BY id
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, product.Brand, product.ID, relatedLimit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	defer rows.Close()

	var related []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		related = append(related, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return related, nil
}
