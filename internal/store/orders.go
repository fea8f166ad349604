package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, date_ordered, complete, transaction_id, version`

func scanOrder(row interface{ Scan(...any) error }, order *models.Order) error {
	var userID sql.NullInt64
	var txID sql.NullString
	err := row.Scan(
		&order.ID,
		&userID,
		&order.DateOrdered,
		&order.Complete,
		&txID,
		&order.Version,
	)
	if err != nil {
		return err
	}
	if userID.Valid {
		id := userID.Int64
		order.UserID = &id
	}
	order.TransactionID = txID.String
	return nil
}

// OpenOrder returns the user's open order, inserting it if there is none.
// The partial unique index on (user_id) WHERE NOT complete makes this a
// single atomic upsert; the no-op update lets RETURNING yield the existing row.
func OpenOrder(ctx context.Context, db database.Querier, userID int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		INSERT INTO orders (user_id, date_ordered, complete, version)
		VALUES ($1, NOW(), FALSE, 1)
		ON CONFLICT (user_id) WHERE NOT complete
		DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + orderColumns

	if err := scanOrder(db.QueryRowContext(ctx, query, userID), order); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("open order: %w", err)
	}

	return order, nil
}

func GetOrder(ctx context.Context, db database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := scanOrder(db.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := ListOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// CountOpenOrders reports how many incomplete orders a user has. Anything
// above one means the uniqueness guarantee was bypassed.
func CountOpenOrders(ctx context.Context, db database.Querier, userID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND NOT complete`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open orders: %w", err)
	}
	return n, nil
}

// CompleteOrder closes an open order with a transaction id. The write is
// conditional on version so a concurrent checkout of the same order fails
// with ErrOptimisticLockFailed.
func CompleteOrder(ctx context.Context, db database.Querier, orderID int64, version int, transactionID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET complete = TRUE, transaction_id = $1, version = version + 1
		 WHERE id = $2 AND version = $3 AND NOT complete`,
		transactionID, orderID, version)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
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

// ListOrderItems returns the lines of an order with their products, oldest
// line first.
func ListOrderItems(ctx context.Context, db database.Querier, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.date_added,
		       p.id, p.name, p.brand, p.image, p.description, p.price, p.del_price, p.stock,
		       p.created_at, p.updated_at, p.version
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.date_added, oi.id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		product := &models.Product{}
		var image sql.NullString
		var delPrice decimal.NullDecimal
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.DateAdded,
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
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		product.Image = image.String
		if delPrice.Valid {
			product.DelPrice = &delPrice.Decimal
		}
		item.Product = product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// OrderTotals aggregates the live rows of an order at current product prices.
func OrderTotals(ctx context.Context, db database.Querier, orderID int64) (models.Totals, error) {
	var totals models.Totals
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(p.price * oi.quantity), 0), COALESCE(SUM(oi.quantity), 0)
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1`,
		orderID).Scan(&totals.Price, &totals.Items)
	if err != nil {
		return models.Totals{}, fmt.Errorf("order totals: %w", err)
	}
	return totals, nil
}

// AddItemQuantity inserts the (order, product) line with quantity delta or,
// if it exists, adds delta to it. delta must be positive.
func AddItemQuantity(ctx context.Context, tx *sql.Tx, orderID, productID int64, delta int) (*models.OrderItem, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("add item quantity: delta must be positive, got %d", delta)
	}

	item := &models.OrderItem{}
	err := tx.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, date_added)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT ON CONSTRAINT order_items_order_product_key
		 DO UPDATE SET quantity = order_items.quantity + EXCLUDED.quantity
		 RETURNING id, order_id, product_id, quantity, date_added`,
		orderID, productID, delta).Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.DateAdded,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("upsert order item: %w", err)
	}

	return item, nil
}

// SubtractItemQuantity takes delta off the (order, product) line, deleting the
// row instead when the result would not be positive. The line is locked
// before the decision so concurrent decrements serialize on it. It returns
// the remaining quantity, zero when the row is gone or never existed.
func SubtractItemQuantity(ctx context.Context, tx *sql.Tx, orderID, productID int64, delta int) (int, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("subtract item quantity: delta must be positive, got %d", delta)
	}

	var itemID int64
	var quantity int
	err := tx.QueryRowContext(ctx,
		`SELECT id, quantity FROM order_items
		 WHERE order_id = $1 AND product_id = $2
		 FOR UPDATE`,
		orderID, productID).Scan(&itemID, &quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("lock order item: %w", err)
	}

	if quantity <= delta {
		if err := DeleteItem(ctx, tx, itemID); err != nil {
			return 0, err
		}
		return 0, nil
	}

	quantity -= delta
	if err := SetItemQuantity(ctx, tx, itemID, quantity); err != nil {
		return 0, err
	}
	return quantity, nil
}

// LockCartItem loads an item only if it belongs to the user's open order and
// locks it for the rest of tx. Items of other users and of completed orders
// are reported as ErrOrderItemNotFound.
func LockCartItem(ctx context.Context, tx *sql.Tx, userID, itemID int64) (*models.OrderItem, error) {
	item := &models.OrderItem{}
	err := tx.QueryRowContext(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.date_added
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE oi.id = $1 AND o.user_id = $2 AND NOT o.complete
		 FOR UPDATE OF oi`,
		itemID, userID).Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.DateAdded,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("lock cart item: %w", err)
	}
	return item, nil
}

func SetItemQuantity(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE order_items SET quantity = $1 WHERE id = $2`,
		quantity, itemID)
	if err != nil {
		return fmt.Errorf("set item quantity: %w", err)
	}
	return expectOneRow(result, database.ErrOrderItemNotFound)
}

func DeleteItem(ctx context.Context, tx *sql.Tx, itemID int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	return expectOneRow(result, database.ErrOrderItemNotFound)
}

// DeleteCartItem removes an item of the user's open order in one statement.
func DeleteCartItem(ctx context.Context, db database.Querier, userID, itemID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM order_items oi
		 USING orders o
		 WHERE oi.id = $1 AND oi.order_id = o.id AND o.user_id = $2 AND NOT o.complete`,
		itemID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return expectOneRow(result, database.ErrOrderItemNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
