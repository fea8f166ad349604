// Package cart keeps each user's open order and its line items consistent.
//
// A user has at most one open (incomplete) order at a time. It is opened
// lazily on the first cart interaction; line items are created on first add
// and deleted, never zeroed, once their quantity drops to zero.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

// Action is the client-side cart action sent by the product page.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Delta maps an action to a quantity change. Unknown actions map to zero.
func (a Action) Delta() int {
	switch a {
	case ActionAdd:
		return 1
	case ActionRemove:
		return -1
	}
	return 0
}

type Service struct {
	db   *sql.DB
	opts database.TxOptions
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, opts: database.DefaultTxOptions()}
}

// Open returns the user's open order, creating it if needed. Repeated calls
// return the same order until it is completed.
func (s *Service) Open(ctx context.Context, userID int64) (*models.Order, error) {
	return store.OpenOrder(ctx, s.db, userID)
}

// Load returns the open order with its items and their current products.
func (s *Service) Load(ctx context.Context, userID int64) (*models.Order, error) {
	order, err := s.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := store.ListOrderItems(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// AddItem changes the quantity of productID in the user's open order by
// delta. A positive delta creates the line if needed; a line whose quantity
// would drop to zero or below is deleted. A zero delta changes nothing. The
// returned totals reflect the cart after the change.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, delta int) (models.Totals, error) {
	var totals models.Totals

	err := database.WithRetry(ctx, s.db, s.opts, func(tx *sql.Tx) error {
		if _, err := store.GetProduct(ctx, tx, productID); err != nil {
			return err
		}

		order, err := store.OpenOrder(ctx, tx, userID)
		if err != nil {
			return err
		}

		switch {
		case delta > 0:
			if _, err := store.AddItemQuantity(ctx, tx, order.ID, productID, delta); err != nil {
				return err
			}
		case delta < 0:
			if _, err := store.SubtractItemQuantity(ctx, tx, order.ID, productID, -delta); err != nil {
				return err
			}
		}

		totals, err = store.OrderTotals(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return models.Totals{}, err
	}

	log.Debug().
		Int64("user_id", userID).
		Int64("product_id", productID).
		Int("delta", delta).
		Int("cart_items", totals.Items).
		Msg("cart updated")

	return totals, nil
}

// Apply performs a client-side action on productID. Unknown actions leave
// the cart untouched and only report its totals.
func (s *Service) Apply(ctx context.Context, userID, productID int64, action Action) (models.Totals, error) {
	return s.AddItem(ctx, userID, productID, action.Delta())
}

// ParseQuantity parses a submitted quantity. Zero and negative values are
// valid and mean "remove the line". Values outside the 32-bit range of the
// quantity column are rejected.
func ParseQuantity(raw string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	return int(n), nil
}

// SetQuantity overwrites the quantity of one of the user's open-order items.
// The ownership check runs first, so an item of another user or of a
// completed order is ErrOrderItemNotFound even when raw is invalid. An
// unparsable raw value returns ErrInvalidQuantity and changes nothing.
func (s *Service) SetQuantity(ctx context.Context, userID, itemID int64, raw string) error {
	return database.WithRetry(ctx, s.db, s.opts, func(tx *sql.Tx) error {
		item, err := store.LockCartItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}

		quantity, err := ParseQuantity(raw)
		if err != nil {
			return err
		}

		if quantity <= 0 {
			return store.DeleteItem(ctx, tx, item.ID)
		}
		return store.SetItemQuantity(ctx, tx, item.ID, quantity)
	})
}

// RemoveItem deletes one of the user's open-order items.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	return store.DeleteCartItem(ctx, s.db, userID, itemID)
}

// Totals recomputes the open order's totals from live rows.
func (s *Service) Totals(ctx context.Context, userID int64) (models.Totals, error) {
	order, err := s.Open(ctx, userID)
	if err != nil {
		return models.Totals{}, err
	}
	return store.OrderTotals(ctx, s.db, order.ID)
}
