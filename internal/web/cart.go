package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/store"
)

// productRef accepts a product id sent either as a JSON number or as a
// numeric string.
type productRef int64

func (p *productRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid productId %q", data)
	}
	*p = productRef(id)
	return nil
}

type updateItemRequest struct {
	ProductID *productRef `json:"productId"`
	Action    string      `json:"action"`
}

func (s *Server) cartPage(c echo.Context) error {
	order, err := s.cart.Load(c.Request().Context(), currentUser(c).UserID)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, "cart", order)
}

func (s *Server) updateItem(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	var req updateItemRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
	}
	if req.ProductID == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "productId is required"})
	}

	totals, err := s.cart.Apply(c.Request().Context(), currentUser(c).UserID, int64(*req.ProductID), cart.Action(req.Action))
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Product not found"})
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "success",
		"cart_total": totals.Items,
	})
}

func (s *Server) addToCart(c echo.Context) error {
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	product, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		return err
	}

	if _, err := s.cart.AddItem(ctx, currentUser(c).UserID, product.ID, 1); err != nil {
		return err
	}

	return s.finish(c, success(fmt.Sprintf("Added %s to your cart.", product.Name), "/cart/"))
}

func (s *Server) removeItem(c echo.Context) error {
	id, err := pathID(c, "item_id")
	if err != nil {
		return err
	}

	if err := s.cart.RemoveItem(c.Request().Context(), currentUser(c).UserID, id); err != nil {
		return err
	}

	return s.finish(c, info("Item removed from your cart.", "/cart/"))
}

func (s *Server) updateQuantity(c echo.Context) error {
	id, err := pathID(c, "item_id")
	if err != nil {
		return err
	}

	raw := c.FormValue("quantity")
	if _, ok := c.Request().PostForm["quantity"]; !ok {
		raw = "1"
	}

	err = s.cart.SetQuantity(c.Request().Context(), currentUser(c).UserID, id, raw)
	if errors.Is(err, cart.ErrInvalidQuantity) {
		return s.finish(c, failure("Invalid quantity.", "/cart/"))
	}
	if err != nil {
		return err
	}

	return s.finish(c, Result{Redirect: "/cart/"})
}
