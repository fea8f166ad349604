package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/safar/storefront/internal/forms"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type catalogPage struct {
	Page          *store.OffsetPage
	Query         string
	SelectedBrand string
	MinPrice      string
	MaxPrice      string
	params        url.Values
}

// PageURL links to page n of the current listing, keeping the filters.
func (p catalogPage) PageURL(n int) string {
	q := url.Values{}
	for k, v := range p.params {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	return "/?" + q.Encode()
}

type productPage struct {
	Product  *models.Product
	Related  []models.Product
	Comments []models.Comment
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

func (s *Server) productList(c echo.Context) error {
	params := c.QueryParams()
	filter, page := forms.ParseCatalogFilter(params)

	result, err := store.ListProducts(c.Request().Context(), s.db, filter, page, store.CatalogPageSize)
	if err != nil {
		return err
	}

	selected := string(filter.Brand)
	if selected == "" {
		selected = "all"
	}

	return s.render(c, http.StatusOK, "product_list", catalogPage{
		Page:          result,
		Query:         filter.Query,
		SelectedBrand: selected,
		MinPrice:      params.Get("min_price"),
		MaxPrice:      params.Get("max_price"),
		params:        params,
	})
}

func (s *Server) productDetail(c echo.Context) error {
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	product, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		return err
	}

	related, err := store.RelatedProducts(ctx, s.db, product)
	if err != nil {
		return err
	}

	comments, err := store.ActiveComments(ctx, s.db, product.ID)
	if err != nil {
		return err
	}

	return s.render(c, http.StatusOK, "product_detail", productPage{
		Product:  product,
		Related:  related,
		Comments: comments,
	})
}

func (s *Server) addComment(c echo.Context) error {
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	product, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		return err
	}
	back := "/" + strconv.FormatInt(product.ID, 10) + "/"

	content, err := forms.ValidateComment(c.FormValue("content"))
	if err != nil {
		return s.finish(c, failure(forms.Message(err), back))
	}

	if _, err := store.CreateComment(ctx, s.db, product.ID, currentUser(c).UserID, content); err != nil {
		return err
	}

	return s.finish(c, success("Your comment has been posted.", back))
}
