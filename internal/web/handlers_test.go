package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/media"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/session"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	t   *testing.T
	db  *sql.DB
	cfg *config.Config
	e   *echo.Echo
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env: "test",
		Server: config.ServerConfig{
			AuthRateLimit: 1000,
			AuthRateBurst: 1000,
		},
		Session: config.SessionConfig{
			Secret:     "test-secret",
			TTL:        time.Hour,
			CookieName: "session",
			Store:      "memory",
		},
		Media: config.MediaConfig{Dir: t.TempDir(), MaxUploadMiB: 5},
	}
}

func newHarness(t *testing.T, configure ...func(*config.Config)) *harness {
	db := testdb.New(t)
	cfg := testConfig(t)
	for _, fn := range configure {
		fn(cfg)
	}
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, session.NewMemoryStore())
	return &harness{t: t, db: db, cfg: cfg, e: New(cfg, db, sessions)}
}

func (h *harness) product(name string, brand models.Brand, price int64) *models.Product {
	p, err := store.CreateProduct(context.Background(), h.db, store.NewProduct{
		Name:  name,
		Brand: brand,
		Price: decimal.NewFromInt(price),
		Stock: 10,
	})
	require.NoError(h.t, err)
	return p
}

// user creates an account with password "password".
func (h *harness) user(username string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(h.t, err)
	u, err := store.CreateUser(context.Background(), h.db, username, username+"@example.com", string(hash))
	require.NoError(h.t, err)
	return u
}

// client is a browser stand-in that keeps cookies between requests.
type client struct {
	h       *harness
	cookies map[string]*http.Cookie
}

func (h *harness) client() *client {
	return &client{h: h, cookies: make(map[string]*http.Cookie)}
}

func (cl *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	cl.h.e.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(cl.cookies, c.Name)
			continue
		}
		cl.cookies[c.Name] = c
	}
	return rec
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (cl *client) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return cl.do(req)
}

func (cl *client) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return cl.do(req)
}

func (cl *client) postMultipart(path string, fields map[string]string, fileField, filename, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(cl.h.t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(cl.h.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(cl.h.t, err)
	}
	require.NoError(cl.h.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return cl.do(req)
}

func (cl *client) login(username string) {
	rec := cl.postForm("/login/", url.Values{"username": {username}, "password": {"password"}})
	require.Equal(cl.h.t, http.StatusFound, rec.Code)
	require.Contains(cl.h.t, cl.cookies, "session", "login should set the session cookie")
}

// flash returns the pending flash message and consumes it.
func (cl *client) flash() string {
	c, ok := cl.cookies[flashCookieName]
	if !ok {
		return ""
	}
	delete(cl.cookies, flashCookieName)
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	require.NoError(cl.h.t, err)
	var f Flash
	require.NoError(cl.h.t, json.Unmarshal(raw, &f))
	return f.Message
}

func itemPath(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10) + "/"
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.client().get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCatalog(t *testing.T) {
	h := newHarness(t)
	h.product("HP Pavilion", models.BrandHP, 900000)
	h.product("HP Spectre", models.BrandHP, 2500000)
	h.product("Lenovo Legion", models.BrandLenovo, 3000000)
	cl := h.client()

	rec := cl.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "HP Pavilion")
	assert.Contains(t, body, "Lenovo Legion")
	assert.Contains(t, body, "2,500,000 VNĐ")

	rec = cl.get("/?brand=HP&min_price=1000000")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "HP Spectre")
	assert.NotContains(t, body, "HP Pavilion")
	assert.NotContains(t, body, "Lenovo Legion")

	rec = cl.get("/?q=legion&page=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lenovo Legion")
	assert.Contains(t, rec.Body.String(), "Page 1 of 1")

	rec = cl.get("/?page=99")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page 1 of 1")
}

func TestProductDetail(t *testing.T) {
	h := newHarness(t)
	p := h.product("Xiaomi Book", models.BrandXiaomi, 500000)
	h.product("Xiaomi Pad", models.BrandXiaomi, 400000)
	cl := h.client()

	rec := cl.get(itemPath("/", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Xiaomi Book")
	assert.Contains(t, rec.Body.String(), "Xiaomi Pad", "related products are listed")

	assert.Equal(t, http.StatusNotFound, cl.get("/99999/").Code)
	assert.Equal(t, http.StatusNotFound, cl.get("/not-a-number/").Code)
}

func TestLoginRequired(t *testing.T) {
	h := newHarness(t)
	cl := h.client()

	rec := cl.get("/cart/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login/?next="))

	// trailing slash is added before routing
	rec = cl.get("/cart")
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = cl.postJSON("/update_item/", `{"productId": 1, "action": "add"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestComments(t *testing.T) {
	h := newHarness(t)
	p := h.product("HP Envy", models.BrandHP, 100)
	h.user("alice")
	cl := h.client()
	cl.login("alice")

	path := itemPath("/", p.ID) + "comment/add/"

	rec := cl.postForm(path, url.Values{"content": {"hi"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, itemPath("/", p.ID), rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Comments must be at least 5 characters.", cl.flash())

	comments, err := store.ActiveComments(context.Background(), h.db, p.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	rec = cl.postForm(path, url.Values{"content": {"hello!"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	cl.flash()

	rec = cl.get(itemPath("/", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello!")

	assert.Equal(t, http.StatusNotFound, cl.postForm("/99999/comment/add/", url.Values{"content": {"hello!"}}).Code)
}

func TestUpdateItemEndpoint(t *testing.T) {
	h := newHarness(t)
	p := h.product("HP Omen", models.BrandHP, 100000)
	h.user("bob")
	cl := h.client()
	cl.login("bob")

	rec := cl.get("/update_item/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request"}`, rec.Body.String())

	rec = cl.postJSON("/update_item/", `{"productId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = cl.postJSON("/update_item/", `{"action":"add"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := strconv.FormatInt(p.ID, 10)
	rec = cl.postJSON("/update_item/", `{"productId":"`+id+`","action":"add"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","cart_total":1}`, rec.Body.String())

	rec = cl.postJSON("/update_item/", `{"productId":`+id+`,"action":"add"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","cart_total":2}`, rec.Body.String())

	rec = cl.postJSON("/update_item/", `{"productId":`+id+`,"action":"shake"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","cart_total":2}`, rec.Body.String())

	rec = cl.postJSON("/update_item/", `{"productId":`+id+`,"action":"remove"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","cart_total":1}`, rec.Body.String())

	rec = cl.postJSON("/update_item/", `{"productId":99999,"action":"add"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t)
	p := h.product("HP EliteBook", models.BrandHP, 100000)
	a := h.user("usera")
	h.user("userb")
	svc := cart.NewService(h.db)
	ctx := context.Background()

	alice := h.client()
	alice.login("usera")

	rec := alice.get(itemPath("/add-to-cart/", p.ID))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cart/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Added HP EliteBook to your cart.", alice.flash())

	order, err := svc.Load(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].Quantity)
	itemID := order.Items[0].ID

	rec = alice.postJSON("/update_item/", `{"productId":`+strconv.FormatInt(p.ID, 10)+`,"action":"add"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = alice.get("/cart/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "200,000 VNĐ")

	// another user cannot touch the item
	bob := h.client()
	bob.login("userb")
	assert.Equal(t, http.StatusNotFound, bob.postForm(itemPath("/update-quantity/", itemID), url.Values{"quantity": {"5"}}).Code)
	assert.Equal(t, http.StatusNotFound, bob.postForm(itemPath("/remove-item/", itemID), nil).Code)

	totals, err := svc.Totals(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Items)

	rec = alice.postForm(itemPath("/update-quantity/", itemID), url.Values{"quantity": {"many"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "Invalid quantity.", alice.flash())

	rec = alice.postForm(itemPath("/update-quantity/", itemID), url.Values{"quantity": {"3000000000"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "Invalid quantity.", alice.flash())

	rec = alice.postForm(itemPath("/update-quantity/", itemID), url.Values{"quantity": {"0"}})
	assert.Equal(t, http.StatusFound, rec.Code)

	order, err = svc.Load(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, order.Items)

	assert.Equal(t, http.StatusNotFound, alice.postForm(itemPath("/remove-item/", itemID), nil).Code)
	assert.Equal(t, http.StatusNotFound, alice.get("/add-to-cart/99999/").Code)
}

func TestRemoveItem(t *testing.T) {
	h := newHarness(t)
	p := h.product("HP Victus", models.BrandHP, 100)
	u := h.user("carol")
	cl := h.client()
	cl.login("carol")

	cl.get(itemPath("/add-to-cart/", p.ID))
	order, err := cart.NewService(h.db).Load(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)

	rec := cl.postForm(itemPath("/remove-item/", order.Items[0].ID), nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cart/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Item removed from your cart.", cl.flash())

	totals, err := cart.NewService(h.db).Totals(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Items)
}

func TestSignupLoginLogout(t *testing.T) {
	h := newHarness(t)
	cl := h.client()

	rec := cl.postForm("/signup/", url.Values{
		"username": {"dave"}, "email": {"d@example.com"}, "password": {"pw1"}, "confirm": {"pw2"},
	})
	assert.Equal(t, "/signup/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Passwords do not match.", cl.flash())

	rec = cl.postForm("/signup/", url.Values{
		"username": {"dave"}, "email": {"d@example.com"}, "password": {"pw1"}, "confirm": {"pw1"},
	})
	assert.Equal(t, "/login/", rec.Header().Get(echo.HeaderLocation))
	cl.flash()

	rec = cl.postForm("/signup/", url.Values{
		"username": {"dave"}, "password": {"pw1"}, "confirm": {"pw1"},
	})
	assert.Equal(t, "/signup/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Username already exists.", cl.flash())

	rec = cl.postForm("/login/", url.Values{"username": {"dave"}, "password": {"wrong"}})
	assert.Equal(t, "/login/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Invalid username or password.", cl.flash())
	assert.NotContains(t, cl.cookies, "session")

	rec = cl.postForm("/login/", url.Values{"username": {"dave"}, "password": {"pw1"}, "next": {"/cart/"}})
	assert.Equal(t, "/cart/", rec.Header().Get(echo.HeaderLocation))
	token := cl.cookies["session"]
	require.NotNil(t, token)

	assert.Equal(t, http.StatusOK, cl.get("/cart/").Code)

	rec = cl.postForm("/logout/", nil)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assert.NotContains(t, cl.cookies, "session")

	// the old token is revoked server-side
	stale := h.client()
	stale.cookies["session"] = token
	rec = stale.get("/cart/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login/"))
}

func TestAuthRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Server.AuthRateLimit = 0.001
		cfg.Server.AuthRateBurst = 2
	})
	cl := h.client()

	for i := 0; i < 2; i++ {
		rec := cl.postForm("/login/", url.Values{"username": {"x"}, "password": {"y"}})
		assert.Equal(t, http.StatusFound, rec.Code)
	}
	rec := cl.postForm("/login/", url.Values{"username": {"x"}, "password": {"y"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// pages are not throttled
	assert.Equal(t, http.StatusOK, cl.get("/login/").Code)
}

func TestCSRF(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.CSRF = true })
	h.user("erin")
	cl := h.client()

	rec := cl.get("/login/")
	require.Equal(t, http.StatusOK, rec.Code)
	token, ok := cl.cookies[csrfCookieName]
	require.True(t, ok, "csrf cookie should be issued")
	assert.Contains(t, rec.Body.String(), token.Value)

	rec = cl.postForm("/login/", url.Values{"username": {"erin"}, "password": {"password"}})
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)

	rec = cl.postForm("/login/", url.Values{
		"username": {"erin"}, "password": {"password"}, "csrfmiddlewaretoken": {token.Value},
	})
	assert.Equal(t, http.StatusFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/update_item/", strings.NewReader(`{"productId":1,"action":"add"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-CSRFToken", token.Value)
	rec = cl.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "token accepted, product missing")
}

func TestBlog(t *testing.T) {
	h := newHarness(t)
	h.user("frank")
	cl := h.client()

	assert.Equal(t, http.StatusOK, cl.get("/blogs/").Code)
	assert.Equal(t, http.StatusFound, cl.get("/blogs/create/").Code, "anonymous users are sent to login")

	cl.login("frank")
	assert.Equal(t, http.StatusOK, cl.get("/blogs/create/").Code)

	rec := cl.postMultipart("/blogs/create/", map[string]string{"title": " "}, "", "", "")
	assert.Equal(t, "/blogs/create/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Please enter a title.", cl.flash())

	rec = cl.postMultipart("/blogs/create/", map[string]string{
		"title": "Back to school", "content": "Deals on laptops", "is_published": "on",
	}, "image", "cover.png", "png")
	require.Equal(t, http.StatusFound, rec.Code)
	cl.flash()

	blogs, err := store.ListBlogs(context.Background(), h.db)
	require.NoError(t, err)
	require.Len(t, blogs, 1)
	blog := blogs[0]
	assert.True(t, blog.IsPublished)
	assert.True(t, strings.HasPrefix(blog.Image, "blogs/"))
	assert.Equal(t, itemPath("/blogs/", blog.ID), rec.Header().Get(echo.HeaderLocation))

	rec = cl.get(itemPath("/blogs/", blog.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Deals on laptops")

	rec = cl.get("/media/" + blog.Image)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	rec = cl.postMultipart(itemPath("/blogs/", blog.ID)+"edit/", map[string]string{"title": "Updated"}, "", "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	updated, err := store.GetBlog(context.Background(), h.db, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", updated.Title)
	assert.False(t, updated.IsPublished)
	assert.Equal(t, blog.Image, updated.Image, "image kept without a new upload")

	cl.postMultipart(itemPath("/blogs/", blog.ID)+"edit/", map[string]string{"title": "Updated"}, "image", "x.exe", "MZ")
	assert.Equal(t, "Unsupported image type.", cl.flash())

	assert.Equal(t, http.StatusOK, cl.get(itemPath("/blogs/", blog.ID)+"delete/").Code)
	rec = cl.postForm(itemPath("/blogs/", blog.ID)+"delete/", nil)
	assert.Equal(t, "/blogs/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, http.StatusNotFound, cl.get(itemPath("/blogs/", blog.ID)).Code)
}

func TestFeedback(t *testing.T) {
	h := newHarness(t)
	u := h.user("gina")
	cl := h.client()
	cl.login("gina")

	rec := cl.postForm("/feedback/", url.Values{"subject": {""}, "message": {"text"}})
	assert.Equal(t, "/feedback/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Please enter a subject.", cl.flash())

	cl.postForm("/feedback/", url.Values{"subject": {"Delivery"}, "message": {"Quick and safe"}})
	assert.Equal(t, "Thank you for your feedback!", cl.flash())

	list, err := store.ListFeedbackByUser(context.Background(), h.db, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	rec = cl.get("/feedback/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Quick and safe")
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	u := h.user("hank")
	cl := h.client()
	cl.login("hank")

	rec := cl.get("/profile/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="18"`)

	rec = cl.postMultipart("/profile/", map[string]string{
		"name": "", "email": "hank@shop.test", "age": "",
	}, "avatar", "me.jpg", "jpeg")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "Profile updated.", cl.flash())

	got, err := store.GetUser(context.Background(), h.db, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous", got.Name)
	assert.Equal(t, "hank@shop.test", got.Email)
	assert.Equal(t, 18, *got.Age, "empty age keeps the stored value")
	assert.True(t, strings.HasPrefix(got.Avatar, "avatars/"))

	cl.postMultipart("/profile/", map[string]string{"name": "Hank", "age": "abc"}, "", "", "")
	assert.Equal(t, "Age must be a non-negative whole number.", cl.flash())

	cl.postMultipart("/profile/", map[string]string{"name": "Hank", "version": strconv.Itoa(u.Version)}, "", "", "")
	assert.Equal(t, "Your profile was changed elsewhere. Please review and try again.", cl.flash())

	avatars := filepath.Join(h.cfg.Media.Dir, media.DirAvatars)
	before, err := os.ReadDir(avatars)
	require.NoError(t, err)
	require.Len(t, before, 1)

	cl.postMultipart("/profile/", map[string]string{"name": "Hank", "version": strconv.Itoa(u.Version)}, "avatar", "new.png", "png")
	assert.Equal(t, "Your profile was changed elsewhere. Please review and try again.", cl.flash())

	after, err := os.ReadDir(avatars)
	require.NoError(t, err)
	assert.Len(t, after, 1, "rejected update must not leave its upload behind")
}
