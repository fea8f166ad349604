package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRefUnmarshal(t *testing.T) {
	tests := []struct {
		body    string
		want    int64
		wantErr bool
	}{
		{`{"productId": 12}`, 12, false},
		{`{"productId": "12"}`, 12, false},
		{`{"productId": " 7 "}`, 7, false},
		{`{"productId": "abc"}`, 0, true},
		{`{"productId": 1.5}`, 0, true},
		{`{"productId": true}`, 0, true},
	}
	for _, tt := range tests {
		var req updateItemRequest
		err := json.Unmarshal([]byte(tt.body), &req)
		if tt.wantErr {
			assert.Error(t, err, tt.body)
			continue
		}
		require.NoError(t, err, tt.body)
		require.NotNil(t, req.ProductID)
		assert.Equal(t, tt.want, int64(*req.ProductID))
	}

	var req updateItemRequest
	require.NoError(t, json.Unmarshal([]byte(`{"productId": null, "action": "add"}`), &req))
	assert.Nil(t, req.ProductID)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/cart/", safeNext("/cart/"))
	assert.Equal(t, "/", safeNext("https://evil.example"))
	assert.Equal(t, "/", safeNext("//evil.example"))
	assert.Equal(t, "/", safeNext(`/\evil.example`))
}

func TestClassify(t *testing.T) {
	code, _ := classify(fmt.Errorf("load: %w", database.ErrProductNotFound))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = classify(database.ErrOrderItemNotFound)
	assert.Equal(t, http.StatusNotFound, code)

	code, msg := classify(echo.NewHTTPError(http.StatusTooManyRequests, "slow down"))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "slow down", msg)

	code, _ = classify(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestFlashRoundTrip(t *testing.T) {
	s := &Server{cfg: &config.Config{}}
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	require.NoError(t, s.finish(c, failure("Đã có lỗi; thử lại.", "/cart/")))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cart/", rec.Header().Get(echo.HeaderLocation))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/cart/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	f := s.popFlash(c)
	require.NotNil(t, f)
	assert.Equal(t, LevelError, f.Level)
	assert.Equal(t, "Đã có lỗi; thử lại.", f.Message)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestRendererKnowsAllPages(t *testing.T) {
	r := newRenderer()
	for _, name := range pages {
		assert.Contains(t, r.templates, name)
	}
	assert.Error(t, r.Render(httptest.NewRecorder(), "missing", nil, nil))
}
