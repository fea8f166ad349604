package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/safar/storefront/internal/media"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{
	"product_list",
	"product_detail",
	"cart",
	"blog_list",
	"blog_detail",
	"blog_form",
	"blog_confirm_delete",
	"signup",
	"login",
	"feedback",
	"profile",
	"error",
}

// view is the data every page template receives.
type view struct {
	User  *session.Claims
	Flash *Flash
	CSRF  string
	Data  interface{}
}

type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() *renderer {
	funcs := template.FuncMap{
		"mediaURL": media.URL,
		"vnd":      models.FormatVND,
		"brands":   func() []models.Brand { return models.Brands },
	}

	base := template.Must(template.New("base").Funcs(funcs).ParseFS(templateFS, "templates/base.html"))

	r := &renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t := template.Must(base.Clone())
		r.templates[name] = template.Must(t.ParseFS(templateFS, "templates/"+name+".html"))
	}
	return r
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}

func (s *Server) render(c echo.Context, code int, name string, data interface{}) error {
	csrf, _ := c.Get("csrf").(string)
	return c.Render(code, name, view{
		User:  currentUser(c),
		Flash: s.popFlash(c),
		CSRF:  csrf,
		Data:  data,
	})
}
