package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/safar/storefront/internal/forms"
	"github.com/safar/storefront/internal/media"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type blogForm struct {
	Blog *models.Blog
}

func blogURL(id int64) string {
	return "/blogs/" + strconv.FormatInt(id, 10) + "/"
}

func (s *Server) blogList(c echo.Context) error {
	blogs, err := store.ListBlogs(c.Request().Context(), s.db)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, "blog_list", blogs)
}

func (s *Server) blogDetail(c echo.Context) error {
	blog, err := s.blogFromPath(c)
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, "blog_detail", blog)
}

func (s *Server) blogFromPath(c echo.Context) (*models.Blog, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return store.GetBlog(c.Request().Context(), s.db, id)
}

// uploadedImage stores the optional file field and returns its media path,
// or "" when no file was sent.
func (s *Server) uploadedImage(c echo.Context, field, subdir string) (string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if fh.Size == 0 && fh.Filename == "" {
		return "", nil
	}
	return s.media.Save(subdir, fh)
}

// discardUpload removes an upload whose record was never written.
func (s *Server) discardUpload(rel string) {
	if err := s.media.Remove(rel); err != nil {
		log.Warn().Err(err).Str("path", rel).Msg("discard upload")
	}
}

func (s *Server) blogCreate(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return s.render(c, http.StatusOK, "blog_form", blogForm{})
	}

	in, err := forms.BlogInput(formValues(c))
	if err != nil {
		return s.finish(c, failure(forms.Message(err), "/blogs/create/"))
	}

	in.Image, err = s.uploadedImage(c, "image", media.DirBlogs)
	if errors.Is(err, media.ErrUnsupportedType) {
		return s.finish(c, failure("Unsupported image type.", "/blogs/create/"))
	}
	if err != nil {
		return err
	}

	blog, err := store.CreateBlog(c.Request().Context(), s.db, in)
	if err != nil {
		s.discardUpload(in.Image)
		return err
	}

	return s.finish(c, success("Blog post created.", blogURL(blog.ID)))
}

func (s *Server) blogUpdate(c echo.Context) error {
	blog, err := s.blogFromPath(c)
	if err != nil {
		return err
	}
	if c.Request().Method != http.MethodPost {
		return s.render(c, http.StatusOK, "blog_form", blogForm{Blog: blog})
	}

	back := blogURL(blog.ID) + "edit/"
	in, err := forms.BlogInput(formValues(c))
	if err != nil {
		return s.finish(c, failure(forms.Message(err), back))
	}

	in.Image, err = s.uploadedImage(c, "image", media.DirBlogs)
	if errors.Is(err, media.ErrUnsupportedType) {
		return s.finish(c, failure("Unsupported image type.", back))
	}
	if err != nil {
		return err
	}

	if _, err := store.UpdateBlog(c.Request().Context(), s.db, blog.ID, in); err != nil {
		s.discardUpload(in.Image)
		return err
	}

	return s.finish(c, success("Blog post updated.", blogURL(blog.ID)))
}

func (s *Server) blogDelete(c echo.Context) error {
	blog, err := s.blogFromPath(c)
	if err != nil {
		return err
	}
	if c.Request().Method != http.MethodPost {
		return s.render(c, http.StatusOK, "blog_confirm_delete", blog)
	}

	if err := store.DeleteBlog(c.Request().Context(), s.db, blog.ID); err != nil {
		return err
	}

	return s.finish(c, info("Blog post deleted.", "/blogs/"))
}
