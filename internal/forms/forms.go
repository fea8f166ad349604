// Package forms parses and validates submitted user input independently of
// the HTTP layer. Validation failures are returned as *ValidationError values
// whose Message is safe to show to the user.
package forms

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

const (
	MinCommentLength = 5
	DefaultName      = "Anonymous"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Message returns the user-facing text of a validation error, or "" when err
// is not one.
func Message(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return ""
}

// ParseCatalogFilter reads the catalog query parameters. Brand "all" or empty
// disables the brand filter, unparsable price bounds are dropped and a
// missing or non-numeric page becomes 1. Range clamping of the page happens
// in the store once the result size is known.
func ParseCatalogFilter(values url.Values) (store.ProductFilter, int) {
	filter := store.ProductFilter{
		Query: strings.TrimSpace(values.Get("q")),
	}

	if brand := strings.TrimSpace(values.Get("brand")); brand != "" && !strings.EqualFold(brand, "all") {
		filter.Brand = models.Brand(brand)
	}
	filter.MinPrice = parsePrice(values.Get("min_price"))
	filter.MaxPrice = parsePrice(values.Get("max_price"))

	page, err := strconv.Atoi(strings.TrimSpace(values.Get("page")))
	if err != nil {
		page = 1
	}

	return filter, page
}

func parsePrice(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

// ValidateComment returns the trimmed comment content.
func ValidateComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("content", "Please enter a comment.")
	}
	if utf8.RuneCountInString(content) < MinCommentLength {
		return "", invalid("content", "Comments must be at least 5 characters.")
	}
	return content, nil
}

type Feedback struct {
	Subject string
	Message string
}

func ValidateFeedback(subject, message string) (Feedback, error) {
	fb := Feedback{
		Subject: strings.TrimSpace(subject),
		Message: strings.TrimSpace(message),
	}
	if fb.Subject == "" {
		return Feedback{}, invalid("subject", "Please enter a subject.")
	}
	if fb.Message == "" {
		return Feedback{}, invalid("message", "Please enter a message.")
	}
	return fb, nil
}

type Signup struct {
	Username string
	Email    string
	Password string
}

func ValidateSignup(values url.Values) (Signup, error) {
	s := Signup{
		Username: strings.TrimSpace(values.Get("username")),
		Email:    strings.TrimSpace(values.Get("email")),
		Password: values.Get("password"),
	}
	confirm := values.Get("confirm")

	switch {
	case s.Username == "":
		return Signup{}, invalid("username", "Please enter a username.")
	case s.Password == "":
		return Signup{}, invalid("password", "Please enter a password.")
	case s.Password != confirm:
		return Signup{}, invalid("confirm", "Passwords do not match.")
	}
	return s, nil
}

// ParseProfile reads the editable profile fields. An empty name becomes
// DefaultName and an empty age keeps the stored value (nil Age).
func ParseProfile(values url.Values) (store.ProfileUpdate, error) {
	upd := store.ProfileUpdate{
		Name:  strings.TrimSpace(values.Get("name")),
		Email: strings.TrimSpace(values.Get("email")),
	}
	if upd.Name == "" {
		upd.Name = DefaultName
	}

	if raw := strings.TrimSpace(values.Get("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			return store.ProfileUpdate{}, invalid("age", "Age must be a non-negative whole number.")
		}
		upd.Age = &age
	}

	return upd, nil
}

// BlogInput reads the blog form fields. The image is attached separately by
// the caller once the upload is stored.
func BlogInput(values url.Values) (store.BlogInput, error) {
	in := store.BlogInput{
		Title:       strings.TrimSpace(values.Get("title")),
		Content:     strings.TrimSpace(values.Get("content")),
		IsPublished: values.Get("is_published") == "on",
	}
	if in.Title == "" {
		return store.BlogInput{}, invalid("title", "Please enter a title.")
	}
	return in, nil
}
