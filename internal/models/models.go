package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Age          *int      `json:"age,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

type Brand string

const (
	BrandLenovo      Brand = "Lenovo"
	BrandHP          Brand = "HP"
	BrandXiaomi      Brand = "Xiaomi"
	BrandOther       Brand = "Other"
	BrandAccessories Brand = "Phụ kiện"
)

// Brands lists the brand choices in display order.
var Brands = []Brand{BrandLenovo, BrandHP, BrandXiaomi, BrandOther, BrandAccessories}

func (b Brand) Valid() bool {
	for _, known := range Brands {
		if b == known {
			return true
		}
	}
	return false
}

func (b Brand) Label() string {
	if b == BrandOther {
		return "Khác"
	}
	return string(b)
}

type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Brand       Brand            `json:"brand"`
	Image       string           `json:"image,omitempty"`
	Description string           `json:"description,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	DelPrice    *decimal.Decimal `json:"del_price,omitempty"`
	Stock       int              `json:"stock"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

func (p Product) FormattedPrice() string {
	return FormatVND(p.Price)
}

func (p Product) FormattedDelPrice() string {
	if p.DelPrice == nil || p.DelPrice.IsZero() {
		return ""
	}
	return FormatVND(*p.DelPrice)
}

type Order struct {
	ID            int64       `json:"id"`
	UserID        *int64      `json:"user_id,omitempty"`
	DateOrdered   time.Time   `json:"date_ordered"`
	Complete      bool        `json:"complete"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Version       int         `json:"version"`
	Items         []OrderItem `json:"items,omitempty"`
}

// Totals is derived from the loaded items on every call and never stored.
type Totals struct {
	Price decimal.Decimal `json:"total_price"`
	Items int             `json:"total_items"`
}

func (o *Order) Totals() Totals {
	t := Totals{Price: decimal.Zero}
	for _, item := range o.Items {
		t.Price = t.Price.Add(item.Total())
		t.Items += item.Quantity
	}
	return t
}

func (t Totals) FormattedPrice() string {
	return FormatVND(t.Price)
}

type OrderItem struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	DateAdded time.Time `json:"date_added"`
	Product   *Product  `json:"product,omitempty"`
}

// Total is the line price at the product's current price. Without a loaded
// product it is zero.
func (i OrderItem) Total() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) FormattedTotal() string {
	return FormatVND(i.Total())
}

type Comment struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Feedback struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Blog struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsPublished bool      `json:"is_published"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
