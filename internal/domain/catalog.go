package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the order pipeline needs.
type Product struct {
	ID       string           `json:"id"`
	DealerID string           `json:"dealer_id"`
	Name     string           `json:"name"`
	Category string           `json:"category"`
	ImageURL string           `json:"image_url"`
	Variants []ProductVariant `json:"variants"`
}

type ProductVariant struct {
	Weight        string           `json:"weight"`
	Unit          string           `json:"unit"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Stock         int              `json:"stock"`
}

// Variant finds the exact (weight, unit) variant.
func (p Product) Variant(v Variant) (ProductVariant, bool) {
	for _, pv := range p.Variants {
		if pv.Weight == v.Weight && pv.Unit == v.Unit {
			return pv, true
		}
	}
	return ProductVariant{}, false
}

type Role string

const (
	RoleUser   Role = "user"
	RoleDealer Role = "dealer"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	DOB       *time.Time        `json:"dob,omitempty"`
	Addresses []ShippingAddress `json:"addresses,omitempty"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// BirthdayOn compares day and month of the stored dob with now, both in UTC.
func (u User) BirthdayOn(now time.Time) bool {
	if u.DOB == nil {
		return false
	}
	dob := u.DOB.UTC()
	now = now.UTC()
	return dob.Day() == now.Day() && dob.Month() == now.Month()
}
