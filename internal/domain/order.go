package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "Online"
)

func (p PaymentMethod) Valid() bool {
	return p == PaymentCOD || p == PaymentOnline
}

type OverallStatus string

const (
	OverallPending          OverallStatus = "Pending"
	OverallPartiallyShipped OverallStatus = "Partially Shipped"
	OverallShipped          OverallStatus = "Shipped"
	OverallCompleted        OverallStatus = "Completed"
)

type Order struct {
	ID              uuid.UUID       `json:"id"`
	BuyerID         string          `json:"buyer_id"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	DealerGroups    []DealerGroup   `json:"dealer_groups"`
	Coupon          *AppliedCoupon  `json:"coupon,omitempty"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	ItemsSubtotal   decimal.Decimal `json:"items_subtotal"`
	TotalSavings    decimal.Decimal `json:"total_savings"`
	DeliveryCharge  decimal.Decimal `json:"delivery_charge"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	OverallStatus   OverallStatus   `json:"overall_status"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Group returns the dealer group owned by dealerID, or nil.
func (o *Order) Group(dealerID string) *DealerGroup {
	for i := range o.DealerGroups {
		if o.DealerGroups[i].DealerID == dealerID {
			return &o.DealerGroups[i]
		}
	}
	return nil
}

// ProductIDs lists every distinct product in the order, in item order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, g := range o.DealerGroups {
		for _, it := range g.Items {
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

type DealerGroup struct {
	DealerID           string      `json:"dealer_id"`
	Status             GroupStatus `json:"status"`
	DeliveryPIN        *string     `json:"-"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	Items              []OrderItem `json:"items"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// PreDiscount is the group's payable item amount before any coupon.
func (g DealerGroup) PreDiscount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range g.Items {
		total = Round2(total.Add(it.EffectivePrice().Mul(decimal.NewFromInt(int64(it.Quantity)))))
	}
	return total
}

type Variant struct {
	Weight string `json:"weight"`
	Unit   string `json:"unit"`
}

type OrderItem struct {
	ProductID     string           `json:"product_id"`
	Name          string           `json:"name"`
	ImageURL      string           `json:"image_url"`
	Category      string           `json:"category"`
	Variant       Variant          `json:"variant"`
	Quantity      int              `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
}

func (it OrderItem) EffectivePrice() decimal.Decimal {
	if it.DiscountPrice != nil {
		return *it.DiscountPrice
	}
	return it.Price
}

type ShippingAddress struct {
	To         string `json:"to"`
	Type       string `json:"type,omitempty"`
	DoorNo     string `json:"door_no"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	ContactNo  string `json:"contactNo"`
	AltNo      string `json:"alt_no,omitempty"`
}

// Missing names the first required address field that is empty.
func (a ShippingAddress) Missing() string {
	switch {
	case a.To == "":
		return "to"
	case a.DoorNo == "":
		return "door_no"
	case a.Street == "":
		return "street"
	case a.City == "":
		return "city"
	case a.State == "":
		return "state"
	case a.PostalCode == "":
		return "postalCode"
	case a.ContactNo == "":
		return "contactNo"
	}
	return ""
}

// AppliedCoupon is the immutable copy of a coupon taken at redemption time.
type AppliedCoupon struct {
	CouponID      uuid.UUID       `json:"coupon_id"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Type          CouponType      `json:"type"`
}

// Redemption ties a coupon usage to the order that consumed it.
type Redemption struct {
	OrderID  uuid.UUID
	CouponID uuid.UUID
	UserID   string
}
