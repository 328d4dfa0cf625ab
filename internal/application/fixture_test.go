package application_test

import (
	"testing"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/application/inmem"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var now = time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

type fixture struct {
	store       *inmem.Store
	pricing     *application.PricingEngine
	coupons     *application.CouponsService
	orders      *application.OrdersService
	fulfillment *application.FulfillmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmem.New()

	birthday := time.Date(1995, 6, 15, 0, 0, 0, 0, time.UTC)
	for _, u := range []domain.User{
		{ID: "buyer", Role: domain.RoleUser},
		{ID: "birthday-buyer", Role: domain.RoleUser, DOB: &birthday},
		{ID: "dealer-1", Role: domain.RoleDealer},
		{ID: "dealer-2", Role: domain.RoleDealer},
		{ID: "dealer-3", Role: domain.RoleDealer},
		{ID: "admin", Role: domain.RoleAdmin},
	} {
		store.PutUser(u)
	}

	store.PutProduct(domain.Product{
		ID: "seed", DealerID: "dealer-1", Name: "Hybrid Seed", Category: "seeds",
		Variants: []domain.ProductVariant{
			{Weight: "1", Unit: "kg", Price: dec("100"), DiscountPrice: decPtr("90"), Stock: 50},
			{Weight: "5", Unit: "kg", Price: dec("450"), Stock: 10},
		},
	})
	store.PutProduct(domain.Product{
		ID: "sprayer", DealerID: "dealer-2", Name: "Hand Sprayer", Category: "tools",
		Variants: []domain.ProductVariant{{Weight: "1", Unit: "pc", Price: dec("50"), Stock: 5}},
	})
	store.PutProduct(domain.Product{
		ID: "orphan", Name: "No Dealer", Category: "misc",
		Variants: []domain.ProductVariant{{Weight: "1", Unit: "pc", Price: dec("10")}},
	})

	pricing := application.NewPricingEngine(store, dec("32"), dec("200"))
	coupons := application.NewCouponsService(store, store, store, pricing, []string{"save50", "SAVE30"}).
		WithClock(func() time.Time { return now })
	orders := application.NewOrdersService(application.OrdersServiceDeps{
		Orders:  store,
		Coupons: store,
		Users:   store,
		Pricing: pricing,
		Engine:  coupons,
		Clock:   func() time.Time { return now },
	})
	fulfillment := application.NewFulfillmentService(store, store).
		WithClock(func() time.Time { return now }).
		WithPINSource(func() (string, error) { return "4821", nil })

	return &fixture{store: store, pricing: pricing, coupons: coupons, orders: orders, fulfillment: fulfillment}
}

func (f *fixture) addCoupon(c domain.Coupon) domain.Coupon {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = domain.CouponActive
	}
	if c.Description == "" {
		c.Description = c.Code + " coupon"
	}
	if c.Usage.PerUserLimit == 0 {
		c.Usage.PerUserLimit = 1
	}
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now.Add(-time.Hour)
	}
	f.store.PutCoupon(c)
	return c
}

var address = domain.ShippingAddress{
	To: "Ravi", DoorNo: "12", Street: "Market Road", City: "Nashik",
	State: "MH", PostalCode: "422001", ContactNo: "9000000000",
}

// cart: 2 x seed 1kg (list 200, pays 180) from dealer-1 and 1 x sprayer (50) from dealer-2.
func cart() []application.CartLine {
	return []application.CartLine{
		{ProductID: "seed", Variant: domain.Variant{Weight: "1", Unit: "kg"}, Quantity: 2},
		{ProductID: "sprayer", Variant: domain.Variant{Weight: "1", Unit: "pc"}, Quantity: 1},
	}
}
