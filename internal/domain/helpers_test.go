package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func group(dealer string, items ...OrderItem) DealerGroup {
	return DealerGroup{DealerID: dealer, Status: StatusPending, Items: items}
}

func item(price string, qty int) OrderItem {
	return OrderItem{ProductID: "p-" + price, Price: d(price), Quantity: qty}
}
