package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProrate_Proportional(t *testing.T) {
	groups := []DealerGroup{
		group("dealer-a", item("100", 3)),
		group("dealer-b", item("50", 4)),
	}

	allocs := Prorate(groups, d("50"))

	require.Len(t, allocs, 2)
	assert.Equal(t, "dealer-a", allocs[0].DealerID)
	assertMoney(t, "300.00", allocs[0].PreDiscount)
	assert.Equal(t, "0.6", allocs[0].Share.String())
	assertMoney(t, "30.00", allocs[0].CouponDiscount)
	assertMoney(t, "270.00", allocs[0].NetAmount)
	assertMoney(t, "20.00", allocs[1].CouponDiscount)
	assertMoney(t, "180.00", allocs[1].NetAmount)
}

func TestProrate_UsesDiscountPrice(t *testing.T) {
	it := item("100", 1)
	it.DiscountPrice = dp("80")
	groups := []DealerGroup{group("a", it), group("b", item("20", 1))}

	allocs := Prorate(groups, d("10"))

	assertMoney(t, "80.00", allocs[0].PreDiscount)
	assertMoney(t, "8.00", allocs[0].CouponDiscount)
	assertMoney(t, "2.00", allocs[1].CouponDiscount)
}

func TestProrate_SumWithinRoundingTolerance(t *testing.T) {
	groups := []DealerGroup{
		group("a", item("100", 1)),
		group("b", item("100", 1)),
		group("c", item("100", 1)),
	}
	coupon := d("10")

	allocs := Prorate(groups, coupon)

	sum := decimal.Zero
	for _, a := range allocs {
		assertMoney(t, "3.33", a.CouponDiscount)
		sum = sum.Add(a.CouponDiscount)
	}
	tolerance := d("0.01").Mul(decimal.NewFromInt(int64(len(groups))))
	assert.True(t, sum.Sub(coupon).Abs().LessThanOrEqual(tolerance), "sum %s drifted from %s", sum, coupon)
}

func TestProrate_ZeroTotalAllocatesNothing(t *testing.T) {
	groups := []DealerGroup{group("a", item("0", 1)), group("b", item("0", 2))}

	allocs := Prorate(groups, d("25"))

	for _, a := range allocs {
		assert.True(t, a.CouponDiscount.IsZero())
		assert.True(t, a.Share.IsZero())
	}
}

func TestAllocationFor_NoCouponMeansNoDiscount(t *testing.T) {
	o := Order{
		ID:             uuid.New(),
		DealerGroups:   []DealerGroup{group("a", item("40", 1))},
		CouponDiscount: d("5"),
	}

	a, ok := AllocationFor(o, "a")
	require.True(t, ok)
	assert.True(t, a.CouponDiscount.IsZero())

	_, ok = AllocationFor(o, "missing")
	assert.False(t, ok)
}
