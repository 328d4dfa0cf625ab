package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrandTotalOf(t *testing.T) {
	assertMoney(t, "400.00", GrandTotalOf(d("500"), d("50"), d("0"), d("50")))
	assertMoney(t, "212.00", GrandTotalOf(d("180"), d("0"), d("32"), d("0")))
}

func TestEnforceTotals_OverwritesClientGrandTotal(t *testing.T) {
	o := &Order{
		ItemsSubtotal:  d("500"),
		TotalSavings:   d("50"),
		DeliveryCharge: d("0"),
		CouponDiscount: d("45"),
		GrandTotal:     d("999.99"),
	}

	changed := EnforceTotals(o)

	assert.True(t, changed)
	assertMoney(t, "405.00", o.GrandTotal)
	assert.True(t, TotalsHold(*o))
}

func TestEnforceTotals_RoundsComponents(t *testing.T) {
	o := &Order{
		ItemsSubtotal:  d("100.005"),
		TotalSavings:   d("0.004"),
		DeliveryCharge: d("32"),
		CouponDiscount: d("10.125"),
	}

	EnforceTotals(o)

	assertMoney(t, "100.01", o.ItemsSubtotal)
	assertMoney(t, "0.00", o.TotalSavings)
	assertMoney(t, "10.13", o.CouponDiscount)
	assertMoney(t, "121.88", o.GrandTotal)
	assert.False(t, EnforceTotals(o), "second pass must be a no-op")
}
