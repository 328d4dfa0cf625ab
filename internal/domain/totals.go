package domain

import "github.com/shopspring/decimal"

// GrandTotalOf is the only formula for an order's payable amount.
func GrandTotalOf(itemsSubtotal, totalSavings, deliveryCharge, couponDiscount decimal.Decimal) decimal.Decimal {
	return Round2(itemsSubtotal.Sub(totalSavings).Add(deliveryCharge).Sub(couponDiscount))
}

// EnforceTotals rounds every component and overwrites GrandTotal with the
// recomputed figure. It reports whether the previous GrandTotal disagreed.
func EnforceTotals(o *Order) bool {
	o.ItemsSubtotal = Round2(o.ItemsSubtotal)
	o.TotalSavings = Round2(o.TotalSavings)
	o.DeliveryCharge = Round2(o.DeliveryCharge)
	o.CouponDiscount = Round2(o.CouponDiscount)

	want := GrandTotalOf(o.ItemsSubtotal, o.TotalSavings, o.DeliveryCharge, o.CouponDiscount)
	changed := !o.GrandTotal.Equal(want)
	o.GrandTotal = want
	return changed
}

// TotalsHold reports whether the stored GrandTotal satisfies the invariant.
func TotalsHold(o Order) bool {
	return o.GrandTotal.Equal(GrandTotalOf(o.ItemsSubtotal, o.TotalSavings, o.DeliveryCharge, o.CouponDiscount))
}
