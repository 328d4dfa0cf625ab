package domain

import "github.com/shopspring/decimal"

// Allocation is one dealer's slice of an order-level coupon discount.
type Allocation struct {
	DealerID       string          `json:"dealer_id"`
	PreDiscount    decimal.Decimal `json:"pre_discount"`
	Share          decimal.Decimal `json:"share"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	NetAmount      decimal.Decimal `json:"net_amount"`
}

const shareScale = 6

// Prorate splits couponDiscount across groups in proportion to each group's
// pre-discount amount. A zero order-wide amount allocates nothing.
func Prorate(groups []DealerGroup, couponDiscount decimal.Decimal) []Allocation {
	out := make([]Allocation, len(groups))
	total := decimal.Zero
	for i, g := range groups {
		pre := g.PreDiscount()
		out[i] = Allocation{
			DealerID:       g.DealerID,
			PreDiscount:    pre,
			Share:          decimal.Zero,
			CouponDiscount: decimal.Zero,
			NetAmount:      pre,
		}
		total = total.Add(pre)
	}
	if total.IsZero() || couponDiscount.IsZero() {
		return out
	}

	for i := range out {
		share := out[i].PreDiscount.DivRound(total, 16)
		dealerDiscount := Round2(share.Mul(couponDiscount))
		out[i].Share = share.Round(shareScale)
		out[i].CouponDiscount = dealerDiscount
		out[i].NetAmount = Round2(out[i].PreDiscount.Sub(dealerDiscount))
	}
	return out
}

// AllocationFor picks a single dealer's allocation for the order.
func AllocationFor(o Order, dealerID string) (Allocation, bool) {
	discount := decimal.Zero
	if o.Coupon != nil {
		discount = o.CouponDiscount
	}
	for _, a := range Prorate(o.DealerGroups, discount) {
		if a.DealerID == dealerID {
			return a, true
		}
	}
	return Allocation{}, false
}
