package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated        = "order.created"
	EventGroupStatusChanged  = "order.group_status_changed"
	EventGroupDelivered      = "order.group_delivered"
	EventCouponUsageFinalize = "coupon.usage_finalized"
)

// Event is an outbox record. Payload must never carry a delivery PIN.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OrderID    uuid.UUID      `json:"order_id"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func OrderCreatedEvent(o Order) Event {
	dealers := make([]string, 0, len(o.DealerGroups))
	for _, g := range o.DealerGroups {
		dealers = append(dealers, g.DealerID)
	}
	payload := map[string]any{
		"buyer_id":       o.BuyerID,
		"dealers":        dealers,
		"grand_total":    o.GrandTotal,
		"payment_method": o.PaymentMethod,
	}
	if o.Coupon != nil {
		payload["coupon_code"] = o.Coupon.Code
		payload["coupon_discount"] = o.CouponDiscount
	}
	return Event{Type: EventOrderCreated, OrderID: o.ID, Payload: payload, OccurredAt: o.CreatedAt}
}

func GroupStatusEvent(o Order, dealerID string, previous GroupStatus, actorID string) Event {
	g := o.Group(dealerID)
	typ := EventGroupStatusChanged
	payload := map[string]any{
		"dealer_id":       dealerID,
		"previous_status": previous,
		"actor_id":        actorID,
		"overall_status":  o.OverallStatus,
	}
	if g != nil {
		payload["current_status"] = g.Status
		if g.Status == StatusDelivered {
			typ = EventGroupDelivered
		}
		if g.CancellationReason != nil {
			payload["cancellation_reason"] = *g.CancellationReason
		}
	}
	return Event{Type: typ, OrderID: o.ID, Payload: payload, OccurredAt: o.UpdatedAt}
}

func CouponFinalizedEvent(r Redemption, at time.Time) Event {
	return Event{
		Type:    EventCouponUsageFinalize,
		OrderID: r.OrderID,
		Payload: map[string]any{
			"coupon_id": r.CouponID,
			"user_id":   r.UserID,
		},
		OccurredAt: at,
	}
}
