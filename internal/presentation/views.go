package presentation

import "github.com/RaikyD/dealer-orders-service/internal/domain"

type groupView struct {
	domain.DealerGroup
	DeliveryPIN *string `json:"delivery_pin,omitempty"`
}

type orderView struct {
	domain.Order
	DealerGroups []groupView `json:"dealer_groups"`
}

// viewFor renders an order for viewerID. Delivery PINs are shown to the buyer only.
func viewFor(o domain.Order, viewerID string) orderView {
	v := orderView{Order: o, DealerGroups: make([]groupView, len(o.DealerGroups))}
	for i, g := range o.DealerGroups {
		v.DealerGroups[i] = groupView{DealerGroup: g}
		if o.BuyerID == viewerID && g.Status == domain.StatusOutForDelivery {
			v.DealerGroups[i].DeliveryPIN = g.DeliveryPIN
		}
	}
	return v
}

func viewsFor(orders []domain.Order, viewerID string) []orderView {
	out := make([]orderView, len(orders))
	for i, o := range orders {
		out[i] = viewFor(o, viewerID)
	}
	return out
}
