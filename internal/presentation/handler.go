package presentation

import (
	"net/http"
	"strings"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/presentation/helpers"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrdersHandler struct {
	orders      *application.OrdersService
	fulfillment *application.FulfillmentService
	idempotent  func(http.Handler) http.Handler
}

func NewOrdersHandler(orders *application.OrdersService, fulfillment *application.FulfillmentService, idempotent func(http.Handler) http.Handler) *OrdersHandler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	return &OrdersHandler{orders: orders, fulfillment: fulfillment, idempotent: idempotent}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.With(h.idempotent).Post("/orders", h.CreateOrder)
	r.Get("/orders/mine", h.ListMine)
	r.Get("/orders/dealer", h.ListForDealer)
	r.Get("/orders/{id}", h.GetOrder)
	r.Get("/orders/{id}/settlement", h.Settlement)
	r.Put("/orders/{id}/status", h.ChangeStatus)
	r.Put("/orders/{id}/deliver", h.ConfirmDelivery)
}

type couponRequest struct {
	Code   string `json:"code"`
	Source string `json:"source,omitempty"`
}

// createOrderRequest accepts client-side totals so older clients keep working;
// they are never trusted.
type createOrderRequest struct {
	CartItems       []application.CartLine `json:"cartItems"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod   `json:"paymentMethod"`
	Coupon          *couponRequest         `json:"coupon,omitempty"`

	ItemsSubtotal  *decimal.Decimal `json:"itemsSubtotal,omitempty"`
	TotalSavings   *decimal.Decimal `json:"totalSavings,omitempty"`
	DeliveryCharge *decimal.Decimal `json:"deliveryCharge,omitempty"`
	CouponDiscount *decimal.Decimal `json:"couponDiscount,omitempty"`
	GrandTotal     *decimal.Decimal `json:"grandTotal,omitempty"`
}

func (req createOrderRequest) clientTotals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for name, v := range map[string]*decimal.Decimal{
		"itemsSubtotal":  req.ItemsSubtotal,
		"totalSavings":   req.TotalSavings,
		"deliveryCharge": req.DeliveryCharge,
		"couponDiscount": req.CouponDiscount,
		"grandTotal":     req.GrandTotal,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := helpers.UserID(r)
	if buyerID == "" {
		helpers.HttpError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cmd := application.CreateOrderCommand{
		BuyerID:         buyerID,
		Items:           req.CartItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ClientTotals:    req.clientTotals(),
	}
	if req.Coupon != nil {
		cmd.CouponCode = req.Coupon.Code
		cmd.CouponSource = req.Coupon.Source
	}

	order, err := h.orders.CreateOrder(r.Context(), cmd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"orderId": order.ID,
		"message": "Order placed successfully",
		"order":   viewFor(*order, buyerID),
	})
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	actor := helpers.UserID(r)
	order, err := h.orders.GetOrder(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, viewFor(*order, actor))
}

func (h *OrdersHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := helpers.UserID(r)
	orders, err := h.orders.ListMine(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, viewsFor(orders, actor))
}

func (h *OrdersHandler) ListForDealer(w http.ResponseWriter, r *http.Request) {
	actor := helpers.UserID(r)
	orders, err := h.orders.ListForDealer(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	allocs, err := h.orders.Settlement(r.Context(), helpers.UserID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"orderId": id, "allocations": allocs})
}

type changeStatusRequest struct {
	DealerID  string `json:"dealerId"`
	NewStatus string `json:"newStatus"`
	Reason    string `json:"reason,omitempty"`
}

func (h *OrdersHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.DealerID) == "" || strings.TrimSpace(req.NewStatus) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "dealerId and newStatus are required")
		return
	}

	actor := helpers.UserID(r)
	order, err := h.fulfillment.ChangeStatus(r.Context(), application.ChangeStatusCommand{
		OrderID:  id,
		DealerID: req.DealerID,
		ActorID:  actor,
		Status:   req.NewStatus,
		Reason:   req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, viewFor(*order, actor))
}

type deliverRequest struct {
	DealerID string `json:"dealerId"`
	PIN      string `json:"pin"`
}

func (h *OrdersHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req deliverRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.DealerID) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "dealerId is required")
		return
	}

	actor := helpers.UserID(r)
	order, err := h.fulfillment.ConfirmDelivery(r.Context(), application.ConfirmDeliveryCommand{
		OrderID:  id,
		DealerID: req.DealerID,
		ActorID:  actor,
		PIN:      req.PIN,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, viewFor(*order, actor))
}
