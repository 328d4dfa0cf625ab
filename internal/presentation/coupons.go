package presentation

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/presentation/helpers"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponsHandler struct {
	coupons *application.CouponsService
	orders  *application.OrdersService
}

func NewCouponsHandler(coupons *application.CouponsService, orders *application.OrdersService) *CouponsHandler {
	return &CouponsHandler{coupons: coupons, orders: orders}
}

func (h *CouponsHandler) Register(r chi.Router) {
	r.Post("/coupons/apply", h.Apply)
	r.Get("/coupons/available", h.Available)
	r.Post("/coupons/finalize", h.Finalize)

	r.Route("/admin/coupons", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type applyRequest struct {
	CouponCode     string                 `json:"couponCode"`
	UserID         string                 `json:"userId"`
	OrderTotal     decimal.Decimal        `json:"orderTotal"`
	CartProductIDs []string               `json:"cartProductIds"`
	Source         string                 `json:"source,omitempty"`
	CartItems      []application.CartLine `json:"cartItems,omitempty"`
}

type couponPreview struct {
	domain.Coupon
	UserHistory []domain.UsageRecord `json:"user_history,omitempty"`
}

func preview(c domain.Coupon) couponPreview {
	return couponPreview{Coupon: c}
}

func (h *CouponsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = helpers.UserID(r)
	}
	if userID == "" {
		helpers.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "You must be logged in to apply a coupon.",
		})
		return
	}

	eval, err := h.coupons.Apply(r.Context(), application.ApplyCouponCommand{
		Code:           req.CouponCode,
		UserID:         userID,
		OrderTotal:     req.OrderTotal,
		CartProductIDs: req.CartProductIDs,
		CartItems:      req.CartItems,
		Source:         req.Source,
	})
	if err != nil {
		status, body := statusOf(err)
		if status == http.StatusInternalServerError {
			writeError(w, r, err)
			return
		}
		failed := false
		body.Success = &failed
		helpers.WriteJSON(w, status, body)
		return
	}

	if eval.Outcome == domain.OutcomeNeedsPartnerInput {
		helpers.WriteJSON(w, http.StatusOK, map[string]any{
			"success":              true,
			"requiresPartnerInput": true,
			"message":              "This is a custom coupon. Please provide partner details.",
			"coupon":               preview(eval.Coupon),
		})
		return
	}

	msg := "Coupon applied successfully!"
	if eval.Coupon.Type == domain.CouponCustom && eval.Coupon.CustomRules != nil {
		msg = fmt.Sprintf("Custom coupon from %s applied!", eval.Coupon.CustomRules.PartnerName)
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  msg,
		"coupon":   preview(eval.Coupon),
		"discount": eval.Discount,
	})
}

func (h *CouponsHandler) Available(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = helpers.UserID(r)
	}
	coupons, err := h.coupons.Available(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, coupons)
}

type finalizeRequest struct {
	OrderID uuid.UUID `json:"orderId"`
}

func (h *CouponsHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := helpers.DecodeJSON(r.Body, &req); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.OrderID == uuid.Nil {
		helpers.HttpError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	applied, err := h.orders.FinalizeCouponUsage(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Coupon usage already recorded"
	if applied {
		msg = "Coupon usage recorded"
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"applied": applied, "message": msg})
}

func couponID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid coupon id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *CouponsHandler) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.ListCoupons(r.Context(), helpers.UserID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"coupons": coupons, "count": len(coupons)})
}

func (h *CouponsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}
	c, err := h.coupons.GetCoupon(r.Context(), helpers.UserID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, c)
}

func (h *CouponsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var c domain.Coupon
	if err := helpers.DecodeJSON(r.Body, &c); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	created, err := h.coupons.CreateCoupon(r.Context(), helpers.UserID(r), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, created)
}

func (h *CouponsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}
	var c domain.Coupon
	if err := helpers.DecodeJSON(r.Body, &c); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	updated, err := h.coupons.UpdateCoupon(r.Context(), helpers.UserID(r), id, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, updated)
}

func (h *CouponsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := couponID(w, r)
	if !ok {
		return
	}
	if err := h.coupons.DeleteCoupon(r.Context(), helpers.UserID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"message": "Coupon deleted successfully"})
}
