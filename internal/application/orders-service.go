package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const defaultListLimit = 100

type OrdersServiceDeps struct {
	Orders  OrderStore
	Coupons CouponStore
	Users   UserDirectory
	Pricing *PricingEngine
	Engine  *CouponsService
	Clock   func() time.Time
	NewID   func() uuid.UUID
}

type OrdersService struct {
	orders  OrderStore
	coupons CouponStore
	users   UserDirectory
	pricing *PricingEngine
	engine  *CouponsService
	clock   func() time.Time
	newID   func() uuid.UUID
}

func NewOrdersService(deps OrdersServiceDeps) *OrdersService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.New
	}
	return &OrdersService{
		orders:  deps.Orders,
		coupons: deps.Coupons,
		users:   deps.Users,
		pricing: deps.Pricing,
		engine:  deps.Engine,
		clock:   func() time.Time { return clock().UTC() },
		newID:   newID,
	}
}

type CreateOrderCommand struct {
	BuyerID         string
	Items           []CartLine
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
	CouponCode      string
	CouponSource    string
	// ClientTotals are whatever totals the client computed. They are compared
	// for logging and never stored.
	ClientTotals map[string]decimal.Decimal
}

// CreateOrder prices the cart, applies the coupon and persists the order with
// its coupon usage as one unit. Nothing is stored when any step fails.
func (s *OrdersService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Create")
	defer span.End()

	buyerID := strings.TrimSpace(cmd.BuyerID)
	if buyerID == "" {
		return nil, fmt.Errorf("%w: buyer is required", domain.ErrValidation)
	}
	if field := cmd.ShippingAddress.Missing(); field != "" {
		return nil, fmt.Errorf("%w: shipping address %s is required", domain.ErrValidation, field)
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentCOD
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: payment method must be COD or Online", domain.ErrValidation)
	}

	quote, err := s.pricing.Price(ctx, cmd.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	order := &domain.Order{
		ID:              s.newID(),
		BuyerID:         buyerID,
		ShippingAddress: cmd.ShippingAddress,
		DealerGroups:    quote.Groups,
		PaymentMethod:   method,
		ItemsSubtotal:   quote.ItemsSubtotal,
		TotalSavings:    quote.TotalSavings,
		DeliveryCharge:  quote.DeliveryCharge,
		CouponDiscount:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range order.DealerGroups {
		order.DealerGroups[i].UpdatedAt = now
	}
	if method == domain.PaymentOnline {
		order.PaidAt = &now
	}

	var redemption *domain.Redemption
	if code := strings.TrimSpace(cmd.CouponCode); code != "" {
		eval, err := s.applyCoupon(ctx, buyerID, code, cmd.CouponSource, quote, now)
		if err != nil {
			return nil, err
		}
		order.Coupon = eval.Snapshot()
		order.CouponDiscount = eval.Discount
		redemption = &domain.Redemption{OrderID: order.ID, CouponID: eval.Coupon.ID, UserID: buyerID}
		span.SetAttributes(attribute.String("coupon.code", eval.Coupon.Code))
	}

	domain.EnforceTotals(order)
	order.OverallStatus = domain.OverallStatusOf(order.DealerGroups)
	s.logClientTotals(order, cmd.ClientTotals)

	if err := s.orders.CreateOrder(ctx, order, redemption); err != nil {
		logger.Warn("create order failed", "buyer", buyerID, "err", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID.String()), attribute.Int("order.groups", len(order.DealerGroups)))
	logger.Info("order created", "order_id", order.ID, "groups", len(order.DealerGroups), "grand_total", order.GrandTotal.String())
	return order, nil
}

func (s *OrdersService) applyCoupon(ctx context.Context, buyerID, code, source string, quote Quote, now time.Time) (domain.Evaluation, error) {
	user, err := s.users.GetUser(ctx, buyerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Evaluation{}, fmt.Errorf("%w: unknown buyer", domain.ErrForbidden)
		}
		return domain.Evaluation{}, err
	}
	payable := quote.Payable()
	eval, err := s.engine.evaluate(ctx, code, domain.EvaluationInput{
		User:           *user,
		OrderTotal:     quote.ItemsSubtotal,
		PayableCap:     &payable,
		CartProductIDs: quote.ProductIDs,
		CartCategories: quote.Categories,
		Source:         strings.TrimSpace(source),
		Now:            now,
	})
	if err != nil {
		return domain.Evaluation{}, err
	}
	if eval.Outcome == domain.OutcomeNeedsPartnerInput {
		return domain.Evaluation{}, &domain.CouponRejectedError{
			Reason:  domain.ReasonNeedsPartnerInput,
			Message: "This is a custom coupon. Please provide partner details.",
		}
	}
	return eval, nil
}

func (s *OrdersService) logClientTotals(o *domain.Order, client map[string]decimal.Decimal) {
	server := map[string]decimal.Decimal{
		"itemsSubtotal":  o.ItemsSubtotal,
		"totalSavings":   o.TotalSavings,
		"deliveryCharge": o.DeliveryCharge,
		"couponDiscount": o.CouponDiscount,
		"grandTotal":     o.GrandTotal,
	}
	for k, v := range client {
		if want, ok := server[k]; ok && !want.Equal(domain.Round2(v)) {
			logger.Debug("client total disagrees with server", "field", k, "client", v.String(), "server", want.String())
		}
	}
}

// GetOrder returns the order to its buyer, an admin, or a dealer with a group in it.
func (s *OrdersService) GetOrder(ctx context.Context, actorID string, id uuid.UUID) (*domain.Order, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || order.BuyerID == actor.ID || order.Group(actor.ID) != nil {
		return order, nil
	}
	return nil, fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
}

func (s *OrdersService) ListMine(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, fmt.Errorf("%w: caller identity is required", domain.ErrForbidden)
	}
	return s.orders.ListByBuyer(ctx, buyerID, defaultListLimit)
}

// DealerOrder is an order seen from one dealer, with that dealer's coupon share.
type DealerOrder struct {
	Order      domain.Order      `json:"order"`
	Allocation domain.Allocation `json:"allocation"`
}

func (s *OrdersService) ListForDealer(ctx context.Context, actorID string) ([]DealerOrder, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleDealer && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: dealers only", domain.ErrForbidden)
	}
	orders, err := s.orders.ListByDealer(ctx, actor.ID, defaultListLimit)
	if err != nil {
		return nil, err
	}
	out := make([]DealerOrder, 0, len(orders))
	for _, o := range orders {
		alloc, _ := domain.AllocationFor(o, actor.ID)
		out = append(out, DealerOrder{Order: o, Allocation: alloc})
	}
	return out, nil
}

// Settlement prorates the order's coupon discount across dealer groups. Dealers
// only see their own allocation.
func (s *OrdersService) Settlement(ctx context.Context, actorID string, id uuid.UUID) ([]domain.Allocation, error) {
	order, err := s.GetOrder(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	all := domain.Prorate(order.DealerGroups, order.CouponDiscount)
	if order.BuyerID == actorID {
		return all, nil
	}
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return all, nil
	}
	for _, a := range all {
		if a.DealerID == actor.ID {
			return []domain.Allocation{a}, nil
		}
	}
	return nil, nil
}

// FinalizeCouponUsage records the order's coupon usage. Repeated calls for the
// same order are no-ops and report false.
func (s *OrdersService) FinalizeCouponUsage(ctx context.Context, orderID uuid.UUID) (bool, error) {
	ctx, span := tracer.Start(ctx, "orders.FinalizeCouponUsage")
	defer span.End()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Coupon == nil {
		return false, nil
	}
	applied, err := s.coupons.Finalize(ctx, domain.Redemption{
		OrderID:  order.ID,
		CouponID: order.Coupon.CouponID,
		UserID:   order.BuyerID,
	})
	if err != nil {
		return false, err
	}
	if applied {
		logger.Info("coupon usage finalized", "order_id", order.ID, "code", order.Coupon.Code)
	}
	return applied, nil
}
