// Package inmem holds in-memory implementations of the application ports.
// They mirror the Postgres repository semantics closely enough for service
// and handler tests.
package inmem

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
)

type Store struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]domain.Order
	coupons     map[uuid.UUID]domain.Coupon
	products    map[string]domain.Product
	users       map[string]domain.User
	redemptions map[uuid.UUID]domain.Redemption
	events      []domain.Event

	// FailCreate, when set, is returned by CreateOrder before anything is stored.
	FailCreate error
}

var (
	_ application.OrderStore     = (*Store)(nil)
	_ application.CouponStore    = (*Store)(nil)
	_ application.ProductCatalog = (*Store)(nil)
	_ application.UserDirectory  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		orders:      make(map[uuid.UUID]domain.Order),
		coupons:     make(map[uuid.UUID]domain.Coupon),
		products:    make(map[string]domain.Product),
		users:       make(map[string]domain.User),
		redemptions: make(map[uuid.UUID]domain.Redemption),
	}
}

func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) PutCoupon(c domain.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.ID] = cloneCoupon(c)
}

// Events returns a copy of every recorded outbox event.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return &p, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return &u, nil
}

func (s *Store) CreateOrder(_ context.Context, o *domain.Order, r *domain.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	if _, dup := s.orders[o.ID]; dup {
		return fmt.Errorf("%w: order %s exists", domain.ErrConflict, o.ID)
	}
	domain.EnforceTotals(o)

	var (
		couponAfter domain.Coupon
		redeem      bool
	)
	if r != nil {
		c, err := s.redeemLocked(*r)
		if err != nil {
			return err
		}
		couponAfter, redeem = c, true
	}

	s.orders[o.ID] = cloneOrder(*o)
	s.events = append(s.events, domain.OrderCreatedEvent(*o))
	if redeem {
		s.coupons[couponAfter.ID] = couponAfter
		s.redemptions[r.OrderID] = *r
		s.events = append(s.events, domain.CouponFinalizedEvent(*r, o.CreatedAt))
	}
	return nil
}

// redeemLocked computes the coupon after one more use without storing it.
func (s *Store) redeemLocked(r domain.Redemption) (domain.Coupon, error) {
	c, ok := s.coupons[r.CouponID]
	if !ok {
		return domain.Coupon{}, fmt.Errorf("%w: coupon %s", domain.ErrNotFound, r.CouponID)
	}
	c = cloneCoupon(c)
	if c.Usage.TotalLimit != nil && c.Usage.TotalUsed >= *c.Usage.TotalLimit {
		return domain.Coupon{}, &domain.CouponRejectedError{Reason: domain.ReasonUsageLimitReached, Message: "This coupon has reached its usage limit."}
	}
	found := false
	for i := range c.UserHistory {
		if c.UserHistory[i].UserID == r.UserID {
			if c.UserHistory[i].TimesUsed >= c.PerUserLimit() {
				return domain.Coupon{}, &domain.CouponRejectedError{Reason: domain.ReasonPerUserLimitReached, Message: "You have already used this coupon the maximum number of times."}
			}
			c.UserHistory[i].TimesUsed++
			found = true
		}
	}
	if !found {
		c.UserHistory = append(c.UserHistory, domain.UsageRecord{UserID: r.UserID, TimesUsed: 1})
	}
	c.Usage.TotalUsed++
	return c, nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	c := cloneOrder(o)
	return &c, nil
}

func (s *Store) ListByBuyer(_ context.Context, buyerID string, limit int) ([]domain.Order, error) {
	return s.list(limit, func(o domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *Store) ListByDealer(_ context.Context, dealerID string, limit int) ([]domain.Order, error) {
	return s.list(limit, func(o domain.Order) bool { return o.Group(dealerID) != nil }), nil
}

func (s *Store) list(limit int, keep func(domain.Order) bool) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) MutateGroup(_ context.Context, id uuid.UUID, dealerID string, mutate application.GroupMutation) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	o := cloneOrder(stored)
	g := o.Group(dealerID)
	if g == nil {
		return nil, fmt.Errorf("%w: dealer group %s", domain.ErrNotFound, dealerID)
	}
	ev, err := mutate(&o, g)
	if err != nil {
		return nil, err
	}
	s.orders[id] = cloneOrder(o)
	s.events = append(s.events, ev)
	return &o, nil
}

func (s *Store) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code = domain.NormalizeCode(code)
	for _, c := range s.coupons {
		if c.Code == code {
			cc := cloneCoupon(c)
			return &cc, nil
		}
	}
	return nil, fmt.Errorf("%w: coupon %s", domain.ErrNotFound, code)
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return nil, fmt.Errorf("%w: coupon %s", domain.ErrNotFound, id)
	}
	cc := cloneCoupon(c)
	return &cc, nil
}

func (s *Store) List(_ context.Context) ([]domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, cloneCoupon(c))
	}
	slices.SortFunc(out, func(a, b domain.Coupon) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (s *Store) ListActive(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	all, _ := s.List(ctx)
	out := all[:0]
	for _, c := range all {
		if c.Status == domain.CouponActive && !c.ValidFrom.After(now) && !c.ExpiredAt(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, c *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.coupons {
		if existing.Code == c.Code {
			return fmt.Errorf("%w: coupon code %s already exists", domain.ErrConflict, c.Code)
		}
	}
	s.coupons[c.ID] = cloneCoupon(*c)
	return nil
}

func (s *Store) Update(_ context.Context, c *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.coupons[c.ID]
	if !ok {
		return fmt.Errorf("%w: coupon %s", domain.ErrNotFound, c.ID)
	}
	for id, existing := range s.coupons {
		if id != c.ID && existing.Code == c.Code {
			return fmt.Errorf("%w: coupon code %s already exists", domain.ErrConflict, c.Code)
		}
	}
	next := cloneCoupon(*c)
	next.Usage.TotalUsed = current.Usage.TotalUsed
	next.UserHistory = current.UserHistory
	s.coupons[c.ID] = next
	return nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[id]; !ok {
		return fmt.Errorf("%w: coupon %s", domain.ErrNotFound, id)
	}
	delete(s.coupons, id)
	return nil
}

func (s *Store) Finalize(_ context.Context, r domain.Redemption) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.redemptions[r.OrderID]; done {
		return false, nil
	}
	c, err := s.redeemLocked(r)
	if err != nil {
		return false, err
	}
	s.coupons[c.ID] = c
	s.redemptions[r.OrderID] = r
	s.events = append(s.events, domain.CouponFinalizedEvent(r, time.Now().UTC()))
	return true, nil
}

func cloneOrder(o domain.Order) domain.Order {
	if o.Coupon != nil {
		c := *o.Coupon
		o.Coupon = &c
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	groups := make([]domain.DealerGroup, len(o.DealerGroups))
	for i, g := range o.DealerGroups {
		if g.DeliveryPIN != nil {
			p := *g.DeliveryPIN
			g.DeliveryPIN = &p
		}
		if g.CancellationReason != nil {
			r := *g.CancellationReason
			g.CancellationReason = &r
		}
		g.Items = slices.Clone(g.Items)
		groups[i] = g
	}
	o.DealerGroups = groups
	return o
}

func cloneCoupon(c domain.Coupon) domain.Coupon {
	c.UserHistory = slices.Clone(c.UserHistory)
	c.ValidForUsers = slices.Clone(c.ValidForUsers)
	c.ValidFor.ProductIDs = slices.Clone(c.ValidFor.ProductIDs)
	c.ValidFor.Categories = slices.Clone(c.ValidFor.Categories)
	if c.Usage.TotalLimit != nil {
		l := *c.Usage.TotalLimit
		c.Usage.TotalLimit = &l
	}
	if c.CustomRules != nil {
		r := *c.CustomRules
		c.CustomRules = &r
	}
	return c
}
