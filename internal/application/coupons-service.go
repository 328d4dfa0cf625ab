package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type CouponsService struct {
	coupons     CouponStore
	users       UserDirectory
	catalog     ProductCatalog
	pricing     *PricingEngine
	publicCodes []string
	clock       func() time.Time
}

func NewCouponsService(coupons CouponStore, users UserDirectory, catalog ProductCatalog, pricing *PricingEngine, publicCodes []string) *CouponsService {
	codes := make([]string, 0, len(publicCodes))
	for _, c := range publicCodes {
		if c = domain.NormalizeCode(c); c != "" {
			codes = append(codes, c)
		}
	}
	return &CouponsService{
		coupons:     coupons,
		users:       users,
		catalog:     catalog,
		pricing:     pricing,
		publicCodes: codes,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *CouponsService) WithClock(clock func() time.Time) *CouponsService {
	s.clock = func() time.Time { return clock().UTC() }
	return s
}

type ApplyCouponCommand struct {
	Code           string
	UserID         string
	OrderTotal     decimal.Decimal
	CartProductIDs []string
	CartItems      []CartLine
	Source         string
}

// Apply previews a coupon for a cart. When cart lines are supplied the total is
// recomputed server-side and the caller's OrderTotal is ignored.
func (s *CouponsService) Apply(ctx context.Context, cmd ApplyCouponCommand) (domain.Evaluation, error) {
	ctx, span := tracer.Start(ctx, "coupons.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("coupon.code", domain.NormalizeCode(cmd.Code)))

	if strings.TrimSpace(cmd.UserID) == "" {
		return domain.Evaluation{}, fmt.Errorf("%w: you must be logged in to apply a coupon", domain.ErrValidation)
	}
	user, err := s.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return domain.Evaluation{}, err
	}

	in := domain.EvaluationInput{
		User:           *user,
		OrderTotal:     domain.Round2(cmd.OrderTotal),
		CartProductIDs: cmd.CartProductIDs,
		Source:         strings.TrimSpace(cmd.Source),
	}

	if len(cmd.CartItems) > 0 {
		quote, err := s.pricing.Price(ctx, cmd.CartItems)
		if err != nil {
			return domain.Evaluation{}, err
		}
		if !quote.ItemsSubtotal.Equal(in.OrderTotal) {
			logger.Debug("client order total ignored", "client", in.OrderTotal.String(), "server", quote.ItemsSubtotal.String())
		}
		payable := quote.Payable()
		in.OrderTotal = quote.ItemsSubtotal
		in.PayableCap = &payable
		in.CartProductIDs = quote.ProductIDs
		in.CartCategories = quote.Categories
	} else {
		in.CartCategories = s.categoriesOf(ctx, cmd.CartProductIDs)
	}

	return s.evaluate(ctx, cmd.Code, in)
}

func (s *CouponsService) evaluate(ctx context.Context, code string, in domain.EvaluationInput) (domain.Evaluation, error) {
	normalized := domain.NormalizeCode(code)
	if normalized == "" {
		return domain.Evaluation{}, &domain.CouponRejectedError{Reason: domain.ReasonNotFound, Message: "Coupon code is required."}
	}
	coupon, err := s.coupons.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Evaluation{}, &domain.CouponRejectedError{Reason: domain.ReasonNotFound, Message: "Invalid or expired coupon code."}
		}
		return domain.Evaluation{}, err
	}
	if in.Now.IsZero() {
		in.Now = s.clock()
	}
	return domain.Evaluate(*coupon, in)
}

// categoriesOf looks up categories for preview requests that only carry product ids.
func (s *CouponsService) categoriesOf(ctx context.Context, productIDs []string) []string {
	var cats []string
	for _, id := range productIDs {
		p, err := s.catalog.GetProduct(ctx, id)
		if err != nil {
			continue
		}
		if p.Category != "" && !slices.Contains(cats, p.Category) {
			cats = append(cats, p.Category)
		}
	}
	return cats
}

// Available lists coupons the user could apply right now.
func (s *CouponsService) Available(ctx context.Context, userID string) ([]domain.Coupon, error) {
	now := s.clock()
	active, err := s.coupons.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	if userID = strings.TrimSpace(userID); userID != "" {
		user, err = s.users.GetUser(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	seen := make(map[uuid.UUID]struct{})
	out := make([]domain.Coupon, 0, len(active))
	for _, c := range active {
		if c.Type == domain.CouponCustom {
			continue
		}
		visible := slices.Contains(s.publicCodes, c.Code)
		if user != nil {
			if slices.Contains(c.ValidForUsers, user.ID) {
				visible = true
			}
			if c.Code == domain.BirthdayCode && user.BirthdayOn(now) {
				visible = true
			}
			if c.TimesUsedBy(user.ID) >= c.PerUserLimit() {
				visible = false
			}
		}
		if !visible {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		c.UserHistory = nil
		out = append(out, c)
	}
	return out, nil
}

func (s *CouponsService) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admins only", domain.ErrForbidden)
	}
	return nil
}

func (s *CouponsService) ListCoupons(ctx context.Context, actorID string) ([]domain.Coupon, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.coupons.List(ctx)
}

func (s *CouponsService) GetCoupon(ctx context.Context, actorID string, id uuid.UUID) (*domain.Coupon, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.coupons.GetByID(ctx, id)
}

func (s *CouponsService) CreateCoupon(ctx context.Context, actorID string, c domain.Coupon) (*domain.Coupon, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	c.Code = domain.NormalizeCode(c.Code)
	if c.Status == "" {
		c.Status = domain.CouponActive
	}
	if c.Usage.PerUserLimit < 1 {
		c.Usage.PerUserLimit = 1
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := s.clock()
	c.ID = uuid.New()
	c.UserHistory = nil
	c.Usage.TotalUsed = 0
	if c.ValidFrom.IsZero() {
		c.ValidFrom = now
	}
	c.CreatedAt, c.UpdatedAt = now, now
	if err := s.coupons.Create(ctx, &c); err != nil {
		return nil, err
	}
	logger.Info("coupon created", "code", c.Code, "actor", actorID)
	return &c, nil
}

// UpdateCoupon replaces the admin-editable fields. Usage counters and history
// only move through order finalization.
func (s *CouponsService) UpdateCoupon(ctx context.Context, actorID string, id uuid.UUID, patch domain.Coupon) (*domain.Coupon, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	current, err := s.coupons.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.Code = domain.NormalizeCode(patch.Code)
	updated.Description = patch.Description
	updated.Type = patch.Type
	updated.Value = patch.Value
	updated.MinOrderValue = patch.MinOrderValue
	updated.Status = patch.Status
	updated.Usage.TotalLimit = patch.Usage.TotalLimit
	updated.Usage.PerUserLimit = patch.Usage.PerUserLimit
	if updated.Usage.PerUserLimit < 1 {
		updated.Usage.PerUserLimit = 1
	}
	updated.ValidForUsers = patch.ValidForUsers
	updated.ValidFor = patch.ValidFor
	updated.CustomRules = patch.CustomRules
	updated.ExpiresOn = patch.ExpiresOn
	if !patch.ValidFrom.IsZero() {
		updated.ValidFrom = patch.ValidFrom
	}
	updated.UpdatedAt = s.clock()

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.coupons.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *CouponsService) DeleteCoupon(ctx context.Context, actorID string, id uuid.UUID) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.coupons.Delete(ctx, id)
}
