package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercentage  CouponType = "percentage"
	CouponFixedAmount CouponType = "fixed_amount"
	CouponCustom      CouponType = "custom"
)

func (t CouponType) Valid() bool {
	return t == CouponPercentage || t == CouponFixedAmount || t == CouponCustom
}

type CouponStatus string

const (
	CouponActive   CouponStatus = "active"
	CouponInactive CouponStatus = "inactive"
	CouponExpired  CouponStatus = "expired"
)

func (s CouponStatus) Valid() bool {
	return s == CouponActive || s == CouponInactive || s == CouponExpired
}

// BirthdayCode is the coupon code only redeemable on the buyer's birthday.
const BirthdayCode = "BIRTHDAY"

const defaultPerUserLimit = 1

type Coupon struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	Type          CouponType      `json:"type"`
	Value         decimal.Decimal `json:"value"`
	MinOrderValue decimal.Decimal `json:"min_order_value"`
	Status        CouponStatus    `json:"status"`
	Usage         CouponUsage     `json:"usage"`
	UserHistory   []UsageRecord   `json:"user_history,omitempty"`
	ValidForUsers []string        `json:"valid_for_users,omitempty"`
	ValidFor      Restriction     `json:"valid_for"`
	CustomRules   *CustomRules    `json:"custom_rules,omitempty"`
	ValidFrom     time.Time       `json:"valid_from"`
	ExpiresOn     *time.Time      `json:"expires_on,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type CouponUsage struct {
	TotalLimit   *int `json:"total_limit"`
	TotalUsed    int  `json:"total_used"`
	PerUserLimit int  `json:"per_user_limit"`
}

type UsageRecord struct {
	UserID    string `json:"user_id"`
	TimesUsed int    `json:"times_used"`
}

type Restriction struct {
	ProductIDs []string `json:"product_ids,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func (r Restriction) Empty() bool {
	return len(r.ProductIDs) == 0 && len(r.Categories) == 0
}

type CustomRules struct {
	PartnerName    string          `json:"partner_name"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	MinOrderValue  decimal.Decimal `json:"min_order_value"`
}

// NormalizeCode is how codes are stored and looked up.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c Coupon) PerUserLimit() int {
	if c.Usage.PerUserLimit < 1 {
		return defaultPerUserLimit
	}
	return c.Usage.PerUserLimit
}

// TimesUsedBy returns how often userID has redeemed the coupon.
func (c Coupon) TimesUsedBy(userID string) int {
	for _, h := range c.UserHistory {
		if h.UserID == userID {
			return h.TimesUsed
		}
	}
	return 0
}

func (c Coupon) ExpiredAt(now time.Time) bool {
	return c.ExpiresOn != nil && c.ExpiresOn.Before(now)
}

// Validate checks an admin-supplied coupon definition.
func (c Coupon) Validate() error {
	switch {
	case c.Code == "":
		return fmt.Errorf("%w: coupon code is required", ErrValidation)
	case strings.TrimSpace(c.Description) == "":
		return fmt.Errorf("%w: coupon description is required", ErrValidation)
	case !c.Type.Valid():
		return fmt.Errorf("%w: unknown coupon type %q", ErrValidation, c.Type)
	case !c.Status.Valid():
		return fmt.Errorf("%w: unknown coupon status %q", ErrValidation, c.Status)
	case c.Value.IsNegative() || c.MinOrderValue.IsNegative():
		return fmt.Errorf("%w: coupon amounts must not be negative", ErrValidation)
	case c.Usage.TotalLimit != nil && *c.Usage.TotalLimit < 0:
		return fmt.Errorf("%w: total limit must not be negative", ErrValidation)
	case c.Usage.TotalUsed < 0:
		return fmt.Errorf("%w: total used must not be negative", ErrValidation)
	case c.Type == CouponPercentage && c.Value.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: percentage must not exceed 100", ErrValidation)
	case c.Type == CouponCustom && (c.CustomRules == nil || strings.TrimSpace(c.CustomRules.PartnerName) == ""):
		return fmt.Errorf("%w: custom coupons need a partner name", ErrValidation)
	}
	return nil
}

// EvaluationInput is everything the coupon rules look at. OrderTotal must be
// the server-computed pre-discount amount.
type EvaluationInput struct {
	User           User
	OrderTotal     decimal.Decimal
	PayableCap     *decimal.Decimal
	CartProductIDs []string
	CartCategories []string
	Source         string
	Now            time.Time
}

type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeNeedsPartnerInput Outcome = "needs_partner_input"
)

type Evaluation struct {
	Outcome  Outcome
	Coupon   Coupon
	Discount decimal.Decimal
}

// Snapshot freezes the evaluated coupon for storage on an order.
func (e Evaluation) Snapshot() *AppliedCoupon {
	return &AppliedCoupon{
		CouponID:      e.Coupon.ID,
		Code:          e.Coupon.Code,
		Description:   e.Coupon.Description,
		DiscountValue: e.Discount,
		Type:          e.Coupon.Type,
	}
}

// Evaluate runs the eligibility rules in order and quantifies the discount.
// It never mutates usage counters.
func Evaluate(c Coupon, in EvaluationInput) (Evaluation, error) {
	if c.Status != CouponActive {
		return Evaluation{}, rejectCoupon(ReasonInactive, "This coupon is not active.")
	}
	if c.ExpiredAt(in.Now) {
		return Evaluation{}, rejectCoupon(ReasonExpired, "Invalid or expired coupon code.")
	}

	if c.Code == BirthdayCode {
		if in.User.DOB == nil {
			return Evaluation{}, rejectCoupon(ReasonBirthdayOnly, "You must have a birthdate set to use this coupon.")
		}
		if !in.User.BirthdayOn(in.Now) {
			return Evaluation{}, rejectCoupon(ReasonBirthdayOnly, "This coupon is only valid on your birthday.")
		}
	}

	if len(c.ValidForUsers) > 0 && !slices.Contains(c.ValidForUsers, in.User.ID) {
		return Evaluation{}, rejectCoupon(ReasonNotEligibleUser, "This coupon is not valid for you.")
	}

	if !c.ValidFor.Empty() && !intersects(c.ValidFor.ProductIDs, in.CartProductIDs) && !intersects(c.ValidFor.Categories, in.CartCategories) {
		return Evaluation{}, rejectCoupon(ReasonNotEligibleProducts, "This coupon is not valid for any items in your cart.")
	}

	if c.Type == CouponCustom {
		if strings.TrimSpace(in.Source) == "" {
			return Evaluation{Outcome: OutcomeNeedsPartnerInput, Coupon: c, Discount: decimal.Zero}, nil
		}
		rules := c.CustomRules
		if rules == nil || rules.PartnerName == "" || in.Source != rules.PartnerName || in.OrderTotal.LessThan(rules.MinOrderValue) {
			return Evaluation{}, rejectCoupon(ReasonInvalidPartner, "The provided partner name is not valid for this coupon or custom conditions were not met.")
		}
	}

	if c.Usage.TotalLimit != nil && c.Usage.TotalUsed >= *c.Usage.TotalLimit {
		return Evaluation{}, rejectCoupon(ReasonUsageLimitReached, "This coupon has reached its maximum usage limit.")
	}
	if c.TimesUsedBy(in.User.ID) >= c.PerUserLimit() {
		return Evaluation{}, rejectCoupon(ReasonPerUserLimitReached, "You have already used this coupon to its limit.")
	}

	if c.Type != CouponCustom && in.OrderTotal.LessThan(c.MinOrderValue) {
		return Evaluation{}, rejectCoupon(ReasonMinOrderNotMet,
			fmt.Sprintf("A minimum order value of %s is required for this coupon.", c.MinOrderValue.StringFixed(2)))
	}

	return Evaluation{Outcome: OutcomeApplied, Coupon: c, Discount: Discount(c, in.OrderTotal, in.PayableCap)}, nil
}

// Discount quantifies a coupon against the qualifying total, capped at the payable amount.
func Discount(c Coupon, qualifying decimal.Decimal, payable *decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Type {
	case CouponPercentage:
		d = Round2(qualifying.Mul(c.Value).Div(decimal.NewFromInt(100)))
	case CouponFixedAmount:
		d = Round2(c.Value)
	case CouponCustom:
		if c.CustomRules != nil {
			d = Round2(c.CustomRules.DiscountAmount)
		}
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if payable != nil && d.GreaterThan(*payable) {
		return Round2(*payable)
	}
	return d
}

func intersects(allowed, have []string) bool {
	for _, h := range have {
		if slices.Contains(allowed, h) {
			return true
		}
	}
	return false
}
