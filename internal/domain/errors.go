package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input: cart lines, missing variants, bad transitions.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing product, order, coupon or dealer group.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an actor that may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a lost compare-and-swap or a duplicate unique key.
	ErrConflict = errors.New("conflict")
)

type CouponReason string

const (
	ReasonNotFound            CouponReason = "not_found"
	ReasonInactive            CouponReason = "inactive"
	ReasonExpired             CouponReason = "expired"
	ReasonBirthdayOnly        CouponReason = "birthday_only"
	ReasonNotEligibleUser     CouponReason = "not_eligible_user"
	ReasonNotEligibleProducts CouponReason = "not_eligible_products"
	ReasonInvalidPartner      CouponReason = "invalid_partner_source"
	ReasonUsageLimitReached   CouponReason = "usage_limit_reached"
	ReasonPerUserLimitReached CouponReason = "per_user_limit_reached"
	ReasonMinOrderNotMet      CouponReason = "min_order_not_met"
	ReasonNeedsPartnerInput   CouponReason = "needs_partner_input"
)

// CouponRejectedError carries a machine-readable reason next to the user-facing message.
type CouponRejectedError struct {
	Reason  CouponReason
	Message string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon rejected (%s): %s", e.Reason, e.Message)
}

func rejectCoupon(reason CouponReason, msg string) error {
	return &CouponRejectedError{Reason: reason, Message: msg}
}

// CouponRejection unwraps err into a rejection, if it is one.
func CouponRejection(err error) (*CouponRejectedError, bool) {
	var rej *CouponRejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
