package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"
)

type GroupStatus string

const (
	StatusPending        GroupStatus = "Pending"
	StatusConfirmed      GroupStatus = "Confirmed"
	StatusPacked         GroupStatus = "Packed"
	StatusShipped        GroupStatus = "Shipped"
	StatusOutForDelivery GroupStatus = "Out for Delivery"
	StatusDelivered      GroupStatus = "Delivered"
	StatusCancelled      GroupStatus = "Cancelled"
)

var (
	ErrNotOutForDelivery = fmt.Errorf("%w: order is not out for delivery", ErrValidation)
	ErrInvalidPIN        = fmt.Errorf("%w: invalid delivery pin", ErrValidation)
)

// MinCancelReasonWords is the shortest cancellation reason a dealer may submit.
const MinCancelReasonWords = 10

var groupTransitions = map[GroupStatus][]GroupStatus{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPacked, StatusCancelled},
	StatusPacked:         {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusCancelled},
}

func ParseGroupStatus(s string) (GroupStatus, bool) {
	switch st := GroupStatus(strings.TrimSpace(s)); st {
	case StatusPending, StatusConfirmed, StatusPacked, StatusShipped,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s GroupStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether a plain status change from current to target is allowed.
// Delivered is never reachable this way; it needs ConfirmDelivery.
func CanTransition(current, target GroupStatus) bool {
	for _, next := range groupTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// PINSource yields fresh delivery PINs.
type PINSource func() (string, error)

// RandomPIN draws a 4-digit PIN in 1000..9999.
func RandomPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate delivery pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// TransitionGroup applies a status change to g in place.
func TransitionGroup(g *DealerGroup, target GroupStatus, reason string, pins PINSource, now time.Time) error {
	if g.Status.Terminal() {
		return fmt.Errorf("%w: dealer group is already %s", ErrValidation, g.Status)
	}
	if target == StatusDelivered {
		return fmt.Errorf("%w: delivery must be confirmed with the delivery pin", ErrValidation)
	}
	if !CanTransition(g.Status, target) {
		return fmt.Errorf("%w: cannot move dealer group from %s to %s", ErrValidation, g.Status, target)
	}

	var (
		pin          *string
		cancelReason *string
	)
	switch target {
	case StatusOutForDelivery:
		if pins == nil {
			pins = RandomPIN
		}
		p, err := pins()
		if err != nil {
			return err
		}
		pin = &p
	case StatusCancelled:
		reason = strings.TrimSpace(reason)
		if len(strings.Fields(reason)) < MinCancelReasonWords {
			return fmt.Errorf("%w: cancellation reason must have at least %d words", ErrValidation, MinCancelReasonWords)
		}
		cancelReason = &reason
	}

	g.Status = target
	g.DeliveryPIN = pin
	g.CancellationReason = cancelReason
	g.UpdatedAt = now
	return nil
}

// ConfirmDelivery completes handoff when pin matches the group's issued PIN.
func ConfirmDelivery(g *DealerGroup, pin string, now time.Time) error {
	if g.Status != StatusOutForDelivery {
		return ErrNotOutForDelivery
	}
	if g.DeliveryPIN == nil || subtle.ConstantTimeCompare([]byte(*g.DeliveryPIN), []byte(strings.TrimSpace(pin))) != 1 {
		return ErrInvalidPIN
	}
	g.Status = StatusDelivered
	g.DeliveryPIN = nil
	g.UpdatedAt = now
	return nil
}

var shippedOrLater = map[GroupStatus]bool{
	StatusShipped:        true,
	StatusOutForDelivery: true,
	StatusDelivered:      true,
	StatusCancelled:      true,
}

// OverallStatusOf derives the order status from the full set of group statuses.
func OverallStatusOf(groups []DealerGroup) OverallStatus {
	if len(groups) == 0 {
		return OverallPending
	}
	allFinal, allShipped, anyShipped, anyOpen := true, true, false, false
	for _, g := range groups {
		if !g.Status.Terminal() {
			allFinal = false
		}
		if shippedOrLater[g.Status] {
			anyShipped = true
		} else {
			allShipped = false
			anyOpen = true
		}
	}
	switch {
	case allFinal:
		return OverallCompleted
	case allShipped:
		return OverallShipped
	case anyShipped && anyOpen:
		return OverallPartiallyShipped
	}
	return OverallPending
}
