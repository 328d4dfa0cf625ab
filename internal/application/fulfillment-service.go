package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type FulfillmentService struct {
	orders OrderStore
	users  UserDirectory
	pins   domain.PINSource
	clock  func() time.Time
}

func NewFulfillmentService(orders OrderStore, users UserDirectory) *FulfillmentService {
	return &FulfillmentService{
		orders: orders,
		users:  users,
		pins:   domain.RandomPIN,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithPINSource replaces the delivery PIN generator.
func (s *FulfillmentService) WithPINSource(pins domain.PINSource) *FulfillmentService {
	s.pins = pins
	return s
}

func (s *FulfillmentService) WithClock(clock func() time.Time) *FulfillmentService {
	s.clock = func() time.Time { return clock().UTC() }
	return s
}

type ChangeStatusCommand struct {
	OrderID  uuid.UUID
	DealerID string
	ActorID  string
	Status   string
	Reason   string
}

// ChangeStatus moves one dealer group to a new status and recomputes the
// order's overall status in the same write.
func (s *FulfillmentService) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.ChangeStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", cmd.OrderID.String()),
		attribute.String("dealer.id", cmd.DealerID),
		attribute.String("group.target", cmd.Status),
	)

	target, ok := domain.ParseGroupStatus(cmd.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, cmd.Status)
	}
	if _, err := authorizeGroupActor(ctx, s.users, cmd.ActorID, cmd.DealerID); err != nil {
		return nil, err
	}

	order, err := s.orders.MutateGroup(ctx, cmd.OrderID, cmd.DealerID, func(o *domain.Order, g *domain.DealerGroup) (domain.Event, error) {
		prev := g.Status
		now := s.clock()
		if err := domain.TransitionGroup(g, target, cmd.Reason, s.pins, now); err != nil {
			return domain.Event{}, err
		}
		o.OverallStatus = domain.OverallStatusOf(o.DealerGroups)
		o.UpdatedAt = now
		return domain.GroupStatusEvent(*o, cmd.DealerID, prev, cmd.ActorID), nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("dealer group status changed", "order_id", cmd.OrderID, "dealer", cmd.DealerID,
		"status", target, "overall", order.OverallStatus)
	return order, nil
}

type ConfirmDeliveryCommand struct {
	OrderID  uuid.UUID
	DealerID string
	ActorID  string
	PIN      string
}

// ConfirmDelivery marks the group Delivered when the buyer's PIN matches.
func (s *FulfillmentService) ConfirmDelivery(ctx context.Context, cmd ConfirmDeliveryCommand) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.ConfirmDelivery")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", cmd.OrderID.String()), attribute.String("dealer.id", cmd.DealerID))

	if strings.TrimSpace(cmd.PIN) == "" {
		return nil, fmt.Errorf("%w: delivery pin is required", domain.ErrValidation)
	}
	if _, err := authorizeGroupActor(ctx, s.users, cmd.ActorID, cmd.DealerID); err != nil {
		return nil, err
	}

	order, err := s.orders.MutateGroup(ctx, cmd.OrderID, cmd.DealerID, func(o *domain.Order, g *domain.DealerGroup) (domain.Event, error) {
		prev := g.Status
		now := s.clock()
		if err := domain.ConfirmDelivery(g, cmd.PIN, now); err != nil {
			return domain.Event{}, err
		}
		o.OverallStatus = domain.OverallStatusOf(o.DealerGroups)
		o.UpdatedAt = now
		return domain.GroupStatusEvent(*o, cmd.DealerID, prev, cmd.ActorID), nil
	})
	if err != nil {
		logger.Warn("delivery confirmation failed", "order_id", cmd.OrderID, "dealer", cmd.DealerID, "err", err)
		return nil, err
	}
	logger.Info("dealer group delivered", "order_id", cmd.OrderID, "dealer", cmd.DealerID, "overall", order.OverallStatus)
	return order, nil
}
