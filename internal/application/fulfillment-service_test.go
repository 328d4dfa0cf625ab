package application_test

import (
	"context"
	"strings"
	"testing"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeOrder(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), createCmd())
	require.NoError(t, err)
	return o
}

func advance(t *testing.T, f *fixture, id uuid.UUID, dealer string, statuses ...domain.GroupStatus) *domain.Order {
	t.Helper()
	var o *domain.Order
	for _, st := range statuses {
		var err error
		o, err = f.fulfillment.ChangeStatus(context.Background(), application.ChangeStatusCommand{
			OrderID: id, DealerID: dealer, ActorID: dealer, Status: string(st),
		})
		require.NoError(t, err, "move %s to %s", dealer, st)
	}
	return o
}

func TestFulfillment_DeliveryWithPIN(t *testing.T) {
	f := newFixture(t)
	o := placeOrder(t, f)

	got := advance(t, f, o.ID, "dealer-1",
		domain.StatusConfirmed, domain.StatusPacked, domain.StatusShipped, domain.StatusOutForDelivery)

	g := got.Group("dealer-1")
	require.NotNil(t, g.DeliveryPIN)
	assert.Equal(t, "4821", *g.DeliveryPIN)
	assert.Equal(t, domain.OverallPartiallyShipped, got.OverallStatus)
	assert.Equal(t, domain.StatusPending, got.Group("dealer-2").Status)

	_, err := f.fulfillment.ConfirmDelivery(context.Background(), application.ConfirmDeliveryCommand{
		OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", PIN: "0000",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPIN)

	stored, err := f.store.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOutForDelivery, stored.Group("dealer-1").Status)

	got, err = f.fulfillment.ConfirmDelivery(context.Background(), application.ConfirmDeliveryCommand{
		OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", PIN: " 4821 ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, got.Group("dealer-1").Status)
	assert.Nil(t, got.Group("dealer-1").DeliveryPIN)
	assert.Equal(t, domain.OverallPartiallyShipped, got.OverallStatus)

	events := f.store.Events()
	assert.Equal(t, domain.EventGroupDelivered, events[len(events)-1].Type)
}

func TestFulfillment_OverallStatusFollowsGroups(t *testing.T) {
	f := newFixture(t)
	o := placeOrder(t, f)

	got := advance(t, f, o.ID, "dealer-1", domain.StatusConfirmed, domain.StatusPacked, domain.StatusShipped)
	assert.Equal(t, domain.OverallPartiallyShipped, got.OverallStatus)

	got = advance(t, f, o.ID, "dealer-2", domain.StatusConfirmed, domain.StatusPacked, domain.StatusShipped)
	assert.Equal(t, domain.OverallShipped, got.OverallStatus)

	got, err := f.fulfillment.ChangeStatus(context.Background(), application.ChangeStatusCommand{
		OrderID: o.ID, DealerID: "dealer-2", ActorID: "admin", Status: string(domain.StatusCancelled),
		Reason: strings.Repeat("word ", domain.MinCancelReasonWords),
	})
	require.NoError(t, err)
	require.NotNil(t, got.Group("dealer-2").CancellationReason)

	advance(t, f, o.ID, "dealer-1", domain.StatusOutForDelivery)
	got, err = f.fulfillment.ConfirmDelivery(context.Background(), application.ConfirmDeliveryCommand{
		OrderID: o.ID, DealerID: "dealer-1", ActorID: "admin", PIN: "4821",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OverallCompleted, got.OverallStatus)
}

func TestFulfillment_Rejections(t *testing.T) {
	f := newFixture(t)
	o := placeOrder(t, f)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  application.ChangeStatusCommand
		want error
	}{
		{"other dealer", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-2", Status: "Confirmed"}, domain.ErrForbidden},
		{"buyer", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", ActorID: "buyer", Status: "Confirmed"}, domain.ErrForbidden},
		{"anonymous", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", Status: "Confirmed"}, domain.ErrForbidden},
		{"unknown status", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", Status: "Teleported"}, domain.ErrValidation},
		{"skip ahead", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", Status: "Shipped"}, domain.ErrValidation},
		{"delivered directly", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", Status: "Delivered"}, domain.ErrValidation},
		{"short cancel reason", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", Status: "Cancelled", Reason: "out of stock"}, domain.ErrValidation},
		{"dealer without group", application.ChangeStatusCommand{OrderID: o.ID, DealerID: "dealer-3", ActorID: "dealer-3", Status: "Confirmed"}, domain.ErrNotFound},
		{"missing order", application.ChangeStatusCommand{OrderID: uuid.New(), DealerID: "dealer-1", ActorID: "dealer-1", Status: "Confirmed"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.fulfillment.ChangeStatus(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Group("dealer-1").Status)
	assert.Len(t, f.store.Events(), 1)
}

func TestFulfillment_ConfirmBeforeOutForDelivery(t *testing.T) {
	f := newFixture(t)
	o := placeOrder(t, f)

	_, err := f.fulfillment.ConfirmDelivery(context.Background(), application.ConfirmDeliveryCommand{
		OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1", PIN: "4821",
	})
	assert.ErrorIs(t, err, domain.ErrNotOutForDelivery)

	_, err = f.fulfillment.ConfirmDelivery(context.Background(), application.ConfirmDeliveryCommand{
		OrderID: o.ID, DealerID: "dealer-1", ActorID: "dealer-1",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestFulfillment_CancelledGroupIsTerminal(t *testing.T) {
	f := newFixture(t)
	o := placeOrder(t, f)
	reason := "the buyer asked us to cancel this order because it was a duplicate"

	_, err := f.fulfillment.ChangeStatus(context.Background(), application.ChangeStatusCommand{
		OrderID: o.ID, DealerID: "dealer-2", ActorID: "dealer-2", Status: "Cancelled", Reason: reason,
	})
	require.NoError(t, err)

	_, err = f.fulfillment.ChangeStatus(context.Background(), application.ChangeStatusCommand{
		OrderID: o.ID, DealerID: "dealer-2", ActorID: "dealer-2", Status: "Confirmed",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
