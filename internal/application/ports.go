package application

import (
	"context"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
)

// ProductCatalog resolves live catalog products. Missing products yield domain.ErrNotFound.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// UserDirectory resolves users for coupon eligibility and actor checks.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// GroupMutation changes one dealer group of a locked order and returns the event to record.
type GroupMutation func(o *domain.Order, g *domain.DealerGroup) (domain.Event, error)

type OrderStore interface {
	// CreateOrder persists the order and, when r is set, finalizes coupon usage
	// in the same transaction.
	CreateOrder(ctx context.Context, o *domain.Order, r *domain.Redemption) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Order, error)
	ListByDealer(ctx context.Context, dealerID string, limit int) ([]domain.Order, error)
	// MutateGroup serialises writers on the order and persists the group with a
	// compare-and-swap on its previous status.
	MutateGroup(ctx context.Context, id uuid.UUID, dealerID string, mutate GroupMutation) (*domain.Order, error)
}

type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	List(ctx context.Context) ([]domain.Coupon, error)
	ListActive(ctx context.Context, now time.Time) ([]domain.Coupon, error)
	Create(ctx context.Context, c *domain.Coupon) error
	Update(ctx context.Context, c *domain.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Finalize records usage for r.OrderID once. It reports false when the
	// order's usage was already recorded.
	Finalize(ctx context.Context, r domain.Redemption) (bool, error)
}
