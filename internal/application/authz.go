package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
)

var tracer = otel.Tracer("github.com/RaikyD/dealer-orders-service/internal/application")

// loadActor resolves the caller; unknown callers are forbidden rather than not found.
func loadActor(ctx context.Context, users UserDirectory, actorID string) (*domain.User, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, fmt.Errorf("%w: caller identity is required", domain.ErrForbidden)
	}
	actor, err := users.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown caller", domain.ErrForbidden)
		}
		return nil, err
	}
	return actor, nil
}

// authorizeGroupActor allows the dealer owning the group, or an admin.
func authorizeGroupActor(ctx context.Context, users UserDirectory, actorID, dealerID string) (*domain.User, error) {
	actor, err := loadActor(ctx, users, actorID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.ID == dealerID {
		return actor, nil
	}
	return nil, fmt.Errorf("%w: only the owning dealer or an admin may update this dealer group", domain.ErrForbidden)
}
