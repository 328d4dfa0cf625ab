package inmem

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
)

func TestListSortsByCode(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, code := range []string{"ZETA", "ALPHA", "MIDDLE10", "BETA"} {
		require.NoError(t, s.Create(ctx, &domain.Coupon{ID: uuid.New(), Code: code}))
	}

	got, err := s.List(ctx)
	require.NoError(t, err)
	codes := make([]string, 0, len(got))
	for _, c := range got {
		codes = append(codes, c.Code)
	}
	assert.Equal(t, []string{"ALPHA", "BETA", "MIDDLE10", "ZETA"}, codes)
}

func TestFinalizeMissingCoupon(t *testing.T) {
	s := New()
	ctx := context.Background()
	red := domain.Redemption{OrderID: uuid.New(), CouponID: uuid.New(), UserID: "buyer"}

	applied, err := s.Finalize(ctx, red)
	assert.False(t, applied)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// no marker was kept, so a restored coupon can still be finalized
	require.NoError(t, s.Create(ctx, &domain.Coupon{ID: red.CouponID, Code: "BACK", Usage: domain.CouponUsage{PerUserLimit: 1}}))
	applied, err = s.Finalize(ctx, red)
	require.NoError(t, err)
	assert.True(t, applied)
}
