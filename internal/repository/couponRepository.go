package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type CouponRepository struct {
	pool *pgxpool.Pool
}

var _ application.CouponStore = (*CouponRepository)(nil)

func NewCouponRepository(p *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: p}
}

const couponColumns = `
	id, code, description, type, value, min_order_value, status,
	total_limit, total_used, per_user_limit,
	valid_for_users, valid_for_products, valid_for_categories, custom_rules,
	valid_from, expires_on, created_at, updated_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var (
		c      domain.Coupon
		typ    string
		status string
		rules  []byte
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &typ, &c.Value, &c.MinOrderValue, &status,
		&c.Usage.TotalLimit, &c.Usage.TotalUsed, &c.Usage.PerUserLimit,
		&c.ValidForUsers, &c.ValidFor.ProductIDs, &c.ValidFor.Categories, &rules,
		&c.ValidFrom, &c.ExpiresOn, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Type = domain.CouponType(typ)
	c.Status = domain.CouponStatus(status)
	if len(rules) > 0 {
		c.CustomRules = &domain.CustomRules{}
		if err := json.Unmarshal(rules, c.CustomRules); err != nil {
			return nil, fmt.Errorf("decode custom rules: %w", err)
		}
	}
	return &c, nil
}

func (r *CouponRepository) get(ctx context.Context, where string, arg any) (*domain.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM dealer.coupons WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: coupon", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select coupon: %w", err)
	}
	if err := r.attachHistory(ctx, []*domain.Coupon{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return r.get(ctx, `code = $1`, domain.NormalizeCode(code))
}

func (r *CouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	return r.get(ctx, `id = $1`, id)
}

func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	return r.list(ctx, `SELECT `+couponColumns+` FROM dealer.coupons ORDER BY created_at DESC`)
}

// ListActive returns coupons that are active and inside their validity window.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	return r.list(ctx, `
		SELECT `+couponColumns+` FROM dealer.coupons
		WHERE status = 'active'
		  AND valid_from <= $1
		  AND (expires_on IS NULL OR expires_on >= $1)
		ORDER BY code`, now)
}

func (r *CouponRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Coupon, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	var out []*domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachHistory(ctx, out); err != nil {
		return nil, err
	}
	coupons := make([]domain.Coupon, len(out))
	for i, c := range out {
		coupons[i] = *c
	}
	return coupons, nil
}

func (r *CouponRepository) attachHistory(ctx context.Context, coupons []*domain.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	ids := make([]string, len(coupons))
	index := make(map[uuid.UUID]*domain.Coupon, len(coupons))
	for i, c := range coupons {
		ids[i] = c.ID.String()
		index[c.ID] = c
	}
	rows, err := r.pool.Query(ctx, `
		SELECT coupon_id, user_id, times_used
		FROM dealer.coupon_user_history
		WHERE coupon_id = ANY($1::uuid[])
		ORDER BY coupon_id, user_id`, ids)
	if err != nil {
		return fmt.Errorf("select coupon history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  uuid.UUID
			rec domain.UsageRecord
		)
		if err := rows.Scan(&id, &rec.UserID, &rec.TimesUsed); err != nil {
			return fmt.Errorf("scan coupon history: %w", err)
		}
		if c, ok := index[id]; ok {
			c.UserHistory = append(c.UserHistory, rec)
		}
	}
	return rows.Err()
}

func couponArgs(c *domain.Coupon) ([]byte, error) {
	if c.CustomRules == nil {
		return nil, nil
	}
	return json.Marshal(c.CustomRules)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	rules, err := couponArgs(c)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO dealer.coupons
			(id, code, description, type, value, min_order_value, status,
			 total_limit, total_used, per_user_limit,
			 valid_for_users, valid_for_products, valid_for_categories, custom_rules,
			 valid_from, expires_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.Code, c.Description, string(c.Type), c.Value, c.MinOrderValue, string(c.Status),
		c.Usage.TotalLimit, c.Usage.TotalUsed, c.Usage.PerUserLimit,
		nonNil(c.ValidForUsers), nonNil(c.ValidFor.ProductIDs), nonNil(c.ValidFor.Categories), rules,
		c.ValidFrom, c.ExpiresOn, c.CreatedAt, c.UpdatedAt,
	)
	return mapWriteErr(err, c.Code)
}

// Update rewrites the definition. Usage counters are left to Finalize.
func (r *CouponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	rules, err := couponArgs(c)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE dealer.coupons SET
			code = $2, description = $3, type = $4, value = $5, min_order_value = $6, status = $7,
			total_limit = $8, per_user_limit = $9,
			valid_for_users = $10, valid_for_products = $11, valid_for_categories = $12, custom_rules = $13,
			valid_from = $14, expires_on = $15, updated_at = $16
		WHERE id = $1`,
		c.ID, c.Code, c.Description, string(c.Type), c.Value, c.MinOrderValue, string(c.Status),
		c.Usage.TotalLimit, c.Usage.PerUserLimit,
		nonNil(c.ValidForUsers), nonNil(c.ValidFor.ProductIDs), nonNil(c.ValidFor.Categories), rules,
		c.ValidFrom, c.ExpiresOn, c.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr(err, c.Code)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: coupon %s", domain.ErrNotFound, c.ID)
	}
	return nil
}

func (r *CouponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dealer.coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: coupon %s", domain.ErrNotFound, id)
	}
	return nil
}

func mapWriteErr(err error, code string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: coupon code %s already exists", domain.ErrConflict, code)
	}
	return fmt.Errorf("write coupon: %w", err)
}

// Finalize records a redemption in its own transaction.
func (r *CouponRepository) Finalize(ctx context.Context, red domain.Redemption) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	applied, err := finalizeRedemption(ctx, tx, red, time.Now().UTC())
	if err != nil || !applied {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit redemption: %w", err)
	}
	return true, nil
}

// finalizeRedemption claims the order's redemption marker, then bumps the
// total and per-user counters under their limits. A second call for the same
// order is a no-op.
func finalizeRedemption(ctx context.Context, q querier, red domain.Redemption, at time.Time) (bool, error) {
	tag, err := q.Exec(ctx, `
		INSERT INTO dealer.coupon_redemptions (order_id, coupon_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING`,
		red.OrderID, red.CouponID, red.UserID, at,
	)
	if err != nil {
		return false, fmt.Errorf("insert redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	tag, err = q.Exec(ctx, `
		UPDATE dealer.coupons
		SET total_used = total_used + 1, updated_at = $2
		WHERE id = $1 AND (total_limit IS NULL OR total_used < total_limit)`,
		red.CouponID, at,
	)
	if err != nil {
		return false, fmt.Errorf("increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM dealer.coupons WHERE id = $1)`, red.CouponID,
		).Scan(&exists); err != nil {
			return false, fmt.Errorf("check coupon: %w", err)
		}
		if !exists {
			return false, fmt.Errorf("%w: coupon %s", domain.ErrNotFound, red.CouponID)
		}
		return false, &domain.CouponRejectedError{
			Reason:  domain.ReasonUsageLimitReached,
			Message: "This coupon has reached its usage limit.",
		}
	}

	tag, err = q.Exec(ctx, `
		INSERT INTO dealer.coupon_user_history AS h (coupon_id, user_id, times_used)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, user_id) DO UPDATE
		SET times_used = h.times_used + 1
		WHERE h.times_used < (SELECT per_user_limit FROM dealer.coupons WHERE id = $1)`,
		red.CouponID, red.UserID,
	)
	if err != nil {
		return false, fmt.Errorf("record user usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, &domain.CouponRejectedError{
			Reason:  domain.ReasonPerUserLimitReached,
			Message: "You have already used this coupon the maximum number of times.",
		}
	}

	if err := insertEvent(ctx, q, domain.CouponFinalizedEvent(red, at)); err != nil {
		return false, err
	}
	return true, nil
}
