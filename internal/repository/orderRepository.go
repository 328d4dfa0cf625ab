package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/RaikyD/dealer-orders-service/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ application.OrderStore = (*OrderRepository)(nil)

func NewOrderRepository(p *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: p}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order, red *domain.Redemption) error {
	if domain.EnforceTotals(o) {
		logger.Warn("grand total corrected before write", "order_id", o.ID)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		couponID      *uuid.UUID
		couponCode    *string
		couponDesc    *string
		couponValue   decimal.NullDecimal
		couponTypeCol *string
	)
	if c := o.Coupon; c != nil {
		id, code, desc, typ := c.CouponID, c.Code, c.Description, string(c.Type)
		couponID, couponCode, couponDesc, couponTypeCol = &id, &code, &desc, &typ
		couponValue = decimal.NewNullDecimal(c.DiscountValue)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dealer.orders
			(id, buyer_id, shipping_address, payment_method,
			 coupon_id, coupon_code, coupon_description, coupon_discount_value, coupon_type,
			 items_subtotal, total_savings, delivery_charge, coupon_discount, grand_total,
			 overall_status, paid_at, created_at, updated_at)
		VALUES
			($1, $2, $3, $4,
			 $5, $6, $7, $8, $9,
			 $10, $11, $12, $13, $14,
			 $15, $16, $17, $18)`,
		o.ID, o.BuyerID, address, string(o.PaymentMethod),
		couponID, couponCode, couponDesc, couponValue, couponTypeCol,
		o.ItemsSubtotal, o.TotalSavings, o.DeliveryCharge, o.CouponDiscount, o.GrandTotal,
		string(o.OverallStatus), o.PaidAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for gi, g := range o.DealerGroups {
		batch.Queue(`
			INSERT INTO dealer.dealer_groups
				(order_id, dealer_id, position, status, delivery_pin, cancellation_reason, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, g.DealerID, gi, string(g.Status), g.DeliveryPIN, g.CancellationReason, g.UpdatedAt,
		)
	}
	for _, g := range o.DealerGroups {
		for ii, it := range g.Items {
			var dp decimal.NullDecimal
			if it.DiscountPrice != nil {
				dp = decimal.NewNullDecimal(*it.DiscountPrice)
			}
			batch.Queue(`
				INSERT INTO dealer.order_items
					(order_id, dealer_id, position, product_id, name, image_url, category,
					 weight, unit, quantity, price, discount_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				o.ID, g.DealerID, ii, it.ProductID, it.Name, it.ImageURL, it.Category,
				it.Variant.Weight, it.Variant.Unit, it.Quantity, it.Price, dp,
			)
		}
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert dealer groups: %w", err)
	}

	if err = insertEvent(ctx, tx, domain.OrderCreatedEvent(*o)); err != nil {
		return err
	}
	if red != nil {
		if _, err = finalizeRedemption(ctx, tx, *red, o.CreatedAt); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

const orderColumns = `
	id, buyer_id, shipping_address, payment_method,
	coupon_id, coupon_code, coupon_description, coupon_discount_value, coupon_type,
	items_subtotal, total_savings, delivery_charge, coupon_discount, grand_total,
	overall_status, paid_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o           domain.Order
		address     []byte
		method      string
		status      string
		couponID    *uuid.UUID
		couponCode  *string
		couponDesc  *string
		couponValue decimal.NullDecimal
		couponType  *string
	)
	err := row.Scan(
		&o.ID, &o.BuyerID, &address, &method,
		&couponID, &couponCode, &couponDesc, &couponValue, &couponType,
		&o.ItemsSubtotal, &o.TotalSavings, &o.DeliveryCharge, &o.CouponDiscount, &o.GrandTotal,
		&status, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.OverallStatus = domain.OverallStatus(status)
	if couponID != nil {
		o.Coupon = &domain.AppliedCoupon{
			CouponID:      *couponID,
			Code:          deref(couponCode),
			Description:   deref(couponDesc),
			DiscountValue: couponValue.Decimal,
			Type:          domain.CouponType(deref(couponType)),
		}
	}
	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, lock bool) (*domain.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM dealer.orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	orders := []domain.Order{*o}
	if err := attachGroups(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachGroups loads dealer groups and items for all orders in two queries.
func attachGroups(ctx context.Context, q querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		index[o.ID] = i
	}

	rows, err := q.Query(ctx, `
		SELECT order_id, dealer_id, status, delivery_pin, cancellation_reason, updated_at
		FROM dealer.dealer_groups
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("select dealer groups: %w", err)
	}
	type groupKey struct {
		order  uuid.UUID
		dealer string
	}
	groupAt := make(map[groupKey]int)
	for rows.Next() {
		var (
			orderID uuid.UUID
			g       domain.DealerGroup
			status  string
		)
		if err := rows.Scan(&orderID, &g.DealerID, &status, &g.DeliveryPIN, &g.CancellationReason, &g.UpdatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan dealer group: %w", err)
		}
		g.Status = domain.GroupStatus(status)
		oi := index[orderID]
		groupAt[groupKey{orderID, g.DealerID}] = len(orders[oi].DealerGroups)
		orders[oi].DealerGroups = append(orders[oi].DealerGroups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate dealer groups: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT order_id, dealer_id, product_id, name, image_url, category,
		       weight, unit, quantity, price, discount_price
		FROM dealer.order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, dealer_id, position`, ids)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID  uuid.UUID
			dealerID string
			it       domain.OrderItem
			dp       decimal.NullDecimal
		)
		if err := rows.Scan(&orderID, &dealerID, &it.ProductID, &it.Name, &it.ImageURL, &it.Category,
			&it.Variant.Weight, &it.Variant.Unit, &it.Quantity, &it.Price, &dp); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if dp.Valid {
			v := dp.Decimal
			it.DiscountPrice = &v
		}
		gi, ok := groupAt[groupKey{orderID, dealerID}]
		if !ok {
			continue
		}
		g := &orders[index[orderID]].DealerGroups[gi]
		g.Items = append(g.Items, it)
	}
	return rows.Err()
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM dealer.orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, buyerID, limit)
}

func (r *OrderRepository) ListByDealer(ctx context.Context, dealerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+` FROM dealer.orders
		WHERE id IN (SELECT order_id FROM dealer.dealer_groups WHERE dealer_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`, dealerID, limit)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachGroups(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// MutateGroup locks the order row, applies mutate, then writes the group back
// only if its status is still the one mutate saw.
func (r *OrderRepository) MutateGroup(ctx context.Context, id uuid.UUID, dealerID string, mutate application.GroupMutation) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := getOrder(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	g := o.Group(dealerID)
	if g == nil {
		return nil, fmt.Errorf("%w: dealer group %s in order %s", domain.ErrNotFound, dealerID, id)
	}
	prev := g.Status

	ev, err := mutate(o, g)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE dealer.dealer_groups
		SET status = $1, delivery_pin = $2, cancellation_reason = $3, updated_at = $4
		WHERE order_id = $5 AND dealer_id = $6 AND status = $7`,
		string(g.Status), g.DeliveryPIN, g.CancellationReason, g.UpdatedAt,
		id, dealerID, string(prev),
	)
	if err != nil {
		return nil, fmt.Errorf("update dealer group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: dealer group %s changed concurrently", domain.ErrConflict, dealerID)
	}

	if _, err = tx.Exec(ctx, `
		UPDATE dealer.orders SET overall_status = $1, updated_at = $2 WHERE id = $3`,
		string(o.OverallStatus), o.UpdatedAt, id,
	); err != nil {
		return nil, fmt.Errorf("update overall status: %w", err)
	}
	if err = insertEvent(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit group change: %w", err)
	}
	return o, nil
}

func insertEvent(ctx context.Context, q querier, ev domain.Event) error {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO dealer.order_events (id, type, order_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Type, ev.OrderID, payload, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
