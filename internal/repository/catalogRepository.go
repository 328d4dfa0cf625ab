package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RaikyD/dealer-orders-service/internal/application"
	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogRepository reads products and users owned by the catalog and account
// tables. The order pipeline never writes them.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

var (
	_ application.ProductCatalog = (*CatalogRepository)(nil)
	_ application.UserDirectory  = (*CatalogRepository)(nil)
)

func NewCatalogRepository(p *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: p}
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `
		SELECT id, dealer_id, name, category, image_url
		FROM dealer.products WHERE id = $1`, id,
	).Scan(&p.ID, &p.DealerID, &p.Name, &p.Category, &p.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select product: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT weight, unit, price, discount_price, stock
		FROM dealer.product_variants WHERE product_id = $1
		ORDER BY weight, unit`, id)
	if err != nil {
		return nil, fmt.Errorf("select variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v  domain.ProductVariant
			dp decimal.NullDecimal
		)
		if err := rows.Scan(&v.Weight, &v.Unit, &v.Price, &dp, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if dp.Valid {
			d := dp.Decimal
			v.DiscountPrice = &d
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		addresses []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, role, dob, addresses FROM dealer.users WHERE id = $1`, id,
	).Scan(&u.ID, &role, &u.DOB, &addresses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = domain.Role(role)
	if len(addresses) > 0 {
		if err := json.Unmarshal(addresses, &u.Addresses); err != nil {
			return nil, fmt.Errorf("decode addresses: %w", err)
		}
	}
	return &u, nil
}
