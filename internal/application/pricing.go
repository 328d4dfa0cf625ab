package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RaikyD/dealer-orders-service/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	DefaultDeliveryFee           = 32
	DefaultFreeDeliveryThreshold = 200
)

type CartLine struct {
	ProductID string         `json:"productId"`
	Variant   domain.Variant `json:"variant"`
	Quantity  int            `json:"quantity"`
}

// Quote is the priced, dealer-grouped view of a cart.
type Quote struct {
	Groups         []domain.DealerGroup
	ItemsSubtotal  decimal.Decimal
	TotalSavings   decimal.Decimal
	DeliveryCharge decimal.Decimal
	ProductIDs     []string
	Categories     []string
}

// Payable is what the buyer owes for items before any coupon.
func (q Quote) Payable() decimal.Decimal {
	return domain.Round2(q.ItemsSubtotal.Sub(q.TotalSavings))
}

type PricingEngine struct {
	catalog          ProductCatalog
	deliveryFee      decimal.Decimal
	freeDeliveryFrom decimal.Decimal
}

func NewPricingEngine(catalog ProductCatalog, deliveryFee, freeDeliveryFrom decimal.Decimal) *PricingEngine {
	return &PricingEngine{
		catalog:          catalog,
		deliveryFee:      deliveryFee,
		freeDeliveryFrom: freeDeliveryFrom,
	}
}

// DeliveryCharge is the flat fee for small orders, applied once per order.
func (e *PricingEngine) DeliveryCharge(itemsSubtotal decimal.Decimal) decimal.Decimal {
	if itemsSubtotal.LessThan(e.freeDeliveryFrom) {
		return domain.Round2(e.deliveryFee)
	}
	return decimal.Zero
}

// Price resolves every line against the catalog. Any bad line fails the whole quote.
func (e *PricingEngine) Price(ctx context.Context, lines []CartLine) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, fmt.Errorf("%w: no order items found in cart", domain.ErrValidation)
	}

	var (
		q          = Quote{ItemsSubtotal: decimal.Zero, TotalSavings: decimal.Zero}
		groupIndex = make(map[string]int)
		seenProd   = make(map[string]struct{})
		seenCat    = make(map[string]struct{})
	)

	for i, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return Quote{}, fmt.Errorf("%w: cart item %d is missing productId", domain.ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w: quantity for product %s must be positive", domain.ErrValidation, productID)
		}

		product, err := e.catalog.GetProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return Quote{}, fmt.Errorf("%w: product with ID %s not found", domain.ErrNotFound, productID)
			}
			return Quote{}, fmt.Errorf("load product %s: %w", productID, err)
		}
		if strings.TrimSpace(product.DealerID) == "" {
			return Quote{}, fmt.Errorf("%w: product '%s' is missing a dealer ID", domain.ErrValidation, product.Name)
		}
		variant, ok := product.Variant(line.Variant)
		if !ok {
			return Quote{}, fmt.Errorf("%w: product variant %s%s not found for '%s'", domain.ErrValidation,
				line.Variant.Weight, line.Variant.Unit, product.Name)
		}

		price := domain.Round2(variant.Price)
		discountPrice := price
		if variant.DiscountPrice != nil {
			discountPrice = domain.Round2(*variant.DiscountPrice)
		}
		qty := decimal.NewFromInt(int64(line.Quantity))

		q.ItemsSubtotal = domain.Round2(q.ItemsSubtotal.Add(price.Mul(qty)))
		q.TotalSavings = domain.Round2(q.TotalSavings.Add(price.Sub(discountPrice).Mul(qty)))

		idx, ok := groupIndex[product.DealerID]
		if !ok {
			idx = len(q.Groups)
			groupIndex[product.DealerID] = idx
			q.Groups = append(q.Groups, domain.DealerGroup{DealerID: product.DealerID, Status: domain.StatusPending})
		}
		snapshotDiscount := discountPrice
		q.Groups[idx].Items = append(q.Groups[idx].Items, domain.OrderItem{
			ProductID:     product.ID,
			Name:          product.Name,
			ImageURL:      product.ImageURL,
			Category:      product.Category,
			Variant:       line.Variant,
			Quantity:      line.Quantity,
			Price:         price,
			DiscountPrice: &snapshotDiscount,
		})

		if _, ok := seenProd[product.ID]; !ok {
			seenProd[product.ID] = struct{}{}
			q.ProductIDs = append(q.ProductIDs, product.ID)
		}
		if _, ok := seenCat[product.Category]; !ok && product.Category != "" {
			seenCat[product.Category] = struct{}{}
			q.Categories = append(q.Categories, product.Category)
		}
	}

	q.DeliveryCharge = e.DeliveryCharge(q.ItemsSubtotal)
	return q, nil
}
