// Package bulkedit applies price and stock directives to a batch of products.
// The engine is pure: it never touches storage, it only transforms product
// values, so callers decide whether and how to persist the result.
package bulkedit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
)

var (
	ErrNoDirectives = errors.New("bulkedit: payload has no price or stock directive")
	ErrNoProducts   = errors.New("bulkedit: payload selects no products")
)

var hundred = decimal.NewFromInt(100)

// Result reports the outcome of one Apply pass. Updated holds the transformed
// products in the order their IDs were requested. Skipped lists requested IDs
// that matched no product.
type Result struct {
	Updated []domain.Product
	Skipped []string
}

// Apply runs the payload's directives over the selected products. Price
// results are rounded to two decimal places and clamped at zero; stock
// results are clamped at zero. Unknown product IDs are skipped, never an
// error, so one stale ID cannot fail a whole batch.
func Apply(products map[string]domain.Product, payload domain.BulkUpdatePayload) (Result, error) {
	if payload.Price == nil && payload.Stock == nil {
		return Result{}, ErrNoDirectives
	}
	if len(payload.ProductIDs) == 0 {
		return Result{}, ErrNoProducts
	}
	if payload.Price != nil {
		if !payload.Price.Operation.Valid() {
			return Result{}, fmt.Errorf("bulkedit: unknown price operation %q", payload.Price.Operation)
		}
		if payload.Price.Value.IsNegative() {
			return Result{}, errors.New("bulkedit: price directive value must not be negative")
		}
	}
	if payload.Stock != nil {
		if !payload.Stock.Operation.Valid() {
			return Result{}, fmt.Errorf("bulkedit: unknown stock operation %q", payload.Stock.Operation)
		}
		if payload.Stock.Value < 0 {
			return Result{}, errors.New("bulkedit: stock directive value must not be negative")
		}
	}

	result := Result{Updated: make([]domain.Product, 0, len(payload.ProductIDs))}
	seen := make(map[string]struct{}, len(payload.ProductIDs))
	for _, id := range payload.ProductIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		product, ok := products[id]
		if !ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if payload.Price != nil {
			product.Price = applyPrice(product.Price, *payload.Price)
		}
		if payload.Stock != nil {
			product.Stock = applyStock(product.Stock, *payload.Stock)
		}
		result.Updated = append(result.Updated, product)
	}
	return result, nil
}

func applyPrice(current decimal.Decimal, directive domain.PriceDirective) decimal.Decimal {
	var next decimal.Decimal
	switch directive.Operation {
	case domain.PriceSet:
		next = directive.Value
	case domain.PriceIncreaseValue:
		next = current.Add(directive.Value)
	case domain.PriceDecreaseValue:
		next = current.Sub(directive.Value)
	case domain.PriceIncreasePercent:
		next = current.Add(current.Mul(directive.Value).Div(hundred))
	case domain.PriceDecreasePercent:
		next = current.Sub(current.Mul(directive.Value).Div(hundred))
	default:
		next = current
	}
	next = next.Round(2)
	if next.IsNegative() {
		return decimal.Zero
	}
	return next
}

func applyStock(current int, directive domain.StockDirective) int {
	var next int
	switch directive.Operation {
	case domain.StockSet:
		next = directive.Value
	case domain.StockIncreaseValue:
		next = current + directive.Value
	case domain.StockDecreaseValue:
		next = current - directive.Value
	default:
		next = current
	}
	if next < 0 {
		return 0
	}
	return next
}
