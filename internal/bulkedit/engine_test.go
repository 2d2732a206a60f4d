package bulkedit

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func catalog(t *testing.T) map[string]domain.Product {
	t.Helper()
	return map[string]domain.Product{
		"p1": {ID: "p1", Name: "Arroz", Price: dec(t, "10.00"), Stock: 5},
		"p2": {ID: "p2", Name: "Feijão", Price: dec(t, "7.33"), Stock: 2},
	}
}

func TestApplyPriceIncreasePercentRounds(t *testing.T) {
	result, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p1", "p2"},
		Price:      &domain.PriceDirective{Operation: domain.PriceIncreasePercent, Value: dec(t, "20")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Updated) != 2 {
		t.Fatalf("expected 2 updated, got %d", len(result.Updated))
	}
	if !result.Updated[0].Price.Equal(dec(t, "12.00")) {
		t.Fatalf("p1: expected 12.00, got %s", result.Updated[0].Price)
	}
	// 7.33 * 1.2 = 8.796 -> 8.80
	if !result.Updated[1].Price.Equal(dec(t, "8.80")) {
		t.Fatalf("p2: expected 8.80, got %s", result.Updated[1].Price)
	}
}

func TestApplyPriceSetIsIdempotentIncreaseIsNot(t *testing.T) {
	products := catalog(t)
	set := domain.BulkUpdatePayload{
		ProductIDs: []string{"p1"},
		Price:      &domain.PriceDirective{Operation: domain.PriceSet, Value: dec(t, "9.90")},
	}

	first, err := Apply(products, set)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	products["p1"] = first.Updated[0]
	second, err := Apply(products, set)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !second.Updated[0].Price.Equal(dec(t, "9.90")) {
		t.Fatalf("set applied twice must stay 9.90, got %s", second.Updated[0].Price)
	}

	inc := domain.BulkUpdatePayload{
		ProductIDs: []string{"p1"},
		Price:      &domain.PriceDirective{Operation: domain.PriceIncreaseValue, Value: dec(t, "1.00")},
	}
	first, err = Apply(products, inc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	products["p1"] = first.Updated[0]
	second, err = Apply(products, inc)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !second.Updated[0].Price.Equal(dec(t, "11.90")) {
		t.Fatalf("increase applied twice should accumulate to 11.90, got %s", second.Updated[0].Price)
	}
}

func TestApplyPriceClampsAtZero(t *testing.T) {
	result, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p1"},
		Price:      &domain.PriceDirective{Operation: domain.PriceDecreaseValue, Value: dec(t, "50.00")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !result.Updated[0].Price.Equal(decimal.Zero) {
		t.Fatalf("expected price clamped to 0, got %s", result.Updated[0].Price)
	}
}

func TestApplyStockClampsAtZero(t *testing.T) {
	result, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p2"},
		Stock:      &domain.StockDirective{Operation: domain.StockDecreaseValue, Value: 10},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Updated[0].Stock != 0 {
		t.Fatalf("expected stock clamped to 0, got %d", result.Updated[0].Stock)
	}
}

func TestApplySkipsUnknownAndDuplicateIDs(t *testing.T) {
	result, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p1", "p1", "ghost"},
		Stock:      &domain.StockDirective{Operation: domain.StockIncreaseValue, Value: 1},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(result.Updated) != 1 {
		t.Fatalf("expected duplicate collapsed to 1 update, got %d", len(result.Updated))
	}
	if result.Updated[0].Stock != 6 {
		t.Fatalf("expected single increment to 6, got %d", result.Updated[0].Stock)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "ghost" {
		t.Fatalf("expected ghost skipped, got %v", result.Skipped)
	}
}

func TestApplyValidation(t *testing.T) {
	if _, err := Apply(catalog(t), domain.BulkUpdatePayload{ProductIDs: []string{"p1"}}); !errors.Is(err, ErrNoDirectives) {
		t.Fatalf("expected ErrNoDirectives, got %v", err)
	}
	if _, err := Apply(catalog(t), domain.BulkUpdatePayload{
		Price: &domain.PriceDirective{Operation: domain.PriceSet, Value: dec(t, "1.00")},
	}); !errors.Is(err, ErrNoProducts) {
		t.Fatalf("expected ErrNoProducts, got %v", err)
	}
	if _, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p1"},
		Price:      &domain.PriceDirective{Operation: "halve", Value: dec(t, "1.00")},
	}); err == nil {
		t.Fatal("expected error for unknown price operation")
	}
	if _, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p1"},
		Price:      &domain.PriceDirective{Operation: domain.PriceSet, Value: dec(t, "-1.00")},
	}); err == nil {
		t.Fatal("expected error for negative directive value")
	}
}

func TestApplyBothDirectivesTogether(t *testing.T) {
	result, err := Apply(catalog(t), domain.BulkUpdatePayload{
		ProductIDs: []string{"p1"},
		Price:      &domain.PriceDirective{Operation: domain.PriceDecreasePercent, Value: dec(t, "10")},
		Stock:      &domain.StockDirective{Operation: domain.StockSet, Value: 50},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !result.Updated[0].Price.Equal(dec(t, "9.00")) {
		t.Fatalf("expected price 9.00, got %s", result.Updated[0].Price)
	}
	if result.Updated[0].Stock != 50 {
		t.Fatalf("expected stock 50, got %d", result.Updated[0].Stock)
	}
}
