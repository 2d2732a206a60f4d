package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
)

func TestShiftLifecycleIntegration(t *testing.T) {
	databaseURL := os.Getenv("MERCADINHO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set MERCADINHO_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	marketID := fmt.Sprintf("mkt-it-%d", stamp)
	operatorID := fmt.Sprintf("user-it-%d", stamp)
	productID := fmt.Sprintf("prod-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM daily_reports WHERE supermarket_id = $1`, marketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_flow WHERE supermarket_id = $1`, marketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE supermarket_id = $1`, marketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE supermarket_id = $1`, marketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE supermarket_id = $1`, marketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE supermarket_id = $1`, marketID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM supermarkets WHERE id = $1`, marketID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO supermarkets (id, owner_id, name) VALUES ($1, $2, 'Mercado Integração')
	`, marketID, operatorID); err != nil {
		t.Fatalf("insert supermarket: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, supermarket_id, name, email, password_hash, role)
		VALUES ($1, $2, 'Caixa IT', $3, 'x', 'operator')
	`, operatorID, marketID, fmt.Sprintf("caixa-it-%d@example.com", stamp)); err != nil {
		t.Fatalf("insert operator: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, supermarket_id, name, price, stock)
		VALUES ($1, $2, 'Produto IT', 10.00, 5)
	`, productID, marketID); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	shift, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: marketID, OperatorID: operatorID},
		domain.CashFlowEntry{Amount: decimal.RequireFromString("200.00"), Description: "Abertura de caixa"},
	)
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}

	sale, err := s.CommitSale(ctx, domain.Sale{
		SupermarketID: marketID,
		ShiftID:       shift.ID,
		OperatorID:    operatorID,
		Items:         []domain.CartItem{{ProductID: productID, Quantity: 3}},
	}, domain.CashFlowEntry{Description: "Venda"}, 10, false)
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if !sale.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected sale total 30.00, got %s", sale.Total)
	}

	var stock int
	if err := s.db.QueryRowContext(ctx, `
		SELECT stock FROM products WHERE id = $1
	`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 2 {
		t.Fatalf("expected stock 2 after sale, got %d", stock)
	}

	if _, err := s.AppendCashFlow(ctx, domain.CashFlowEntry{
		SupermarketID: marketID,
		ShiftID:       shift.ID,
		OperatorID:    operatorID,
		Type:          domain.EntrySangria,
		Amount:        decimal.RequireFromString("-50.00"),
		Description:   "Sangria",
	}); err != nil {
		t.Fatalf("append sangria: %v", err)
	}

	report, err := s.CloseShift(ctx, marketID, time.Now().UTC())
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if !report.FinalCash.Equal(decimal.RequireFromString("180.00")) {
		t.Fatalf("expected final cash 180.00, got %s", report.FinalCash)
	}
	if !report.TotalSangria.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected total sangria 50.00, got %s", report.TotalSangria)
	}

	if _, err := s.GetOpenShift(ctx, marketID); err == nil {
		t.Fatal("expected no open shift after close")
	}
}
