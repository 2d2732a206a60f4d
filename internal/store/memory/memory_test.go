package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
)

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	owner := domain.User{Name: "Dona Rosa", Email: "rosa@example.com", PasswordHash: "$2a$fake"}
	if _, _, err := s.Register(ctx, owner, domain.Supermarket{Name: "Mercado A"}); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, _, err := s.Register(ctx, owner, domain.Supermarket{Name: "Mercado B"})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
}

func TestUpdateUserRekeysEmail(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	user, err := s.GetUserByEmail(ctx, "caixa@mercadinho.dev")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	user.Email = "caixa-novo@mercadinho.dev"
	if _, err := s.UpdateUser(ctx, *user); err != nil {
		t.Fatalf("update user: %v", err)
	}

	if _, err := s.GetUserByEmail(ctx, "caixa@mercadinho.dev"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected old email gone, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "caixa-novo@mercadinho.dev"); err != nil {
		t.Fatalf("expected new email resolvable, got %v", err)
	}
}

func TestOpenShiftClosesPreviousAndSeedsOpeningEntry(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	first, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
		domain.CashFlowEntry{Amount: decimal.RequireFromString("200.00")},
	)
	if err != nil {
		t.Fatalf("open first shift: %v", err)
	}
	second, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
		domain.CashFlowEntry{Amount: decimal.RequireFromString("150.00")},
	)
	if err != nil {
		t.Fatalf("open second shift: %v", err)
	}

	open, err := s.GetOpenShift(ctx, "mkt-demo")
	if err != nil {
		t.Fatalf("get open shift: %v", err)
	}
	if open.ID != second.ID {
		t.Fatalf("expected shift %s open, got %s", second.ID, open.ID)
	}
	if open.ID == first.ID {
		t.Fatal("first shift should have been abandoned")
	}

	entries, err := s.ListShiftCashFlow(ctx, "mkt-demo", second.ID)
	if err != nil {
		t.Fatalf("list cash flow: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != domain.EntryInitial {
		t.Fatalf("expected one opening entry, got %+v", entries)
	}
}

func TestCommitSaleRejectsStaleShift(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	stale, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
		domain.CashFlowEntry{},
	)
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	if _, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
		domain.CashFlowEntry{},
	); err != nil {
		t.Fatalf("open replacement shift: %v", err)
	}

	_, err = s.CommitSale(ctx, domain.Sale{
		SupermarketID: "mkt-demo",
		ShiftID:       stale.ID,
		OperatorID:    "user-operator-demo",
		Items:         []domain.CartItem{{ProductID: "prod-arroz-01", Quantity: 1}},
	}, domain.CashFlowEntry{}, 0, false)
	if !errors.Is(err, store.ErrNoOpenShift) {
		t.Fatalf("expected stale shift rejected, got %v", err)
	}
}

func TestCommitSaleAwardsPointsFromCommittedTotal(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	shift, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
		domain.CashFlowEntry{},
	)
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}

	// Arroz 24.90 x2 = 49.80, divisor 10 -> 4 points, from the total the
	// store itself computed.
	sale, err := s.CommitSale(ctx, domain.Sale{
		SupermarketID: "mkt-demo",
		ShiftID:       shift.ID,
		OperatorID:    "user-operator-demo",
		CustomerID:    "cust-demo-01",
		Items:         []domain.CartItem{{ProductID: "prod-arroz-01", Quantity: 2}},
	}, domain.CashFlowEntry{}, 10, false)
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	if !sale.Total.Equal(decimal.RequireFromString("49.80")) {
		t.Fatalf("expected total 49.80, got %s", sale.Total)
	}

	customer, err := s.GetCustomer(ctx, "mkt-demo", "cust-demo-01")
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	if customer.Points != 4 {
		t.Fatalf("expected 4 points, got %d", customer.Points)
	}
}

func TestCloseShiftBuildsReportAndClearsOpenShift(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	shift, err := s.OpenShift(ctx,
		domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
		domain.CashFlowEntry{Amount: decimal.RequireFromString("100.00")},
	)
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}

	if _, err := s.CommitSale(ctx, domain.Sale{
		SupermarketID: "mkt-demo",
		ShiftID:       shift.ID,
		OperatorID:    "user-operator-demo",
		Items:         []domain.CartItem{{ProductID: "prod-arroz-01", Quantity: 2}},
	}, domain.CashFlowEntry{Description: "Venda"}, 0, false); err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	closedAt := time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC)
	report, err := s.CloseShift(ctx, "mkt-demo", closedAt)
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if report.Date != "2026-08-29" {
		t.Fatalf("expected date 2026-08-29, got %s", report.Date)
	}
	if !report.FinalCash.Equal(decimal.RequireFromString("149.80")) {
		t.Fatalf("expected final cash 149.80, got %s", report.FinalCash)
	}

	if _, err := s.GetOpenShift(ctx, "mkt-demo"); !errors.Is(err, store.ErrNoOpenShift) {
		t.Fatalf("expected no open shift, got %v", err)
	}

	reports, err := s.ListReports(ctx, "mkt-demo")
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != report.ID {
		t.Fatalf("expected stored report %s, got %+v", report.ID, reports)
	}
}

func TestListReportsNewestFirst(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.OpenShift(ctx,
			domain.Shift{SupermarketID: "mkt-demo", OperatorID: "user-operator-demo"},
			domain.CashFlowEntry{},
		); err != nil {
			t.Fatalf("open shift: %v", err)
		}
		closedAt := time.Date(2026, 8, 27+i, 20, 0, 0, 0, time.UTC)
		if _, err := s.CloseShift(ctx, "mkt-demo", closedAt); err != nil {
			t.Fatalf("close shift: %v", err)
		}
	}

	reports, err := s.ListReports(ctx, "mkt-demo")
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	if reports[0].Date != "2026-08-29" || reports[2].Date != "2026-08-27" {
		t.Fatalf("expected newest first, got %s .. %s", reports[0].Date, reports[2].Date)
	}
}

func TestUpdateProductsRollsBackOnInvalidRow(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	good, err := s.GetProduct(ctx, "mkt-demo", "prod-arroz-01")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	originalStock := good.Stock
	good.Stock = originalStock + 10

	bad := *good
	bad.ID = "prod-ghost"

	err = s.UpdateProducts(ctx, "mkt-demo", []domain.Product{*good, bad})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for ghost product, got %v", err)
	}

	reloaded, err := s.GetProduct(ctx, "mkt-demo", "prod-arroz-01")
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.Stock != originalStock {
		t.Fatalf("expected batch rolled back, stock %d got %d", originalStock, reloaded.Stock)
	}
}
