package service

import (
	"context"
	"strings"
	"time"

	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
)

// StartShift opens a fresh shift for the operator, seeding the ledger with
// the configured opening float. Any shift still open for the supermarket is
// closed first, so a crashed session never blocks the next login.
// The actor comes in as an argument because this runs during login, before
// a token exists to put an actor on the context.
func (s *Service) StartShift(ctx context.Context, actor domain.Actor) (*domain.Shift, error) {
	now := time.Now().UTC()
	shift := domain.Shift{
		SupermarketID: actor.SupermarketID,
		OperatorID:    actor.UserID,
		OpenedAt:      now,
	}
	opening := domain.CashFlowEntry{
		Amount:      s.opts.OpeningCash.Round(2),
		Description: "Abertura de caixa",
		CreatedAt:   now,
	}
	return s.repo.OpenShift(ctx, shift, opening)
}

// CurrentShift returns the open shift with its sales and ledger entries.
func (s *Service) CurrentShift(ctx context.Context) (domain.ShiftView, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ShiftView{}, err
	}

	shift, err := s.repo.GetOpenShift(ctx, actor.SupermarketID)
	if err != nil {
		return domain.ShiftView{}, err
	}
	sales, err := s.repo.ListShiftSales(ctx, actor.SupermarketID, shift.ID)
	if err != nil {
		return domain.ShiftView{}, err
	}
	cashFlow, err := s.repo.ListShiftCashFlow(ctx, actor.SupermarketID, shift.ID)
	if err != nil {
		return domain.ShiftView{}, err
	}

	return domain.ShiftView{Shift: *shift, Sales: sales, CashFlow: cashFlow}, nil
}

// RecordSale settles a cart against the open shift. The total is computed
// server-side from current catalog prices, never trusted from the client,
// and the whole settlement commits atomically in the store.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, store.ErrInvalidInput
	}

	shift, err := s.repo.GetOpenShift(ctx, actor.SupermarketID)
	if err != nil {
		return domain.Sale{}, err
	}

	// Merge duplicate lines so one product appears once per sale.
	quantities := make(map[string]int, len(req.Items))
	order := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		id := strings.TrimSpace(item.ProductID)
		if id == "" || item.Quantity < 1 {
			return domain.Sale{}, store.ErrInvalidInput
		}
		if _, seen := quantities[id]; !seen {
			order = append(order, id)
		}
		quantities[id] += item.Quantity
	}

	products, err := s.repo.GetProductsByIDs(ctx, actor.SupermarketID, order)
	if err != nil {
		return domain.Sale{}, err
	}

	items := make([]domain.CartItem, 0, len(order))
	for _, id := range order {
		product, ok := products[id]
		if !ok {
			return domain.Sale{}, store.ErrNotFound
		}
		items = append(items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantities[id],
		})
	}

	sale := domain.Sale{
		SupermarketID: actor.SupermarketID,
		ShiftID:       shift.ID,
		OperatorID:    actor.UserID,
		CustomerID:    strings.TrimSpace(req.CustomerID),
		Items:         items,
	}

	// Points are awarded inside the commit, from the recomputed total, so a
	// price change between this read and the commit cannot skew them.
	created, err := s.repo.CommitSale(ctx, sale, domain.CashFlowEntry{Description: "Venda"}, s.opts.PointsDivisor, s.opts.StrictStock)
	if err != nil {
		return domain.Sale{}, err
	}
	return *created, nil
}

// RecordWithdrawal registers a sangria. The client sends the amount taken
// out as a positive value; the ledger stores it negated.
func (s *Service) RecordWithdrawal(ctx context.Context, req domain.WithdrawalRequest) (domain.CashFlowEntry, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.CashFlowEntry{}, store.ErrInvalidInput
	}

	shift, err := s.repo.GetOpenShift(ctx, actor.SupermarketID)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "Sangria"
	}

	entry := domain.CashFlowEntry{
		SupermarketID: actor.SupermarketID,
		ShiftID:       shift.ID,
		OperatorID:    actor.UserID,
		Type:          domain.EntrySangria,
		Amount:        req.Amount.Round(2).Neg(),
		Description:   description,
	}

	created, err := s.repo.AppendCashFlow(ctx, entry)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}
	return *created, nil
}

func (s *Service) ListShiftCashFlow(ctx context.Context) ([]domain.CashFlowEntry, error) {
	view, err := s.CurrentShift(ctx)
	if err != nil {
		return nil, err
	}
	return view.CashFlow, nil
}

func (s *Service) ListShiftSales(ctx context.Context) ([]domain.Sale, error) {
	view, err := s.CurrentShift(ctx)
	if err != nil {
		return nil, err
	}
	return view.Sales, nil
}

// CloseShift settles the open shift into an immutable daily report. The
// response flags the session as closed so the client drops its token and
// returns to the login screen.
func (s *Service) CloseShift(ctx context.Context) (domain.CloseShiftResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.CloseShiftResponse{}, err
	}

	report, err := s.repo.CloseShift(ctx, actor.SupermarketID, time.Now().UTC())
	if err != nil {
		return domain.CloseShiftResponse{}, err
	}
	return domain.CloseShiftResponse{Report: *report, SessionClosed: true}, nil
}

func (s *Service) ListReports(ctx context.Context) ([]domain.DailyReport, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReports(ctx, actor.SupermarketID)
}

func (s *Service) LatestReport(ctx context.Context) (domain.DailyReport, error) {
	reports, err := s.ListReports(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}
	if len(reports) == 0 {
		return domain.DailyReport{}, store.ErrNotFound
	}
	return reports[0], nil
}
