package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
)

// reportForAnalysis prefers the latest closed report; mid-shift, with no
// report yet, it builds a live snapshot of the open shift so the adviser
// always has something to reason about.
func (s *Service) reportForAnalysis(ctx context.Context, supermarketID string) (domain.DailyReport, error) {
	reports, err := s.repo.ListReports(ctx, supermarketID)
	if err != nil {
		return domain.DailyReport{}, err
	}
	if len(reports) > 0 {
		return reports[0], nil
	}

	shift, err := s.repo.GetOpenShift(ctx, supermarketID)
	if err != nil {
		return domain.DailyReport{}, err
	}
	sales, err := s.repo.ListShiftSales(ctx, supermarketID, shift.ID)
	if err != nil {
		return domain.DailyReport{}, err
	}
	entries, err := s.repo.ListShiftCashFlow(ctx, supermarketID, shift.ID)
	if err != nil {
		return domain.DailyReport{}, err
	}

	initialCash := decimal.Zero
	sangriaSum := decimal.Zero
	for _, entry := range entries {
		switch entry.Type {
		case domain.EntryInitial:
			initialCash = initialCash.Add(entry.Amount)
		case domain.EntrySangria:
			sangriaSum = sangriaSum.Add(entry.Amount)
		}
	}
	totalSales := decimal.Zero
	for _, sale := range sales {
		totalSales = totalSales.Add(sale.Total)
	}

	return domain.DailyReport{
		SupermarketID: supermarketID,
		Date:          time.Now().UTC().Format("2006-01-02"),
		TotalSales:    totalSales.Round(2),
		InitialCash:   initialCash.Round(2),
		TotalSangria:  sangriaSum.Abs().Round(2),
		FinalCash:     initialCash.Add(totalSales).Add(sangriaSum).Round(2),
		Sales:         sales,
		CashFlow:      entries,
	}, nil
}

// openShiftSales returns the open shift's sales, or an empty slice when no
// shift is open. Advisory operations treat an idle store as having no sales
// rather than failing.
func (s *Service) openShiftSales(ctx context.Context, supermarketID string) ([]domain.Sale, error) {
	shift, err := s.repo.GetOpenShift(ctx, supermarketID)
	if err != nil {
		if errors.Is(err, store.ErrNoOpenShift) {
			return []domain.Sale{}, nil
		}
		return nil, err
	}
	return s.repo.ListShiftSales(ctx, supermarketID, shift.ID)
}

func (s *Service) AdvisorySalesAnalysis(ctx context.Context) (string, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return "", err
	}
	report, err := s.reportForAnalysis(ctx, actor.SupermarketID)
	if err != nil {
		return "", err
	}
	return s.adviser.SalesAnalysis(ctx, report), nil
}

func (s *Service) AdvisoryAsk(ctx context.Context, query string) (string, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", store.ErrInvalidInput
	}
	report, err := s.reportForAnalysis(ctx, actor.SupermarketID)
	if err != nil {
		return "", err
	}
	return s.adviser.Ask(ctx, query, report), nil
}

func (s *Service) AdvisoryPromotions(ctx context.Context, query string) (string, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", store.ErrInvalidInput
	}
	products, err := s.repo.ListProducts(ctx, actor.SupermarketID)
	if err != nil {
		return "", err
	}
	sales, err := s.openShiftSales(ctx, actor.SupermarketID)
	if err != nil {
		return "", err
	}
	return s.adviser.PromotionSuggestions(ctx, query, products, sales), nil
}

func (s *Service) AdvisoryReplenishment(ctx context.Context) ([]domain.ReplenishmentSuggestion, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, actor.SupermarketID)
	if err != nil {
		return nil, err
	}
	sales, err := s.openShiftSales(ctx, actor.SupermarketID)
	if err != nil {
		return nil, err
	}
	return s.adviser.ReplenishmentSuggestions(ctx, products, sales), nil
}

func (s *Service) AdvisoryDemandForecast(ctx context.Context) ([]domain.DemandForecast, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, actor.SupermarketID)
	if err != nil {
		return nil, err
	}
	sales, err := s.openShiftSales(ctx, actor.SupermarketID)
	if err != nil {
		return nil, err
	}
	return s.adviser.DemandForecast(ctx, products, sales), nil
}

func (s *Service) AdvisoryFeedback(ctx context.Context, text string) (*domain.FeedbackAnalysis, error) {
	if _, err := s.owner(ctx); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, store.ErrInvalidInput
	}
	return s.adviser.AnalyzeFeedback(ctx, text)
}

func (s *Service) AdvisorySalesSpikes(ctx context.Context) ([]domain.SalesSpikeAlert, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.openShiftSales(ctx, actor.SupermarketID)
	if err != nil {
		return nil, err
	}
	return s.adviser.SalesSpikeAlerts(ctx, sales, time.Now().UTC()), nil
}
