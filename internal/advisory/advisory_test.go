package advisory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
)

// stubGenerator returns canned responses and counts calls.
type stubGenerator struct {
	textResponse string
	jsonResponse string
	err          error
	textCalls    int
	jsonCalls    int
}

func (s *stubGenerator) GenerateText(context.Context, string) (string, error) {
	s.textCalls++
	return s.textResponse, s.err
}

func (s *stubGenerator) GenerateJSON(context.Context, string, *genai.Schema) (string, error) {
	s.jsonCalls++
	return s.jsonResponse, s.err
}

// memoryCache is a trivial AdvisoryCache for tests.
type memoryCache struct {
	values map[string]string
	sets   int
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	if c.values == nil {
		c.values = map[string]string{}
	}
	c.values[key] = value
	c.sets++
	return nil
}

func sampleReport() domain.DailyReport {
	return domain.DailyReport{
		ID:          "rpt-1",
		Date:        "2026-08-29",
		TotalSales:  decimal.RequireFromString("150.00"),
		InitialCash: decimal.RequireFromString("200.00"),
		FinalCash:   decimal.RequireFromString("350.00"),
	}
}

func TestSalesAnalysisReturnsDisabledMessage(t *testing.T) {
	adviser := New(Disabled{}, nil, 0)

	got := adviser.SalesAnalysis(context.Background(), sampleReport())
	if got != DisabledMessage {
		t.Fatalf("expected disabled message, got %q", got)
	}
}

func TestSalesAnalysisReturnsFailureMessageOnError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream timeout")}
	adviser := New(gen, nil, 0)

	got := adviser.SalesAnalysis(context.Background(), sampleReport())
	if got != FailureMessage {
		t.Fatalf("expected failure message, got %q", got)
	}
}

func TestSalesAnalysisCachesResponse(t *testing.T) {
	gen := &stubGenerator{textResponse: "Ótimo dia de vendas."}
	cache := &memoryCache{}
	adviser := New(gen, cache, time.Minute)
	ctx := context.Background()

	first := adviser.SalesAnalysis(ctx, sampleReport())
	second := adviser.SalesAnalysis(ctx, sampleReport())

	if first != "Ótimo dia de vendas." || second != first {
		t.Fatalf("unexpected responses %q / %q", first, second)
	}
	if gen.textCalls != 1 {
		t.Fatalf("expected 1 generator call with warm cache, got %d", gen.textCalls)
	}
	if cache.sets != 1 {
		t.Fatalf("expected 1 cache write, got %d", cache.sets)
	}
}

func TestReplenishmentSkipsModelWhenNothingIsLow(t *testing.T) {
	gen := &stubGenerator{jsonResponse: `[]`}
	adviser := New(gen, nil, 0)

	products := []domain.Product{
		{ID: "p1", Name: "Arroz", Stock: 50, LowStockThreshold: 10},
	}
	got := adviser.ReplenishmentSuggestions(context.Background(), products, nil)
	if len(got) != 0 {
		t.Fatalf("expected empty suggestions, got %d", len(got))
	}
	if gen.jsonCalls != 0 {
		t.Fatalf("expected no generator call, got %d", gen.jsonCalls)
	}
}

func TestReplenishmentParsesStructuredResponse(t *testing.T) {
	gen := &stubGenerator{jsonResponse: `[
		{"productId":"p1","productName":"Arroz","currentStock":3,"salesToday":7,"suggestedQuantity":20,"suggestionText":"Reponha antes do fim de semana."}
	]`}
	adviser := New(gen, nil, 0)

	products := []domain.Product{
		{ID: "p1", Name: "Arroz", Stock: 3, LowStockThreshold: 10},
	}
	got := adviser.ReplenishmentSuggestions(context.Background(), products, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].ProductID != "p1" || got[0].SuggestedQuantity != 20 {
		t.Fatalf("unexpected suggestion %+v", got[0])
	}
}

func TestSalesSpikeAlertsNeedEnoughSales(t *testing.T) {
	gen := &stubGenerator{jsonResponse: `[]`}
	adviser := New(gen, nil, 0)
	now := time.Now().UTC()

	sales := make([]domain.Sale, 0, 9)
	for i := 0; i < 9; i++ {
		sales = append(sales, domain.Sale{
			ID:        "sale-n",
			Total:     decimal.RequireFromString("10.00"),
			CreatedAt: now.Add(-5 * time.Minute),
			Items:     []domain.CartItem{{ProductID: "p1", Name: "Arroz", Quantity: 1}},
		})
	}

	got := adviser.SalesSpikeAlerts(context.Background(), sales, now)
	if len(got) != 0 {
		t.Fatalf("expected no alerts below volume floor, got %d", len(got))
	}
	if gen.jsonCalls != 0 {
		t.Fatalf("expected no generator call, got %d", gen.jsonCalls)
	}
}

func TestSalesSpikeAlertsIgnoreIdleLastHour(t *testing.T) {
	gen := &stubGenerator{jsonResponse: `[]`}
	adviser := New(gen, nil, 0)
	now := time.Now().UTC()

	sales := make([]domain.Sale, 0, 12)
	for i := 0; i < 12; i++ {
		sales = append(sales, domain.Sale{
			ID:        "sale-n",
			Total:     decimal.RequireFromString("10.00"),
			CreatedAt: now.Add(-3 * time.Hour),
			Items:     []domain.CartItem{{ProductID: "p1", Name: "Arroz", Quantity: 1}},
		})
	}

	got := adviser.SalesSpikeAlerts(context.Background(), sales, now)
	if len(got) != 0 {
		t.Fatalf("expected no alerts for idle last hour, got %d", len(got))
	}
	if gen.jsonCalls != 0 {
		t.Fatalf("expected no generator call, got %d", gen.jsonCalls)
	}
}

func TestAnalyzeFeedbackParsesSentiment(t *testing.T) {
	gen := &stubGenerator{jsonResponse: `{"sentiment":"Positivo","keyTopics":["atendimento"],"suggestion":"Mantenha o padrão."}`}
	adviser := New(gen, nil, 0)

	got, err := adviser.AnalyzeFeedback(context.Background(), "Adorei o atendimento!")
	if err != nil {
		t.Fatalf("analyze feedback: %v", err)
	}
	if got.Sentiment != "Positivo" {
		t.Fatalf("expected Positivo, got %q", got.Sentiment)
	}
	if len(got.KeyTopics) != 1 {
		t.Fatalf("expected 1 topic, got %d", len(got.KeyTopics))
	}
}

func TestAnalyzeFeedbackDisabled(t *testing.T) {
	adviser := New(Disabled{}, nil, 0)

	_, err := adviser.AnalyzeFeedback(context.Background(), "Adorei o atendimento!")
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
