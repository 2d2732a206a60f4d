// Package advisory turns shift data into owner-facing insights through a
// generative model. Every operation degrades gracefully: model outages
// produce an apology message or an empty result set, never a failed request.
package advisory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"mercadinho/backend/internal/cache"
	"mercadinho/backend/internal/domain"
)

// ErrDisabled is returned by generators that have no API key configured.
var ErrDisabled = errors.New("advisory: generator disabled")

const (
	// DisabledMessage is shown when no Gemini API key is configured.
	DisabledMessage = "A funcionalidade de IA está desativada. Configure a chave de API do Gemini para ativá-la."
	// FailureMessage is shown when the model call fails.
	FailureMessage = "Ocorreu um erro ao comunicar com a IA. Por favor, tente novamente mais tarde."
)

// Generator abstracts the model backend so tests can substitute a stub.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

// Disabled is the Generator used when GEMINI_API_KEY is unset.
type Disabled struct{}

func (Disabled) GenerateText(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) GenerateJSON(_ context.Context, _ string, _ *genai.Schema) (string, error) {
	return "", ErrDisabled
}

type Adviser struct {
	gen   Generator
	cache cache.AdvisoryCache
	ttl   time.Duration
}

func New(gen Generator, advisoryCache cache.AdvisoryCache, ttl time.Duration) *Adviser {
	if gen == nil {
		gen = Disabled{}
	}
	if advisoryCache == nil {
		advisoryCache = cache.NoopAdvisoryCache{}
	}
	return &Adviser{gen: gen, cache: advisoryCache, ttl: ttl}
}

// SalesAnalysis renders a markdown performance review of a closed-shift
// report. Failures come back as a readable apology, not an error.
func (a *Adviser) SalesAnalysis(ctx context.Context, report domain.DailyReport) string {
	var sales strings.Builder
	for _, sale := range report.Sales {
		items := make([]string, 0, len(sale.Items))
		for _, item := range sale.Items {
			items = append(items, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		}
		fmt.Fprintf(&sales, "      - Venda #%s: Total R$ %s, Itens: %s\n",
			shortID(sale.ID), sale.Total.StringFixed(2), strings.Join(items, ", "))
	}

	prompt := fmt.Sprintf(`Você é um analista de negócios especialista em varejo de supermercados. Analise os seguintes dados de vendas diárias e forneça insights acionáveis.

Dados do Relatório Diário:
- Data: %s
- Vendas Totais: R$ %s
- Caixa Inicial: R$ %s
- Total de Sangrias: R$ %s
- Caixa Final: R$ %s

Detalhes das Vendas:
%s
Por favor, forneça uma análise concisa em formato de tópicos (markdown), cobrindo:
1. **Resumo de Desempenho:** Um breve resumo do dia.
2. **Produtos em Destaque:** Quais produtos venderam mais ou parecem ser populares?
3. **Sugestões Estratégicas:** Com base nos dados, sugira uma ou duas ações que o proprietário do supermercado poderia tomar para aumentar as vendas ou otimizar as operações (ex: promoções, combos de produtos, ajuste de estoque).
4. **Observação Adicional:** Qualquer outra observação interessante.`,
		report.Date,
		report.TotalSales.StringFixed(2),
		report.InitialCash.StringFixed(2),
		report.TotalSangria.StringFixed(2),
		report.FinalCash.StringFixed(2),
		sales.String())

	return a.text(ctx, "sales-analysis", prompt)
}

// Ask answers a free-form owner question grounded strictly in a report.
func (a *Adviser) Ask(ctx context.Context, query string, report domain.DailyReport) string {
	reportJSON := mustJSON(report)
	prompt := fmt.Sprintf(`Você é um assistente de análise de dados para o proprietário de um supermercado. Sua tarefa é responder à pergunta do proprietário de forma direta e concisa, utilizando APENAS os dados fornecidos no objeto JSON do relatório diário. Não invente informações. Se os dados não forem suficientes para responder, informe isso claramente.

Pergunta do Proprietário: "%s"

Dados do Relatório Diário (JSON):
%s

Sua Resposta:`, query, reportJSON)

	return a.text(ctx, "ask", prompt)
}

// PromotionSuggestions drafts promotion ideas from the catalog and the most
// recent sales, steered by the owner's request.
func (a *Adviser) PromotionSuggestions(ctx context.Context, query string, products []domain.Product, sales []domain.Sale) string {
	type catalogEntry struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price string `json:"price"`
		Stock int    `json:"stock"`
	}
	catalog := make([]catalogEntry, 0, len(products))
	for _, p := range products {
		catalog = append(catalog, catalogEntry{ID: p.ID, Name: p.Name, Price: p.Price.StringFixed(2), Stock: p.Stock})
	}

	type saleSummary struct {
		Total     string   `json:"total"`
		ItemCount int      `json:"itemCount"`
		Items     []string `json:"items"`
	}
	recent := sales
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	summaries := make([]saleSummary, 0, len(recent))
	for _, sale := range recent {
		names := make([]string, 0, len(sale.Items))
		for _, item := range sale.Items {
			names = append(names, item.Name)
		}
		summaries = append(summaries, saleSummary{Total: sale.Total.StringFixed(2), ItemCount: len(sale.Items), Items: names})
	}

	prompt := fmt.Sprintf(`Você é um consultor de marketing especialista em varejo para supermercados. Sua tarefa é criar sugestões de promoções criativas e lucrativas com base na solicitação do proprietário e nos dados do catálogo de produtos e vendas recentes.

Solicitação do Proprietário: "%s"

Dados Disponíveis:
- Catálogo de Produtos (JSON): %s
- Resumo das Últimas 20 Vendas (JSON): %s

Instruções:
1. Analise a solicitação do proprietário.
2. Utilize os dados do catálogo e das vendas para embasar sua sugestão.
3. Forneça uma resposta clara e bem estruturada em formato markdown.
4. A sugestão deve incluir:
    - Um nome criativo para a promoção.
    - Os produtos envolvidos.
    - Uma sugestão de mecânica (ex: "compre X e leve Y", "desconto progressivo", "combo por preço fixo").
    - Uma sugestão de preço ou desconto.
    - Uma breve justificativa de por que essa promoção pode funcionar.

Sua Resposta:`, query, mustJSON(catalog), mustJSON(summaries))

	return a.text(ctx, "promotions", prompt)
}

// ReplenishmentSuggestions asks the model for restock quantities, but only
// for products already under their low-stock threshold. With nothing under
// threshold it returns an empty list without touching the model.
func (a *Adviser) ReplenishmentSuggestions(ctx context.Context, products []domain.Product, sales []domain.Sale) []domain.ReplenishmentSuggestion {
	soldByID := make(map[string]int)
	for _, sale := range sales {
		for _, item := range sale.Items {
			soldByID[item.ProductID] += item.Quantity
		}
	}

	type lowStockEntry struct {
		ID                string `json:"id"`
		Name              string `json:"name"`
		CurrentStock      int    `json:"currentStock"`
		LowStockThreshold int    `json:"lowStockThreshold"`
		SalesToday        int    `json:"salesToday"`
	}
	lowStock := make([]lowStockEntry, 0, len(products))
	for _, p := range products {
		if p.Stock >= p.LowStockThreshold {
			continue
		}
		lowStock = append(lowStock, lowStockEntry{
			ID:                p.ID,
			Name:              p.Name,
			CurrentStock:      p.Stock,
			LowStockThreshold: p.LowStockThreshold,
			SalesToday:        soldByID[p.ID],
		})
	}
	if len(lowStock) == 0 {
		return []domain.ReplenishmentSuggestion{}
	}

	prompt := fmt.Sprintf(`Você é um especialista em gestão de estoque de supermercado. Analise a lista de produtos com baixo estoque fornecida em JSON.
Com base nas vendas de hoje ("salesToday"), calcule uma sugestão de reposição ("suggestedQuantity") para cada produto.
A sugestão deve ser suficiente para cobrir as vendas de aproximadamente 7 dias, com uma pequena margem de segurança.
Se um produto está com baixo estoque mas não teve vendas hoje, sugira repor uma quantidade modesta (talvez o dobro do 'lowStockThreshold') como precaução.
Forneça uma breve justificativa para sua sugestão em "suggestionText".

Dados dos Produtos com Baixo Estoque:
%s

Responda APENAS com o JSON formatado de acordo com o schema.`, mustJSON(lowStock))

	schema := &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"productId":         {Type: genai.TypeString},
				"productName":       {Type: genai.TypeString},
				"currentStock":      {Type: genai.TypeInteger},
				"salesToday":        {Type: genai.TypeInteger},
				"suggestedQuantity": {Type: genai.TypeInteger},
				"suggestionText":    {Type: genai.TypeString},
			},
			Required: []string{"productId", "productName", "currentStock", "salesToday", "suggestedQuantity", "suggestionText"},
		},
	}

	var suggestions []domain.ReplenishmentSuggestion
	if !a.structured(ctx, "replenishment", prompt, schema, &suggestions) {
		return []domain.ReplenishmentSuggestion{}
	}
	return suggestions
}

// DemandForecast predicts tomorrow's five best-selling products.
func (a *Adviser) DemandForecast(ctx context.Context, products []domain.Product, sales []domain.Sale) []domain.DemandForecast {
	soldByID := make(map[string]int)
	for _, sale := range sales {
		for _, item := range sale.Items {
			soldByID[item.ProductID] += item.Quantity
		}
	}

	type productEntry struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Price        string `json:"price"`
		CurrentStock int    `json:"currentStock"`
		SalesToday   int    `json:"salesToday"`
	}
	data := make([]productEntry, 0, len(products))
	for _, p := range products {
		data = append(data, productEntry{
			ID:           p.ID,
			Name:         p.Name,
			Price:        p.Price.StringFixed(2),
			CurrentStock: p.Stock,
			SalesToday:   soldByID[p.ID],
		})
	}

	prompt := fmt.Sprintf(`Você é um analista de dados preditivo especialista em varejo. Analise os dados de vendas e o catálogo de produtos de um supermercado.
Sua tarefa é prever a demanda para os 5 produtos com maior potencial de venda para o próximo dia útil.
Baseie sua previsão nas vendas de hoje ("salesToday"), mas também considere o preço e o tipo de produto (ex: itens essenciais como leite e pão tendem a ter vendas mais consistentes).

Dados para Análise:
%s

Forneça uma resposta APENAS em formato JSON, seguindo o schema.
Para "predictedDemand", forneça uma faixa de vendas (ex: "15-20 unidades").
Para "reasoning", forneça uma justificativa muito curta e direta para a previsão.`, mustJSON(data))

	schema := &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"productName":     {Type: genai.TypeString},
				"predictedDemand": {Type: genai.TypeString},
				"reasoning":       {Type: genai.TypeString},
			},
			Required: []string{"productName", "predictedDemand", "reasoning"},
		},
	}

	var forecasts []domain.DemandForecast
	if !a.structured(ctx, "demand-forecast", prompt, schema, &forecasts) {
		return []domain.DemandForecast{}
	}
	return forecasts
}

// AnalyzeFeedback classifies a free-text customer comment.
func (a *Adviser) AnalyzeFeedback(ctx context.Context, feedback string) (*domain.FeedbackAnalysis, error) {
	prompt := fmt.Sprintf(`Você é um analista de experiência do cliente para um supermercado. Sua tarefa é analisar o feedback de um cliente e fornecer uma análise estruturada.

Feedback do Cliente: "%s"

Analise o texto e retorne um objeto JSON com a seguinte estrutura:
- sentiment: O sentimento geral do feedback. Pode ser "Positivo", "Negativo" ou "Misto".
- keyTopics: Um array de strings com os principais tópicos mencionados (ex: "Atendimento", "Qualidade do Produto", "Preço", "Limpeza").
- suggestion: Uma sugestão de ação curta e direta para o gerente do supermercado com base no feedback.

Responda APENAS com o JSON formatado.`, feedback)

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"sentiment":  {Type: genai.TypeString, Enum: []string{"Positivo", "Negativo", "Misto"}},
			"keyTopics":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"suggestion": {Type: genai.TypeString},
		},
		Required: []string{"sentiment", "keyTopics", "suggestion"},
	}

	var analysis domain.FeedbackAnalysis
	if !a.structured(ctx, "feedback", prompt, schema, &analysis) {
		return nil, ErrDisabled
	}
	return &analysis, nil
}

// SalesSpikeAlerts flags products selling unusually fast in the last hour.
// Fewer than ten sales in the shift, or an idle last hour, short-circuit to
// an empty result since there is no pattern to compare against.
func (a *Adviser) SalesSpikeAlerts(ctx context.Context, sales []domain.Sale, now time.Time) []domain.SalesSpikeAlert {
	if len(sales) < 10 {
		return []domain.SalesSpikeAlert{}
	}

	oneHourAgo := now.Add(-time.Hour)
	totalByName := make(map[string]int)
	recentByName := make(map[string]int)
	for _, sale := range sales {
		for _, item := range sale.Items {
			totalByName[item.Name] += item.Quantity
			if sale.CreatedAt.After(oneHourAgo) {
				recentByName[item.Name] += item.Quantity
			}
		}
	}
	if len(recentByName) == 0 {
		return []domain.SalesSpikeAlert{}
	}

	analysisData := map[string]map[string]int{
		"totalDaySalesSummary": totalByName,
		"lastHourSalesSummary": recentByName,
	}

	prompt := fmt.Sprintf(`Você é um monitor de vendas de varejo de IA. Analise os dados de vendas fornecidos.
"totalDaySalesSummary" contém a contagem total de vendas para cada produto hoje.
"lastHourSalesSummary" contém a contagem de vendas para cada produto apenas na última hora.

Sua tarefa é identificar quaisquer produtos que estejam vendendo a uma taxa anormalmente alta na última hora em comparação com seu padrão geral de vendas do dia.
Se um item vendeu, por exemplo, 5 unidades o dia todo, mas 4 dessas vendas ocorreram na última hora, isso é um pico de vendas.
Se um item vendeu 100 unidades ao longo do dia e 10 na última hora, isso é provavelmente um ritmo normal.

Analise os dados:
%s

Responda APENAS com um array JSON de objetos, onde cada objeto representa um pico de vendas.
Se nenhum pico for detectado, retorne um array vazio [].`, mustJSON(analysisData))

	schema := &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"productName": {Type: genai.TypeString},
				"observation": {Type: genai.TypeString},
			},
			Required: []string{"productName", "observation"},
		},
	}

	var alerts []domain.SalesSpikeAlert
	if !a.structured(ctx, "sales-spikes", prompt, schema, &alerts) {
		return []domain.SalesSpikeAlert{}
	}
	return alerts
}

func (a *Adviser) text(ctx context.Context, op string, prompt string) string {
	key := cacheKey(op, prompt)
	if cached, hit, err := a.cache.Get(ctx, key); err == nil && hit {
		return cached
	} else if err != nil {
		log.Printf("[advisory] cache get failed for %s: %v", op, err)
	}

	answer, err := a.gen.GenerateText(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return DisabledMessage
		}
		log.Printf("[advisory] %s generation failed: %v", op, err)
		return FailureMessage
	}

	if err := a.cache.Set(ctx, key, answer, a.ttl); err != nil {
		log.Printf("[advisory] cache set failed for %s: %v", op, err)
	}
	return answer
}

func (a *Adviser) structured(ctx context.Context, op string, prompt string, schema *genai.Schema, out any) bool {
	key := cacheKey(op, prompt)
	if cached, hit, err := a.cache.Get(ctx, key); err == nil && hit {
		if err := json.Unmarshal([]byte(cached), out); err == nil {
			return true
		}
	} else if err != nil {
		log.Printf("[advisory] cache get failed for %s: %v", op, err)
	}

	raw, err := a.gen.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			log.Printf("[advisory] %s generation failed: %v", op, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		log.Printf("[advisory] %s returned malformed JSON: %v", op, err)
		return false
	}

	if err := a.cache.Set(ctx, key, raw, a.ttl); err != nil {
		log.Printf("[advisory] cache set failed for %s: %v", op, err)
	}
	return true
}

func cacheKey(op string, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "advisory:" + op + ":" + hex.EncodeToString(sum[:])
}

func shortID(id string) string {
	if len(id) > 5 {
		return id[:5]
	}
	return id
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
