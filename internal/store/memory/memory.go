package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
	"mercadinho/backend/internal/xid"
)

type Store struct {
	mu            sync.RWMutex
	supermarkets  map[string]domain.Supermarket
	usersByID     map[string]domain.User
	usersByEmail  map[string]string
	products      map[string]domain.Product
	customers     map[string]domain.Customer
	shiftsByID    map[string]domain.Shift
	openShiftByMN map[string]string
	salesByID     map[string]*domain.Sale
	cashFlow      []domain.CashFlowEntry
	reportsByID   map[string]domain.DailyReport
}

func New() *Store {
	return &Store{
		supermarkets:  make(map[string]domain.Supermarket),
		usersByID:     make(map[string]domain.User),
		usersByEmail:  make(map[string]string),
		products:      make(map[string]domain.Product),
		customers:     make(map[string]domain.Customer),
		shiftsByID:    make(map[string]domain.Shift),
		openShiftByMN: make(map[string]string),
		salesByID:     make(map[string]*domain.Sale),
		cashFlow:      make([]domain.CashFlowEntry, 0, 128),
		reportsByID:   make(map[string]domain.DailyReport),
	}
}

// NewSeeded builds an in-memory store preloaded with a demo supermarket,
// an owner and an operator account, a small catalog and one customer.
// Seed credentials come from SEED_OWNER_PASSWORD and SEED_OPERATOR_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning printed to stdout.
// These credentials are never used in production (the backend uses PostgreSQL
// when DATABASE_URL is set).
func NewSeeded() *Store {
	s := New()

	ownerPwd := envOr("SEED_OWNER_PASSWORD", "dono12345")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "caixa12345")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_OPERATOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	market := domain.Supermarket{
		ID:      "mkt-demo",
		Name:    "Mercadinho Demo",
		Theme:   domain.ThemeLight,
		CNPJ:    "00.000.000/0001-00",
		Address: "Rua das Flores, 123",
		Phone:   "(11) 99999-0000",
	}

	owner := domain.User{
		ID:            "user-owner-demo",
		SupermarketID: market.ID,
		Name:          "Dono Demo",
		Email:         "dono@mercadinho.dev",
		PasswordHash:  mustHash(ownerPwd, "owner"),
		Role:          domain.RoleOwner,
		CreatedAt:     now,
	}
	market.OwnerID = owner.ID

	operator := domain.User{
		ID:            "user-operator-demo",
		SupermarketID: market.ID,
		Name:          "Caixa Demo",
		Email:         "caixa@mercadinho.dev",
		PasswordHash:  mustHash(operatorPwd, "operator"),
		Role:          domain.RoleOperator,
		CreatedAt:     now,
	}

	s.supermarkets[market.ID] = market
	s.usersByID[owner.ID] = owner
	s.usersByEmail[owner.Email] = owner.ID
	s.usersByID[operator.ID] = operator
	s.usersByEmail[operator.Email] = operator.ID

	seedProducts := []domain.Product{
		{ID: "prod-arroz-01", Name: "Arroz Branco 5kg", Price: decimal.RequireFromString("24.90"), Stock: 48, LowStockThreshold: 10},
		{ID: "prod-feijao-01", Name: "Feijao Carioca 1kg", Price: decimal.RequireFromString("8.50"), Stock: 60, LowStockThreshold: 12},
		{ID: "prod-leite-01", Name: "Leite Integral 1L", Price: decimal.RequireFromString("5.80"), Stock: 72, LowStockThreshold: 15},
		{ID: "prod-cafe-01", Name: "Cafe Torrado 500g", Price: decimal.RequireFromString("16.90"), Stock: 30, LowStockThreshold: 8},
		{ID: "prod-acucar-01", Name: "Acucar Refinado 1kg", Price: decimal.RequireFromString("4.70"), Stock: 55, LowStockThreshold: 10},
		{ID: "prod-pao-01", Name: "Pao de Forma", Price: decimal.RequireFromString("7.90"), Stock: 25, LowStockThreshold: 10},
		{ID: "prod-oleo-01", Name: "Oleo de Soja 900ml", Price: decimal.RequireFromString("6.40"), Stock: 40, LowStockThreshold: 10},
		{ID: "prod-sabao-01", Name: "Sabao em Po 1kg", Price: decimal.RequireFromString("12.30"), Stock: 18, LowStockThreshold: 6},
	}
	for _, p := range seedProducts {
		p.SupermarketID = market.ID
		s.products[p.ID] = p
	}

	s.customers["cust-demo-01"] = domain.Customer{
		ID:            "cust-demo-01",
		SupermarketID: market.ID,
		Name:          "Maria Silva",
		CPF:           "123.456.789-00",
		Points:        0,
	}

	return s
}

func mustHash(password string, who string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password for %s: %v", who, err)
	}
	return string(hash)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) Register(_ context.Context, owner domain.User, market domain.Supermarket) (*domain.User, *domain.Supermarket, error) {
	email := strings.ToLower(strings.TrimSpace(owner.Email))
	if email == "" || owner.PasswordHash == "" || strings.TrimSpace(market.Name) == "" {
		return nil, nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return nil, nil, store.ErrDuplicateEmail
	}

	if owner.ID == "" {
		owner.ID = xid.New("user")
	}
	if market.ID == "" {
		market.ID = xid.New("mkt")
	}
	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = time.Now().UTC()
	}
	if !market.Theme.Valid() {
		market.Theme = domain.ThemeLight
	}
	owner.Email = email
	owner.Role = domain.RoleOwner
	owner.SupermarketID = market.ID
	market.OwnerID = owner.ID

	s.usersByID[owner.ID] = owner
	s.usersByEmail[email] = owner.ID
	s.supermarkets[market.ID] = market

	createdOwner := owner
	createdMarket := market
	return &createdOwner, &createdMarket, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrNotFound
	}
	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) CreateOperator(_ context.Context, operator domain.User) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(operator.Email))
	if email == "" || operator.PasswordHash == "" || operator.SupermarketID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[email]; exists {
		return nil, store.ErrDuplicateEmail
	}
	if operator.ID == "" {
		operator.ID = xid.New("user")
	}
	if operator.CreatedAt.IsZero() {
		operator.CreatedAt = time.Now().UTC()
	}
	operator.Email = email
	operator.Role = domain.RoleOperator

	s.usersByID[operator.ID] = operator
	s.usersByEmail[email] = operator.ID
	created := operator
	return &created, nil
}

func (s *Store) ListOperators(_ context.Context, supermarketID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	operators := make([]domain.User, 0, 8)
	for _, user := range s.usersByID {
		if user.SupermarketID != supermarketID || user.Role != domain.RoleOperator {
			continue
		}
		operators = append(operators, user)
	}
	slices.SortFunc(operators, func(a, b domain.User) int {
		return cmpString(a.Name, b.Name)
	})
	return operators, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.usersByID[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return nil, store.ErrInvalidInput
	}
	if email != existing.Email {
		if _, taken := s.usersByEmail[email]; taken {
			return nil, store.ErrDuplicateEmail
		}
		delete(s.usersByEmail, existing.Email)
		s.usersByEmail[email] = user.ID
	}
	user.Email = email

	s.usersByID[user.ID] = user
	updated := user
	return &updated, nil
}

func (s *Store) DeleteOperator(_ context.Context, supermarketID string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[userID]
	if !ok || user.SupermarketID != supermarketID {
		return store.ErrNotFound
	}
	if user.Role != domain.RoleOperator {
		return store.ErrInvalidInput
	}

	delete(s.usersByID, userID)
	delete(s.usersByEmail, user.Email)
	return nil
}

func (s *Store) GetSupermarket(_ context.Context, id string) (*domain.Supermarket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	market, ok := s.supermarkets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyMarket := market
	return &copyMarket, nil
}

func (s *Store) UpdateSupermarket(_ context.Context, market domain.Supermarket) (*domain.Supermarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.supermarkets[market.ID]; !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(market.Name) == "" || !market.Theme.Valid() {
		return nil, store.ErrInvalidInput
	}

	s.supermarkets[market.ID] = market
	updated := market
	return &updated, nil
}

func (s *Store) ListProducts(_ context.Context, supermarketID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.SupermarketID != supermarketID {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, supermarketID string, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok || product.SupermarketID != supermarketID {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, supermarketID string, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.SupermarketID == supermarketID {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.SupermarketID == "" {
		return nil, store.ErrInvalidInput
	}
	if product.Price.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.LowStockThreshold < 1 {
		product.LowStockThreshold = domain.DefaultLowStockThreshold
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.Name) == "" || product.Price.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok || existing.SupermarketID != product.SupermarketID {
		return nil, store.ErrNotFound
	}
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) UpdateProducts(_ context.Context, supermarketID string, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		existing, ok := s.products[p.ID]
		if !ok || existing.SupermarketID != supermarketID {
			return store.ErrNotFound
		}
		if p.Price.IsNegative() || p.Stock < 0 {
			return store.ErrInvalidInput
		}
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, supermarketID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok || product.SupermarketID != supermarketID {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context, supermarketID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.SupermarketID != supermarketID {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, supermarketID string, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok || customer.SupermarketID != supermarketID {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" || customer.SupermarketID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.Points < 0 {
		return nil, store.ErrInvalidInput
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

// OpenShift closes any shift still open for the supermarket and opens a
// fresh one, seeding the opening float entry under the same lock.
func (s *Store) OpenShift(_ context.Context, shift domain.Shift, opening domain.CashFlowEntry) (*domain.Shift, error) {
	if shift.SupermarketID == "" || shift.OperatorID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prevID, exists := s.openShiftByMN[shift.SupermarketID]; exists {
		prev := s.shiftsByID[prevID]
		now := time.Now().UTC()
		prev.Status = domain.ShiftStatusClosed
		prev.ClosedAt = &now
		s.shiftsByID[prevID] = prev
	}

	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ClosedAt = nil

	if opening.ID == "" {
		opening.ID = xid.New("cf")
	}
	if opening.CreatedAt.IsZero() {
		opening.CreatedAt = shift.OpenedAt
	}
	opening.SupermarketID = shift.SupermarketID
	opening.ShiftID = shift.ID
	opening.OperatorID = shift.OperatorID
	opening.Type = domain.EntryInitial

	s.shiftsByID[shift.ID] = shift
	s.openShiftByMN[shift.SupermarketID] = shift.ID
	s.cashFlow = append(s.cashFlow, opening)

	copyShift := shift
	return &copyShift, nil
}

func (s *Store) GetOpenShift(_ context.Context, supermarketID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, exists := s.openShiftByMN[supermarketID]
	if !exists {
		return nil, store.ErrNoOpenShift
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNoOpenShift
	}
	copyShift := shift
	return &copyShift, nil
}

// CommitSale applies the whole settlement in one step: sale insert, stock
// decrement, point accrual and the ledger entry. Stock clamps at zero unless
// strictStock is set, in which case oversell fails the whole sale.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale, entry domain.CashFlowEntry, pointsDivisor int64, strictStock bool) (*domain.Sale, error) {
	if len(sale.Items) == 0 || sale.SupermarketID == "" || sale.ShiftID == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	openID, ok := s.openShiftByMN[sale.SupermarketID]
	if !ok || openID != sale.ShiftID {
		return nil, store.ErrNoOpenShift
	}

	total := decimal.Zero
	items := make([]domain.CartItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		product, exists := s.products[item.ProductID]
		if !exists || product.SupermarketID != sale.SupermarketID {
			return nil, store.ErrNotFound
		}
		if strictStock && product.Stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		snapshot := domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
		}
		items = append(items, snapshot)
		total = total.Add(snapshot.LineTotal())
	}

	var customer *domain.Customer
	if sale.CustomerID != "" {
		c, exists := s.customers[sale.CustomerID]
		if !exists || c.SupermarketID != sale.SupermarketID {
			return nil, store.ErrNotFound
		}
		customer = &c
	}

	for _, item := range items {
		product := s.products[item.ProductID]
		product.Stock -= item.Quantity
		if product.Stock < 0 {
			product.Stock = 0
		}
		s.products[product.ID] = product
	}

	if customer != nil && pointsDivisor > 0 {
		points := total.Round(2).Div(decimal.NewFromInt(pointsDivisor)).IntPart()
		if points > 0 {
			customer.Points += points
			s.customers[customer.ID] = *customer
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Items = items
	sale.Total = total.Round(2)

	if entry.ID == "" {
		entry.ID = xid.New("cf")
	}
	entry.SupermarketID = sale.SupermarketID
	entry.ShiftID = sale.ShiftID
	entry.OperatorID = sale.OperatorID
	entry.Type = domain.EntrySale
	entry.Amount = sale.Total
	entry.CreatedAt = sale.CreatedAt

	s.salesByID[sale.ID] = cloneSale(&sale)
	s.cashFlow = append(s.cashFlow, entry)

	return cloneSale(&sale), nil
}

func (s *Store) AppendCashFlow(_ context.Context, entry domain.CashFlowEntry) (*domain.CashFlowEntry, error) {
	if entry.SupermarketID == "" || entry.ShiftID == "" || !entry.Type.Valid() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	openID, ok := s.openShiftByMN[entry.SupermarketID]
	if !ok || openID != entry.ShiftID {
		return nil, store.ErrNoOpenShift
	}
	if entry.ID == "" {
		entry.ID = xid.New("cf")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.cashFlow = append(s.cashFlow, entry)
	created := entry
	return &created, nil
}

func (s *Store) ListShiftSales(_ context.Context, supermarketID string, shiftID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectShiftSales(supermarketID, shiftID), nil
}

func (s *Store) ListShiftCashFlow(_ context.Context, supermarketID string, shiftID string) ([]domain.CashFlowEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collectShiftCashFlow(supermarketID, shiftID), nil
}

func (s *Store) GetSale(_ context.Context, supermarketID string, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok || sale.SupermarketID != supermarketID {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

// CloseShift settles the open shift: it sums the ledger, snapshots the sales
// and entries into an immutable report, and marks the shift closed.
func (s *Store) CloseShift(_ context.Context, supermarketID string, closedAt time.Time) (*domain.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shiftID, exists := s.openShiftByMN[supermarketID]
	if !exists {
		return nil, store.ErrNoOpenShift
	}
	shift := s.shiftsByID[shiftID]
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	sales := s.collectShiftSales(supermarketID, shiftID)
	entries := s.collectShiftCashFlow(supermarketID, shiftID)

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

	report := domain.DailyReport{
		ID:            xid.New("rpt"),
		SupermarketID: supermarketID,
		Date:          closedAt.UTC().Format("2006-01-02"),
		TotalSales:    totalSales.Round(2),
		InitialCash:   initialCash.Round(2),
		TotalSangria:  sangriaSum.Abs().Round(2),
		FinalCash:     initialCash.Add(totalSales).Add(sangriaSum).Round(2),
		Sales:         sales,
		CashFlow:      entries,
		CreatedAt:     closedAt.UTC(),
	}

	shift.Status = domain.ShiftStatusClosed
	closed := closedAt.UTC()
	shift.ClosedAt = &closed
	s.shiftsByID[shiftID] = shift
	delete(s.openShiftByMN, supermarketID)
	s.reportsByID[report.ID] = cloneReport(report)

	created := cloneReport(report)
	return &created, nil
}

func (s *Store) ListReports(_ context.Context, supermarketID string) ([]domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.DailyReport, 0, len(s.reportsByID))
	for _, report := range s.reportsByID {
		if report.SupermarketID != supermarketID {
			continue
		}
		reports = append(reports, cloneReport(report))
	}
	slices.SortFunc(reports, func(a, b domain.DailyReport) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return reports, nil
}

func (s *Store) collectShiftSales(supermarketID string, shiftID string) []domain.Sale {
	sales := make([]domain.Sale, 0, 32)
	for _, sale := range s.salesByID {
		if sale.SupermarketID != supermarketID || sale.ShiftID != shiftID {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return sales
}

func (s *Store) collectShiftCashFlow(supermarketID string, shiftID string) []domain.CashFlowEntry {
	entries := make([]domain.CashFlowEntry, 0, 32)
	for _, entry := range s.cashFlow {
		if entry.SupermarketID != supermarketID || entry.ShiftID != shiftID {
			continue
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b domain.CashFlowEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return entries
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.CartItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}

func cloneReport(src domain.DailyReport) domain.DailyReport {
	dup := src
	sales := make([]domain.Sale, len(src.Sales))
	for i := range src.Sales {
		sales[i] = *cloneSale(&src.Sales[i])
	}
	dup.Sales = sales
	entries := make([]domain.CashFlowEntry, len(src.CashFlow))
	copy(entries, src.CashFlow)
	dup.CashFlow = entries
	return dup
}
