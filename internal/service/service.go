package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"mercadinho/backend/internal/advisory"
	"mercadinho/backend/internal/bulkedit"
	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ErrOwnerRequired is returned when an operator calls an owner-only
// operation. The HTTP layer maps it to 403.
var ErrOwnerRequired = errors.New("owner role required")

type Options struct {
	PointsDivisor int64
	OpeningCash   decimal.Decimal
	StrictStock   bool
}

type Service struct {
	repo    store.Repository
	adviser *advisory.Adviser
	opts    Options
}

func New(repo store.Repository, adviser *advisory.Adviser, opts Options) *Service {
	if opts.PointsDivisor < 1 {
		opts.PointsDivisor = 10
	}
	if opts.OpeningCash.IsNegative() {
		opts.OpeningCash = decimal.Zero
	}

	return &Service{
		repo:    repo,
		adviser: adviser,
		opts:    opts,
	}
}

func (s *Service) actor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("missing actor context")
	}
	return actor, nil
}

func (s *Service) owner(ctx context.Context) (domain.Actor, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleOwner {
		return domain.Actor{}, ErrOwnerRequired
	}
	return actor, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, actor.SupermarketID)
}

// ListLowStockProducts returns the catalog entries sitting under their
// low-stock threshold.
func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Stock < p.LowStockThreshold {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price.IsNegative() || req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	threshold := domain.DefaultLowStockThreshold
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		threshold = *req.LowStockThreshold
	}

	product := domain.Product{
		SupermarketID:     actor.SupermarketID,
		Name:              req.Name,
		Price:             req.Price.Round(2),
		Stock:             req.Stock,
		ImageURL:          strings.TrimSpace(req.ImageURL),
		LowStockThreshold: threshold,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProduct(ctx, actor.SupermarketID, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Price = req.Price.Round(2)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Stock = *req.Stock
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, err := s.owner(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteProduct(ctx, actor.SupermarketID, id)
}

// BulkUpdateProducts runs the directive engine over the selected products
// and persists the whole batch in one store call so a partial write never
// leaves the catalog half-updated.
func (s *Service) BulkUpdateProducts(ctx context.Context, payload domain.BulkUpdatePayload) (domain.BulkUpdateResponse, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return domain.BulkUpdateResponse{}, err
	}

	// A payload without directives is a cancelled edit, not an error.
	if payload.Price == nil && payload.Stock == nil {
		return domain.BulkUpdateResponse{Updated: []domain.Product{}}, nil
	}

	products, err := s.repo.GetProductsByIDs(ctx, actor.SupermarketID, payload.ProductIDs)
	if err != nil {
		return domain.BulkUpdateResponse{}, err
	}

	result, err := bulkedit.Apply(products, payload)
	if err != nil {
		if errors.Is(err, bulkedit.ErrNoProducts) {
			return domain.BulkUpdateResponse{}, store.ErrInvalidInput
		}
		return domain.BulkUpdateResponse{}, fmt.Errorf("%w: %s", store.ErrInvalidInput, err)
	}

	if len(result.Updated) > 0 {
		if err := s.repo.UpdateProducts(ctx, actor.SupermarketID, result.Updated); err != nil {
			return domain.BulkUpdateResponse{}, err
		}
	}

	return domain.BulkUpdateResponse{
		Updated:  result.Updated,
		Skipped:  result.Skipped,
		Modified: len(result.Updated),
	}, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, actor.SupermarketID)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidInput
	}

	customer := domain.Customer{
		SupermarketID: actor.SupermarketID,
		Name:          req.Name,
		CPF:           strings.TrimSpace(req.CPF),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) ListOperators(ctx context.Context) ([]domain.User, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOperators(ctx, actor.SupermarketID)
}

func (s *Service) CreateOperator(ctx context.Context, req domain.OperatorCreateRequest) (domain.User, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return domain.User{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return domain.User{}, store.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash operator password: %w", err)
	}

	operator := domain.User{
		SupermarketID: actor.SupermarketID,
		Name:          req.Name,
		Email:         req.Email,
		PasswordHash:  string(hash),
		Role:          domain.RoleOperator,
	}

	created, err := s.repo.CreateOperator(ctx, operator)
	if err != nil {
		return domain.User{}, err
	}
	return *created, nil
}

func (s *Service) UpdateOperator(ctx context.Context, id string, req domain.OperatorUpdateRequest) (domain.User, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return domain.User{}, err
	}

	existing, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if existing.SupermarketID != actor.SupermarketID || existing.Role != domain.RoleOperator {
		return domain.User{}, store.ErrNotFound
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.User{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email == "" {
			return domain.User{}, store.ErrInvalidInput
		}
		updated.Email = email
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return domain.User{}, store.ErrInvalidInput
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash operator password: %w", err)
		}
		updated.PasswordHash = string(hash)
	}

	saved, err := s.repo.UpdateUser(ctx, updated)
	if err != nil {
		return domain.User{}, err
	}
	return *saved, nil
}

// DeleteOperator removes an operator account. The manager PIN gate lives at
// the HTTP layer; by the time this runs the caller is a PIN-verified owner.
func (s *Service) DeleteOperator(ctx context.Context, id string) error {
	actor, err := s.owner(ctx)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidInput
	}
	if id == actor.UserID {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteOperator(ctx, actor.SupermarketID, id)
}

func (s *Service) GetSettings(ctx context.Context) (domain.Supermarket, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.Supermarket{}, err
	}
	market, err := s.repo.GetSupermarket(ctx, actor.SupermarketID)
	if err != nil {
		return domain.Supermarket{}, err
	}
	return *market, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Supermarket, error) {
	actor, err := s.owner(ctx)
	if err != nil {
		return domain.Supermarket{}, err
	}

	existing, err := s.repo.GetSupermarket(ctx, actor.SupermarketID)
	if err != nil {
		return domain.Supermarket{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Supermarket{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.LogoURL != nil {
		updated.LogoURL = strings.TrimSpace(*req.LogoURL)
	}
	if req.Theme != nil {
		if !req.Theme.Valid() {
			return domain.Supermarket{}, store.ErrInvalidInput
		}
		updated.Theme = *req.Theme
	}
	if req.CNPJ != nil {
		updated.CNPJ = strings.TrimSpace(*req.CNPJ)
	}
	if req.IE != nil {
		updated.IE = strings.TrimSpace(*req.IE)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}

	saved, err := s.repo.UpdateSupermarket(ctx, updated)
	if err != nil {
		return domain.Supermarket{}, err
	}
	return *saved, nil
}

// BuildReceipt renders a recorded sale as printable text plus the raw
// ESC/POS byte stream for a thermal printer bridge.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (domain.ReceiptResponse, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.ReceiptResponse{}, store.ErrInvalidInput
	}

	sale, err := s.repo.GetSale(ctx, actor.SupermarketID, saleID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	market, err := s.repo.GetSupermarket(ctx, actor.SupermarketID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	lines := []string{market.Name}
	if market.Address != "" {
		lines = append(lines, market.Address)
	}
	if market.CNPJ != "" {
		lines = append(lines, "CNPJ: "+market.CNPJ)
	}
	lines = append(lines,
		"========================",
		"Venda: "+sale.ID,
		"Data: "+sale.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if operator, err := s.repo.GetUserByID(ctx, sale.OperatorID); err == nil {
		lines = append(lines, "Operador: "+operator.Name)
	}
	lines = append(lines, "------------------------")
	for _, item := range sale.Items {
		lines = append(lines, item.Name)
		lines = append(lines, fmt.Sprintf("  %d x R$ %s = R$ %s",
			item.Quantity, item.UnitPrice.StringFixed(2), item.LineTotal().StringFixed(2)))
	}
	lines = append(lines,
		"------------------------",
		fmt.Sprintf("Total    : R$ %s", sale.Total.StringFixed(2)),
		"========================",
		"Obrigado pela preferência!",
		"",
	)

	escpos := []byte{0x1b, 0x40}
	for _, line := range lines {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)

	return domain.ReceiptResponse{
		SaleID:       sale.ID,
		PreviewText:  strings.Join(lines, "\n"),
		EscposBase64: base64.StdEncoding.EncodeToString(escpos),
		FileName:     fmt.Sprintf("receipt-%s.bin", sale.ID),
	}, nil
}

func (s *Service) OpenCashDrawer(ctx context.Context) (domain.CashDrawerOpenResponse, error) {
	if _, err := s.actor(ctx); err != nil {
		return domain.CashDrawerOpenResponse{}, err
	}
	// Standard ESC/POS pulse command for drawer kick on pin2.
	command := []byte{0x1b, 0x70, 0x00, 0x19, 0xfa}
	return domain.CashDrawerOpenResponse{
		CommandBase64: base64.StdEncoding.EncodeToString(command),
		Note:          "Send this ESC/POS pulse command via local printer bridge to open cash drawer.",
	}, nil
}
