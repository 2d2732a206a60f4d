package store

import (
	"context"
	"errors"
	"time"

	"mercadinho/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoOpenShift       = errors.New("no open shift")
	ErrInvalidInput      = errors.New("invalid input")
)

// Repository is the persistence boundary. Implementations must keep
// CommitSale, OpenShift, CloseShift, Register and DeleteOperator atomic.
type Repository interface {
	// Identity and tenancy.
	Register(ctx context.Context, owner domain.User, market domain.Supermarket) (*domain.User, *domain.Supermarket, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateOperator(ctx context.Context, operator domain.User) (*domain.User, error)
	ListOperators(ctx context.Context, supermarketID string) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	DeleteOperator(ctx context.Context, supermarketID string, userID string) error
	GetSupermarket(ctx context.Context, id string) (*domain.Supermarket, error)
	UpdateSupermarket(ctx context.Context, market domain.Supermarket) (*domain.Supermarket, error)

	// Catalog and customers.
	ListProducts(ctx context.Context, supermarketID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, supermarketID string, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, supermarketID string, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProducts(ctx context.Context, supermarketID string, products []domain.Product) error
	DeleteProduct(ctx context.Context, supermarketID string, id string) error
	ListCustomers(ctx context.Context, supermarketID string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, supermarketID string, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	// Shift ledger. OpenShift abandons any previously open shift for the
	// supermarket and seeds the opening ledger entry in the same step.
	OpenShift(ctx context.Context, shift domain.Shift, opening domain.CashFlowEntry) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, supermarketID string) (*domain.Shift, error)
	// CommitSale recomputes the total from current prices and, when a
	// customer is attached, awards floor(total / pointsDivisor) points from
	// that same total so points can never disagree with the committed sale.
	CommitSale(ctx context.Context, sale domain.Sale, entry domain.CashFlowEntry, pointsDivisor int64, strictStock bool) (*domain.Sale, error)
	AppendCashFlow(ctx context.Context, entry domain.CashFlowEntry) (*domain.CashFlowEntry, error)
	ListShiftSales(ctx context.Context, supermarketID string, shiftID string) ([]domain.Sale, error)
	ListShiftCashFlow(ctx context.Context, supermarketID string, shiftID string) ([]domain.CashFlowEntry, error)
	GetSale(ctx context.Context, supermarketID string, id string) (*domain.Sale, error)
	CloseShift(ctx context.Context, supermarketID string, closedAt time.Time) (*domain.DailyReport, error)
	ListReports(ctx context.Context, supermarketID string) ([]domain.DailyReport, error)
}
