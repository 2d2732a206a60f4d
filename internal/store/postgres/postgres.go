package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"mercadinho/backend/internal/domain"
	"mercadinho/backend/internal/store"
	"mercadinho/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS supermarkets (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			logo_url TEXT NOT NULL DEFAULT '',
			theme TEXT NOT NULL DEFAULT 'light',
			cnpj TEXT NOT NULL DEFAULT '',
			ie TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			name TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			low_stock_threshold INTEGER NOT NULL DEFAULT 10
		);
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			name TEXT NOT NULL,
			cpf TEXT NOT NULL DEFAULT '',
			points BIGINT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS shifts (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			operator_id TEXT NOT NULL,
			status TEXT NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			shift_id TEXT NOT NULL REFERENCES shifts(id),
			operator_id TEXT NOT NULL,
			customer_id TEXT,
			items JSONB NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS cash_flow (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			shift_id TEXT NOT NULL REFERENCES shifts(id),
			operator_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS daily_reports (
			id TEXT PRIMARY KEY,
			supermarket_id TEXT NOT NULL REFERENCES supermarkets(id),
			report_date TEXT NOT NULL,
			total_sales NUMERIC(12,2) NOT NULL,
			initial_cash NUMERIC(12,2) NOT NULL,
			total_sangria NUMERIC(12,2) NOT NULL,
			final_cash NUMERIC(12,2) NOT NULL,
			sales JSONB NOT NULL,
			cash_flow JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_products_supermarket ON products (supermarket_id, name);
		CREATE INDEX IF NOT EXISTS idx_sales_shift ON sales (supermarket_id, shift_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_cash_flow_shift ON cash_flow (supermarket_id, shift_id, created_at);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_open ON shifts (supermarket_id) WHERE status = 'open';
	`)
	return err
}

func (s *Store) Register(ctx context.Context, owner domain.User, market domain.Supermarket) (*domain.User, *domain.Supermarket, error) {
	if owner.Email == "" || owner.PasswordHash == "" || market.Name == "" {
		return nil, nil, store.ErrInvalidInput
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
	owner.Role = domain.RoleOwner
	owner.SupermarketID = market.ID
	market.OwnerID = owner.ID

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO supermarkets (id, owner_id, name, logo_url, theme, cnpj, ie, address, phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, market.ID, market.OwnerID, market.Name, market.LogoURL, string(market.Theme), market.CNPJ, market.IE, market.Address, market.Phone)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, supermarket_id, name, email, password_hash, role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, owner.ID, owner.SupermarketID, owner.Name, owner.Email, owner.PasswordHash, string(owner.Role), owner.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, store.ErrDuplicateEmail
		}
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	createdOwner := owner
	createdMarket := market
	return &createdOwner, &createdMarket, nil
}

const userColumns = `id, supermarket_id, name, email, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var role string
	err := row.Scan(&user.ID, &user.SupermarketID, &user.Name, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) CreateOperator(ctx context.Context, operator domain.User) (*domain.User, error) {
	if operator.Email == "" || operator.PasswordHash == "" || operator.SupermarketID == "" {
		return nil, store.ErrInvalidInput
	}
	if operator.ID == "" {
		operator.ID = xid.New("user")
	}
	if operator.CreatedAt.IsZero() {
		operator.CreatedAt = time.Now().UTC()
	}
	operator.Role = domain.RoleOperator

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, supermarket_id, name, email, password_hash, role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, operator.ID, operator.SupermarketID, operator.Name, operator.Email, operator.PasswordHash, string(operator.Role), operator.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, err
	}
	created := operator
	return &created, nil
}

func (s *Store) ListOperators(ctx context.Context, supermarketID string) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE supermarket_id = $1 AND role = 'operator'
		ORDER BY name
	`, supermarketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := make([]domain.User, 0, 8)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		operators = append(operators, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return operators, nil
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4
		WHERE id = $1
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateEmail
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := user
	return &updated, nil
}

func (s *Store) DeleteOperator(ctx context.Context, supermarketID string, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM users
		WHERE id = $1 AND supermarket_id = $2 AND role = 'operator'
	`, userID, supermarketID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const supermarketColumns = `id, owner_id, name, logo_url, theme, cnpj, ie, address, phone`

func scanSupermarket(row interface{ Scan(...any) error }) (*domain.Supermarket, error) {
	var market domain.Supermarket
	var theme string
	err := row.Scan(&market.ID, &market.OwnerID, &market.Name, &market.LogoURL, &theme, &market.CNPJ, &market.IE, &market.Address, &market.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	market.Theme = domain.Theme(theme)
	return &market, nil
}

func (s *Store) GetSupermarket(ctx context.Context, id string) (*domain.Supermarket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+supermarketColumns+` FROM supermarkets WHERE id = $1`, id)
	return scanSupermarket(row)
}

func (s *Store) UpdateSupermarket(ctx context.Context, market domain.Supermarket) (*domain.Supermarket, error) {
	if market.Name == "" || !market.Theme.Valid() {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE supermarkets
		SET name = $2, logo_url = $3, theme = $4, cnpj = $5, ie = $6, address = $7, phone = $8
		WHERE id = $1
	`, market.ID, market.Name, market.LogoURL, string(market.Theme), market.CNPJ, market.IE, market.Address, market.Phone)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := market
	return &updated, nil
}

const productColumns = `id, supermarket_id, name, price, stock, image_url, low_stock_threshold`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SupermarketID, &p.Name, &p.Price, &p.Stock, &p.ImageURL, &p.LowStockThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, supermarketID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE supermarket_id = $1
		ORDER BY name
	`, supermarketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, supermarketID string, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1 AND supermarket_id = $2
	`, id, supermarketID)
	return scanProduct(row)
}

func (s *Store) GetProductsByIDs(ctx context.Context, supermarketID string, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE supermarket_id = $1 AND id = ANY($2)
	`, supermarketID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SupermarketID == "" || product.Price.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.LowStockThreshold < 1 {
		product.LowStockThreshold = domain.DefaultLowStockThreshold
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, supermarket_id, name, price, stock, image_url, low_stock_threshold)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, product.ID, product.SupermarketID, product.Name, product.Price, product.Stock, product.ImageURL, product.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price.IsNegative() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, price = $4, stock = $5, image_url = $6, low_stock_threshold = $7
		WHERE id = $1 AND supermarket_id = $2
	`, product.ID, product.SupermarketID, product.Name, product.Price, product.Stock, product.ImageURL, product.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := product
	return &updated, nil
}

// UpdateProducts persists a bulk-edit batch in one transaction so a failure
// on any row rolls back the whole batch.
func (s *Store) UpdateProducts(ctx context.Context, supermarketID string, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range products {
		if p.Price.IsNegative() || p.Stock < 0 {
			return store.ErrInvalidInput
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET name = $3, price = $4, stock = $5, image_url = $6, low_stock_threshold = $7
			WHERE id = $1 AND supermarket_id = $2
		`, p.ID, supermarketID, p.Name, p.Price, p.Stock, p.ImageURL, p.LowStockThreshold)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteProduct(ctx context.Context, supermarketID string, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM products WHERE id = $1 AND supermarket_id = $2
	`, id, supermarketID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, supermarketID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supermarket_id, name, cpf, points
		FROM customers
		WHERE supermarket_id = $1
		ORDER BY name
	`, supermarketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.SupermarketID, &c.Name, &c.CPF, &c.Points); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, supermarketID string, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supermarket_id, name, cpf, points
		FROM customers
		WHERE id = $1 AND supermarket_id = $2
	`, id, supermarketID).Scan(&c.ID, &c.SupermarketID, &c.Name, &c.CPF, &c.Points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" || customer.SupermarketID == "" || customer.Points < 0 {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, supermarket_id, name, cpf, points)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.SupermarketID, customer.Name, customer.CPF, customer.Points)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) OpenShift(ctx context.Context, shift domain.Shift, opening domain.CashFlowEntry) (*domain.Shift, error) {
	if shift.SupermarketID == "" || shift.OperatorID == "" {
		return nil, store.ErrInvalidInput
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE shifts
		SET status = 'closed', closed_at = now()
		WHERE supermarket_id = $1 AND status = 'open'
	`, shift.SupermarketID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shifts (id, supermarket_id, operator_id, status, opened_at)
		VALUES ($1,$2,$3,$4,$5)
	`, shift.ID, shift.SupermarketID, shift.OperatorID, shift.Status, shift.OpenedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_flow (id, supermarket_id, shift_id, operator_id, type, amount, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, opening.ID, opening.SupermarketID, opening.ShiftID, opening.OperatorID, string(opening.Type), opening.Amount, opening.Description, opening.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := shift
	return &created, nil
}

func (s *Store) GetOpenShift(ctx context.Context, supermarketID string) (*domain.Shift, error) {
	var shift domain.Shift
	var closedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supermarket_id, operator_id, status, opened_at, closed_at
		FROM shifts
		WHERE supermarket_id = $1 AND status = 'open'
	`, supermarketID).Scan(&shift.ID, &shift.SupermarketID, &shift.OperatorID, &shift.Status, &shift.OpenedAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		shift.ClosedAt = &t
	}
	return &shift, nil
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, entry domain.CashFlowEntry, pointsDivisor int64, strictStock bool) (*domain.Sale, error) {
	if len(sale.Items) == 0 || sale.SupermarketID == "" || sale.ShiftID == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var openShiftID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM shifts WHERE supermarket_id = $1 AND status = 'open'
	`, sale.SupermarketID).Scan(&openShiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}
	if openShiftID != sale.ShiftID {
		return nil, store.ErrNoOpenShift
	}

	total := decimal.Zero
	items := make([]domain.CartItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}

		var name string
		var price decimal.Decimal
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT name, price, stock FROM products
			WHERE id = $1 AND supermarket_id = $2
			FOR UPDATE
		`, item.ProductID, sale.SupermarketID).Scan(&name, &price, &stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if strictStock && stock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = GREATEST(0, stock - $3)
			WHERE id = $1 AND supermarket_id = $2
		`, item.ProductID, sale.SupermarketID, item.Quantity)
		if err != nil {
			return nil, err
		}

		snapshot := domain.CartItem{
			ProductID: item.ProductID,
			Name:      name,
			UnitPrice: price,
			Quantity:  item.Quantity,
		}
		items = append(items, snapshot)
		total = total.Add(snapshot.LineTotal())
	}

	if sale.CustomerID != "" {
		var points int64
		if pointsDivisor > 0 {
			points = total.Round(2).Div(decimal.NewFromInt(pointsDivisor)).IntPart()
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE customers SET points = points + $3
			WHERE id = $1 AND supermarket_id = $2
		`, sale.CustomerID, sale.SupermarketID, maxInt64(points, 0))
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
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

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, supermarket_id, shift_id, operator_id, customer_id, items, total, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.SupermarketID, sale.ShiftID, sale.OperatorID, nullIfEmpty(sale.CustomerID), itemsJSON, sale.Total, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = xid.New("cf")
	}
	entry.SupermarketID = sale.SupermarketID
	entry.ShiftID = sale.ShiftID
	entry.OperatorID = sale.OperatorID
	entry.Type = domain.EntrySale
	entry.Amount = sale.Total
	entry.CreatedAt = sale.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_flow (id, supermarket_id, shift_id, operator_id, type, amount, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.SupermarketID, entry.ShiftID, entry.OperatorID, string(entry.Type), entry.Amount, entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) AppendCashFlow(ctx context.Context, entry domain.CashFlowEntry) (*domain.CashFlowEntry, error) {
	if entry.SupermarketID == "" || entry.ShiftID == "" || !entry.Type.Valid() {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("cf")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var openShiftID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM shifts WHERE supermarket_id = $1 AND status = 'open'
	`, entry.SupermarketID).Scan(&openShiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}
	if openShiftID != entry.ShiftID {
		return nil, store.ErrNoOpenShift
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cash_flow (id, supermarket_id, shift_id, operator_id, type, amount, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.SupermarketID, entry.ShiftID, entry.OperatorID, string(entry.Type), entry.Amount, entry.Description, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listShiftSales(ctx context.Context, q querier, supermarketID string, shiftID string) ([]domain.Sale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, supermarket_id, shift_id, operator_id, customer_id, items, total, created_at
		FROM sales
		WHERE supermarket_id = $1 AND shift_id = $2
		ORDER BY created_at, id
	`, supermarketID, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		var customerID sql.NullString
		var itemsJSON []byte
		if err := rows.Scan(&sale.ID, &sale.SupermarketID, &sale.ShiftID, &sale.OperatorID, &customerID, &itemsJSON, &sale.Total, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if customerID.Valid {
			sale.CustomerID = customerID.String
		}
		if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func listShiftCashFlow(ctx context.Context, q querier, supermarketID string, shiftID string) ([]domain.CashFlowEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, supermarket_id, shift_id, operator_id, type, amount, description, created_at
		FROM cash_flow
		WHERE supermarket_id = $1 AND shift_id = $2
		ORDER BY created_at, id
	`, supermarketID, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashFlowEntry, 0, 32)
	for rows.Next() {
		var entry domain.CashFlowEntry
		var entryType string
		if err := rows.Scan(&entry.ID, &entry.SupermarketID, &entry.ShiftID, &entry.OperatorID, &entryType, &entry.Amount, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Type = domain.EntryType(entryType)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListShiftSales(ctx context.Context, supermarketID string, shiftID string) ([]domain.Sale, error) {
	return listShiftSales(ctx, s.db, supermarketID, shiftID)
}

func (s *Store) ListShiftCashFlow(ctx context.Context, supermarketID string, shiftID string) ([]domain.CashFlowEntry, error) {
	return listShiftCashFlow(ctx, s.db, supermarketID, shiftID)
}

func (s *Store) GetSale(ctx context.Context, supermarketID string, id string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	var itemsJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supermarket_id, shift_id, operator_id, customer_id, items, total, created_at
		FROM sales
		WHERE id = $1 AND supermarket_id = $2
	`, id, supermarketID).Scan(&sale.ID, &sale.SupermarketID, &sale.ShiftID, &sale.OperatorID, &customerID, &itemsJSON, &sale.Total, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		sale.CustomerID = customerID.String
	}
	if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) CloseShift(ctx context.Context, supermarketID string, closedAt time.Time) (*domain.DailyReport, error) {
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	closedAt = closedAt.UTC()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var shiftID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM shifts
		WHERE supermarket_id = $1 AND status = 'open'
		FOR UPDATE
	`, supermarketID).Scan(&shiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}

	sales, err := listShiftSales(ctx, tx, supermarketID, shiftID)
	if err != nil {
		return nil, err
	}
	entries, err := listShiftCashFlow(ctx, tx, supermarketID, shiftID)
	if err != nil {
		return nil, err
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

	report := domain.DailyReport{
		ID:            xid.New("rpt"),
		SupermarketID: supermarketID,
		Date:          closedAt.Format("2006-01-02"),
		TotalSales:    totalSales.Round(2),
		InitialCash:   initialCash.Round(2),
		TotalSangria:  sangriaSum.Abs().Round(2),
		FinalCash:     initialCash.Add(totalSales).Add(sangriaSum).Round(2),
		Sales:         sales,
		CashFlow:      entries,
		CreatedAt:     closedAt,
	}

	salesJSON, err := json.Marshal(report.Sales)
	if err != nil {
		return nil, err
	}
	cashFlowJSON, err := json.Marshal(report.CashFlow)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_reports (id, supermarket_id, report_date, total_sales, initial_cash, total_sangria, final_cash, sales, cash_flow, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, report.ID, report.SupermarketID, report.Date, report.TotalSales, report.InitialCash, report.TotalSangria, report.FinalCash, salesJSON, cashFlowJSON, report.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE shifts SET status = 'closed', closed_at = $2 WHERE id = $1
	`, shiftID, closedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := report
	return &created, nil
}

func (s *Store) ListReports(ctx context.Context, supermarketID string) ([]domain.DailyReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supermarket_id, report_date, total_sales, initial_cash, total_sangria, final_cash, sales, cash_flow, created_at
		FROM daily_reports
		WHERE supermarket_id = $1
		ORDER BY created_at DESC
	`, supermarketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.DailyReport, 0, 32)
	for rows.Next() {
		var report domain.DailyReport
		var salesJSON, cashFlowJSON []byte
		if err := rows.Scan(&report.ID, &report.SupermarketID, &report.Date, &report.TotalSales, &report.InitialCash, &report.TotalSangria, &report.FinalCash, &salesJSON, &cashFlowJSON, &report.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(salesJSON, &report.Sales); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cashFlowJSON, &report.CashFlow); err != nil {
			return nil, err
		}
		report.CreatedAt = report.CreatedAt.UTC()
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func maxInt64(a int64, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
