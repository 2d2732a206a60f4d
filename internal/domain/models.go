package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the set of user roles. Authorization decisions switch on this type
// rather than comparing raw strings.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleOperator Role = "operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleOperator:
		return true
	default:
		return false
	}
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeGreen Theme = "green"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeGreen:
		return true
	default:
		return false
	}
}

type Supermarket struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
	Theme   Theme  `json:"theme"`
	CNPJ    string `json:"cnpj,omitempty"`
	IE      string `json:"ie,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

type User struct {
	ID            string    `json:"id"`
	SupermarketID string    `json:"supermarket_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

const DefaultLowStockThreshold = 10

type Product struct {
	ID                string          `json:"id"`
	SupermarketID     string          `json:"supermarket_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	ImageURL          string          `json:"image_url,omitempty"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

type Customer struct {
	ID            string `json:"id"`
	SupermarketID string `json:"supermarket_id"`
	Name          string `json:"name"`
	CPF           string `json:"cpf"`
	Points        int64  `json:"points"`
}

// CartItem snapshots a product at sale time. Later catalog edits never touch
// recorded sales.
type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID            string          `json:"id"`
	SupermarketID string          `json:"supermarket_id"`
	ShiftID       string          `json:"shift_id"`
	OperatorID    string          `json:"operator_id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Items         []CartItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"timestamp"`
}

// EntryType classifies ledger entries. Sangria entries carry a negative
// amount; initial and sale entries are non-negative.
type EntryType string

const (
	EntryInitial EntryType = "initial"
	EntrySale    EntryType = "sale"
	EntrySangria EntryType = "sangria"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryInitial, EntrySale, EntrySangria:
		return true
	default:
		return false
	}
}

type CashFlowEntry struct {
	ID            string          `json:"id"`
	SupermarketID string          `json:"supermarket_id"`
	ShiftID       string          `json:"shift_id"`
	OperatorID    string          `json:"operator_id"`
	Type          EntryType       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"timestamp"`
}

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

type Shift struct {
	ID            string     `json:"id"`
	SupermarketID string     `json:"supermarket_id"`
	OperatorID    string     `json:"operator_id"`
	Status        string     `json:"status"`
	OpenedAt      time.Time  `json:"opened_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// DailyReport is an immutable snapshot taken at shift close. It copies the
// shift's sales and ledger by value so later writes cannot alter it.
type DailyReport struct {
	ID            string          `json:"id"`
	SupermarketID string          `json:"supermarket_id"`
	Date          string          `json:"date"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	InitialCash   decimal.Decimal `json:"initial_cash"`
	TotalSangria  decimal.Decimal `json:"total_sangria"`
	FinalCash     decimal.Decimal `json:"final_cash"`
	Sales         []Sale          `json:"sales"`
	CashFlow      []CashFlowEntry `json:"cash_flow"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Actor struct {
	UserID        string
	SupermarketID string
	Role          Role
}

type RegisterRequest struct {
	OwnerName       string `json:"owner_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	SupermarketName string `json:"supermarket_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	Role        Role        `json:"role"`
	ExpiresAt   string      `json:"expires_at"`
	User        User        `json:"user"`
	Supermarket Supermarket `json:"supermarket"`
	Shift       *Shift      `json:"shift,omitempty"`
}

type ProductCreateRequest struct {
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	ImageURL          string          `json:"image_url,omitempty"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty"`
}

type ProductUpdateRequest struct {
	Name              *string          `json:"name,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Stock             *int             `json:"stock,omitempty"`
	ImageURL          *string          `json:"image_url,omitempty"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty"`
}

type CustomerCreateRequest struct {
	Name string `json:"name"`
	CPF  string `json:"cpf"`
}

type OperatorCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OperatorUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

type OperatorDeleteRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type SettingsUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
	Theme   *Theme  `json:"theme,omitempty"`
	CNPJ    *string `json:"cnpj,omitempty"`
	IE      *string `json:"ie,omitempty"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

type SaleItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SaleRequest struct {
	Items      []SaleItemRequest `json:"items"`
	CustomerID string            `json:"customer_id,omitempty"`
}

type WithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type ShiftView struct {
	Shift    Shift           `json:"shift"`
	Sales    []Sale          `json:"sales"`
	CashFlow []CashFlowEntry `json:"cash_flow"`
}

type CloseShiftResponse struct {
	Report        DailyReport `json:"report"`
	SessionClosed bool        `json:"session_closed"`
}

// PriceOp enumerates the bulk price directives. Set is idempotent; the delta
// and percent operations are not.
type PriceOp string

const (
	PriceSet             PriceOp = "set"
	PriceIncreaseValue   PriceOp = "increase_value"
	PriceDecreaseValue   PriceOp = "decrease_value"
	PriceIncreasePercent PriceOp = "increase_percent"
	PriceDecreasePercent PriceOp = "decrease_percent"
)

func (op PriceOp) Valid() bool {
	switch op {
	case PriceSet, PriceIncreaseValue, PriceDecreaseValue, PriceIncreasePercent, PriceDecreasePercent:
		return true
	default:
		return false
	}
}

type StockOp string

const (
	StockSet           StockOp = "set"
	StockIncreaseValue StockOp = "increase_value"
	StockDecreaseValue StockOp = "decrease_value"
)

func (op StockOp) Valid() bool {
	switch op {
	case StockSet, StockIncreaseValue, StockDecreaseValue:
		return true
	default:
		return false
	}
}

type PriceDirective struct {
	Operation PriceOp         `json:"operation"`
	Value     decimal.Decimal `json:"value"`
}

type StockDirective struct {
	Operation StockOp `json:"operation"`
	Value     int     `json:"value"`
}

type BulkUpdatePayload struct {
	ProductIDs []string        `json:"product_ids"`
	Price      *PriceDirective `json:"price,omitempty"`
	Stock      *StockDirective `json:"stock,omitempty"`
}

type BulkUpdateResponse struct {
	Updated  []Product `json:"updated"`
	Skipped  []string  `json:"skipped,omitempty"`
	Modified int       `json:"modified"`
}

type ReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}

type CashDrawerOpenResponse struct {
	CommandBase64 string `json:"command_base64"`
	Note          string `json:"note"`
}

type ReplenishmentSuggestion struct {
	ProductID         string `json:"productId"`
	ProductName       string `json:"productName"`
	CurrentStock      int    `json:"currentStock"`
	SalesToday        int    `json:"salesToday"`
	SuggestedQuantity int    `json:"suggestedQuantity"`
	SuggestionText    string `json:"suggestionText"`
}

type DemandForecast struct {
	ProductName     string `json:"productName"`
	PredictedDemand string `json:"predictedDemand"`
	Reasoning       string `json:"reasoning"`
}

type FeedbackAnalysis struct {
	Sentiment  string   `json:"sentiment"`
	KeyTopics  []string `json:"keyTopics"`
	Suggestion string   `json:"suggestion"`
}

type SalesSpikeAlert struct {
	ProductName string `json:"productName"`
	Observation string `json:"observation"`
}

type AdvisoryQueryRequest struct {
	Query string `json:"query"`
}

type FeedbackRequest struct {
	Text string `json:"text"`
}
