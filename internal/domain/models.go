package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Roles form a closed set. Every route and service operation declares the
// roles allowed to call it; there is no per-resource ownership.
const (
	RoleManager = "manager"
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
)

// Stock movement types. Movements are immutable once written; corrections
// are made by appending a compensating movement, never by editing.
const (
	MovementPurchase   = "purchase"
	MovementSale       = "sale"
	MovementAdjustment = "manual_adjustment"
)

const (
	PaymentCash = "cash"
	PaymentWave = "wave"
	PaymentCard = "card"
)

const (
	EntryIncome  = "income"
	EntryExpense = "expense"
)

// Category kinds. Product and finance categories share a shape but live in
// separate namespaces; name uniqueness is per kind.
const (
	CategoryKindProduct = "product"
	CategoryKindFinance = "finance"
)

// Actor is the authenticated identity extracted from the bearer token and
// carried through the request context.
type Actor struct {
	UserID   string
	Username string
	Role     string
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Description string          `json:"description,omitempty"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Active      bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Category struct {
	ID        string    `json:"id"`
	Kind      string    `json:"-"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// StockMovement is one signed quantity change for a product. Positive means
// stock in, negative means stock out. Current stock is the sum of all
// movement quantities for the product and may legitimately go negative.
type StockMovement struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Type      string    `json:"type"`
	UserID    string    `json:"userId,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SaleItem captures the unit price at sale time; later product price edits
// do not change historical sales. ProductName is resolved for display when
// sales are listed and is not part of the stored sale row.
type SaleItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type Sale struct {
	ID            string          `json:"id"`
	Items         []SaleItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	UserID        string          `json:"userId,omitempty"`
	Username      string          `json:"username,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type FinancialEntry struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Description string          `json:"description,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type UserAccount struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UserSummary struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	User        UserSummary `json:"user"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type ProductCreateRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Description string          `json:"description"`
	CategoryID  string          `json:"categoryId"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"imageUrl"`
	Description *string          `json:"description"`
	CategoryID  *string          `json:"categoryId"`
	Active      *bool            `json:"isActive"`
}

type CategoryCreateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type CategoryUpdateRequest struct {
	Name   *string `json:"name"`
	Color  *string `json:"color"`
	Active *bool   `json:"isActive"`
}

type StockAdjustRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note"`
}

// LowStockItem is one row of the reorder listing: an active product together
// with its derived stock. Products with no movements appear with stock 0.
type LowStockItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Description string          `json:"description,omitempty"`
	Stock       int             `json:"stock"`
}

// SaleItemRequest carries the unit price agreed at the counter; a discount
// or negotiated price is captured as-is rather than the catalog price.
type SaleItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type SaleCreateRequest struct {
	Items         []SaleItemRequest `json:"items"`
	PaymentMethod string            `json:"paymentMethod"`
}

type EntryCreateRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	CategoryID  string          `json:"categoryId"`
	Description string          `json:"description"`
}

type EntryUpdateRequest struct {
	Type        *string          `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    *string          `json:"category"`
	CategoryID  *string          `json:"categoryId"`
	Description *string          `json:"description"`
}

// DashboardSummary is the period-bounded finance projection. Bounds are
// inclusive when present; a nil bound leaves that side open.
type DashboardSummary struct {
	From         *time.Time      `json:"from"`
	To           *time.Time      `json:"to"`
	SalesRevenue decimal.Decimal `json:"salesRevenue"`
	OtherIncome  decimal.Decimal `json:"otherIncome"`
	Expenses     decimal.Decimal `json:"expenses"`
	NetResult    decimal.Decimal `json:"netResult"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleManager, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentWave, PaymentCard:
		return true
	}
	return false
}

func ValidEntryType(entryType string) bool {
	switch entryType {
	case EntryIncome, EntryExpense:
		return true
	}
	return false
}

func ValidMovementType(movementType string) bool {
	switch movementType {
	case MovementPurchase, MovementSale, MovementAdjustment:
		return true
	}
	return false
}
