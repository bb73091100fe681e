package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"boutik/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("already exists")
)

// Repository is the persistence boundary. CreateSale and DeleteSale accept
// the derived ledger movements so implementations backed by a transactional
// engine can commit the sale and its movements as one unit; the in-memory
// implementation applies them under a single lock.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListActiveCategories(ctx context.Context, kind string) ([]domain.Category, error)
	GetCategory(ctx context.Context, kind string, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpsertCategoryByName(ctx context.Context, category domain.Category) error

	AppendMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	SumMovements(ctx context.Context, productID string) (int, error)
	SumMovementsByProduct(ctx context.Context) (map[string]int, error)

	CreateSale(ctx context.Context, sale domain.Sale, movements []domain.StockMovement) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	DeleteSale(ctx context.Context, id string, compensations []domain.StockMovement) error
	SumSaleTotals(ctx context.Context, from *time.Time, to *time.Time) (decimal.Decimal, error)

	CreateEntry(ctx context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error)
	GetEntry(ctx context.Context, id string) (*domain.FinancialEntry, error)
	ListEntries(ctx context.Context) ([]domain.FinancialEntry, error)
	ListEntriesBetween(ctx context.Context, from *time.Time, to *time.Time) ([]domain.FinancialEntry, error)
	UpdateEntry(ctx context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error)
	DeleteEntry(ctx context.Context, id string) error
	ResetFinance(ctx context.Context) error

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
