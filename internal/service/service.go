package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"boutik/backend/internal/cache"
	"boutik/backend/internal/domain"
	"boutik/backend/internal/store"
	"boutik/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Default low-stock band, inclusive on both ends. A product with zero
// movements sits at stock 0 and is inside the band: "never stocked" is a
// reorder signal, not an error.
const (
	DefaultLowStockMin = 0
	DefaultLowStockMax = 10
)

type Service struct {
	repo           store.Repository
	idempotency    cache.SaleIdempotencyStore
	idempotencyTTL time.Duration
}

func New(repo store.Repository, idempotency cache.SaleIdempotencyStore, idempotencyTTL time.Duration) *Service {
	if idempotency == nil {
		idempotency = cache.NoopSaleIdempotencyStore{}
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &Service{
		repo:           repo,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
	}
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, fmt.Errorf("authentication required")
	}
	if slices.Contains(roles, actor.Role) {
		return actor, nil
	}
	return actor, fmt.Errorf("%s role required", strings.Join(roles, " or "))
}

var defaultProductCategories = []domain.Category{
	{Name: "Boîtes / coffrets", Color: "#0ea5e9"},
	{Name: "Sacs / pochettes", Color: "#22c55e"},
	{Name: "Rubans / nœuds", Color: "#6366f1"},
	{Name: "Décoration de table", Color: "#f97316"},
	{Name: "Décoration salle", Color: "#a855f7"},
	{Name: "Accessoires divers", Color: "#64748b"},
}

var defaultFinanceCategories = []domain.Category{
	{Name: "Ventes produits", Color: "#22c55e"},
	{Name: "Location décoration", Color: "#0ea5e9"},
	{Name: "Acomptes clients", Color: "#6366f1"},
	{Name: "Autres entrées", Color: "#4ade80"},
	{Name: "Achat stock packaging", Color: "#f97316"},
	{Name: "Décoration / consommables", Color: "#facc15"},
	{Name: "Transport / livraison", Color: "#06b6d4"},
	{Name: "Salaires / prestataires", Color: "#a855f7"},
	{Name: "Loyer / charges boutique", Color: "#fb7185"},
	{Name: "Marketing / communication", Color: "#3b82f6"},
	{Name: "Divers", Color: "#64748b"},
}

// Bootstrap upserts the default category sets by name. It runs once at
// process start so list reads stay pure; calling it again is a no-op apart
// from re-activating a deactivated default.
func (s *Service) Bootstrap(ctx context.Context) error {
	for _, category := range defaultProductCategories {
		category.Kind = domain.CategoryKindProduct
		if err := s.repo.UpsertCategoryByName(ctx, category); err != nil {
			return fmt.Errorf("seed product category %q: %w", category.Name, err)
		}
	}
	for _, category := range defaultFinanceCategories {
		category.Kind = domain.CategoryKindFinance
		if err := s.repo.UpsertCategoryByName(ctx, category); err != nil {
			return fmt.Errorf("seed finance category %q: %w", category.Name, err)
		}
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Price.IsNegative() {
		return domain.Product{}, store.ErrInvalidInput
	}

	product := domain.Product{
		ID:          xid.New("prd"),
		Name:        req.Name,
		Price:       req.Price,
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Description: strings.TrimSpace(req.Description),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Active:      true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
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
		updated.Price = *req.Price
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

// DeleteProduct hard-deletes the product row. Historical sales keep their
// captured prices and the ledger keeps its movements; deactivation via
// update is the preferred path for products with history.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ListActiveCategories(ctx context.Context, kind string) ([]domain.Category, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return nil, err
	}
	return s.repo.ListActiveCategories(ctx, kind)
}

func (s *Service) CreateCategory(ctx context.Context, kind string, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return domain.Category{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, store.ErrInvalidInput
	}

	category := domain.Category{
		ID:     xid.New("cat"),
		Kind:   kind,
		Name:   name,
		Color:  strings.TrimSpace(req.Color),
		Active: true,
	}

	created, err := s.repo.CreateCategory(ctx, category)
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, kind string, id string, req domain.CategoryUpdateRequest) (domain.Category, error) {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return domain.Category{}, err
	}

	existing, err := s.repo.GetCategory(ctx, kind, id)
	if err != nil {
		return domain.Category{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Category{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.Color != nil {
		updated.Color = strings.TrimSpace(*req.Color)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateCategory(ctx, updated)
	if err != nil {
		return domain.Category{}, err
	}
	return *saved, nil
}

// AdjustStock appends one manual_adjustment movement. The ledger is
// append-only: a wrong adjustment is corrected by another adjustment.
func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.StockMovement, error) {
	actor, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff)
	if err != nil {
		return domain.StockMovement{}, err
	}
	if req.ProductID == "" || req.Quantity == 0 {
		return domain.StockMovement{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetProduct(ctx, req.ProductID); err != nil {
		return domain.StockMovement{}, err
	}

	movement := domain.StockMovement{
		ID:        xid.New("mov"),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Type:      domain.MovementAdjustment,
		UserID:    actor.UserID,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: time.Now().UTC(),
	}

	created, err := s.repo.AppendMovement(ctx, movement)
	if err != nil {
		return domain.StockMovement{}, err
	}
	return *created, nil
}

// CurrentStock sums the product's movements. A product with no movements
// has stock 0; the sum may go negative, oversell is not prevented.
func (s *Service) CurrentStock(ctx context.Context, productID string) (int, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return 0, err
	}
	if productID == "" {
		return 0, store.ErrInvalidInput
	}
	return s.repo.SumMovements(ctx, productID)
}

// LowStock lists active products whose derived stock falls inside
// [min, max], sorted by stock ascending then name. Products without any
// movement count as stock 0 and pass the default band.
func (s *Service) LowStock(ctx context.Context, min int, max int) ([]domain.LowStockItem, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return nil, err
	}
	if min > max {
		return nil, store.ErrInvalidInput
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.SumMovementsByProduct(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.LowStockItem, 0, len(products))
	for _, product := range products {
		if !product.Active {
			continue
		}
		stock := totals[product.ID]
		if stock < min || stock > max {
			continue
		}
		items = append(items, domain.LowStockItem{
			ProductID:   product.ID,
			Name:        product.Name,
			Price:       product.Price,
			ImageURL:    product.ImageURL,
			Description: product.Description,
			Stock:       stock,
		})
	}

	slices.SortFunc(items, func(a, b domain.LowStockItem) int {
		if a.Stock != b.Stock {
			return a.Stock - b.Stock
		}
		return strings.Compare(a.Name, b.Name)
	})
	return items, nil
}

// CreateSale computes the total once, persists the sale and one negative
// sale movement per item. Each item's unit price comes from the request and
// is captured into the sale; later catalog price edits do not rewrite
// history. A non-empty idempotencyKey replays the previously created sale.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest, idempotencyKey string) (domain.Sale, error) {
	actor, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff)
	if err != nil {
		return domain.Sale{}, err
	}
	if len(req.Items) == 0 || !domain.ValidPaymentMethod(req.PaymentMethod) {
		return domain.Sale{}, store.ErrInvalidInput
	}

	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		cached, found, err := s.idempotency.Get(ctx, idempotencyKey)
		if err != nil {
			log.Printf("[service] WARN: idempotency lookup failed key=%s: %v", idempotencyKey, err)
		} else if found {
			return *cached, nil
		}
	}

	now := time.Now().UTC()
	items := make([]domain.SaleItem, 0, len(req.Items))
	movements := make([]domain.StockMovement, 0, len(req.Items))
	total := decimal.Zero

	for _, line := range req.Items {
		if line.ProductID == "" || line.Quantity == 0 || line.UnitPrice.IsNegative() {
			return domain.Sale{}, store.ErrInvalidInput
		}
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}

		items = append(items, domain.SaleItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))

		// Sign is normalized: a negative quantity on the request still
		// produces a negative (outgoing) ledger movement.
		movements = append(movements, domain.StockMovement{
			ID:        xid.New("mov"),
			ProductID: product.ID,
			Quantity:  -abs(line.Quantity),
			Type:      domain.MovementSale,
			UserID:    actor.UserID,
			Note:      "Vente",
			CreatedAt: now,
		})
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		Items:         items,
		TotalAmount:   total,
		UserID:        actor.UserID,
		Username:      actor.Username,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
	}

	created, err := s.repo.CreateSale(ctx, sale, movements)
	if err != nil {
		return domain.Sale{}, err
	}

	if idempotencyKey != "" {
		if err := s.idempotency.Set(ctx, idempotencyKey, created, s.idempotencyTTL); err != nil {
			log.Printf("[service] WARN: idempotency store failed key=%s: %v", idempotencyKey, err)
		}
	}
	return *created, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin, domain.RoleStaff); err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx)
}

// DeleteSale restores stock through compensating manual_adjustment
// movements written before the sale row is removed. A crash mid-way leaves
// stock restored with the sale still present, which overstates stock rather
// than losing inventory.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return err
	}

	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	compensations := make([]domain.StockMovement, 0, len(sale.Items))
	for _, item := range sale.Items {
		compensations = append(compensations, domain.StockMovement{
			ID:        xid.New("mov"),
			ProductID: item.ProductID,
			Quantity:  abs(item.Quantity),
			Type:      domain.MovementAdjustment,
			UserID:    sale.UserID,
			Note:      "Annulation vente",
			CreatedAt: now,
		})
	}

	return s.repo.DeleteSale(ctx, id, compensations)
}

func (s *Service) CreateEntry(ctx context.Context, req domain.EntryCreateRequest) (domain.FinancialEntry, error) {
	actor, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin)
	if err != nil {
		return domain.FinancialEntry{}, err
	}
	if !domain.ValidEntryType(req.Type) || strings.TrimSpace(req.Category) == "" || req.Amount.IsNegative() {
		return domain.FinancialEntry{}, store.ErrInvalidInput
	}

	entry := domain.FinancialEntry{
		ID:          xid.New("fin"),
		Type:        req.Type,
		Amount:      req.Amount,
		Category:    strings.TrimSpace(req.Category),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Description: strings.TrimSpace(req.Description),
		UserID:      actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.CreateEntry(ctx, entry)
	if err != nil {
		return domain.FinancialEntry{}, err
	}
	return *created, nil
}

func (s *Service) ListEntries(ctx context.Context) ([]domain.FinancialEntry, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx)
}

func (s *Service) UpdateEntry(ctx context.Context, id string, req domain.EntryUpdateRequest) (domain.FinancialEntry, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin); err != nil {
		return domain.FinancialEntry{}, err
	}

	existing, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return domain.FinancialEntry{}, err
	}

	updated := *existing
	if req.Type != nil {
		if !domain.ValidEntryType(*req.Type) {
			return domain.FinancialEntry{}, store.ErrInvalidInput
		}
		updated.Type = *req.Type
	}
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return domain.FinancialEntry{}, store.ErrInvalidInput
		}
		updated.Amount = *req.Amount
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.FinancialEntry{}, store.ErrInvalidInput
		}
		updated.Category = category
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}

	saved, err := s.repo.UpdateEntry(ctx, updated)
	if err != nil {
		return domain.FinancialEntry{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteEntry(ctx context.Context, id string) error {
	if _, err := requireRole(ctx, domain.RoleManager); err != nil {
		return err
	}
	return s.repo.DeleteEntry(ctx, id)
}

// ResetAll empties financial entries and sales. Stock movements stay: the
// ledger keeps its full history, so derived stock no longer matches the
// (now empty) sales history. This asymmetry is intentional and logged.
func (s *Service) ResetAll(ctx context.Context) error {
	actor, err := requireRole(ctx, domain.RoleManager)
	if err != nil {
		return err
	}
	if err := s.repo.ResetFinance(ctx); err != nil {
		return err
	}
	log.Printf("[service] finance reset by %s: sales and entries cleared, stock movements retained", actor.Username)
	return nil
}

// Dashboard aggregates sale totals and manual entries inside the inclusive
// [from, to] window; a nil bound leaves that side open.
func (s *Service) Dashboard(ctx context.Context, from *time.Time, to *time.Time) (domain.DashboardSummary, error) {
	if _, err := requireRole(ctx, domain.RoleManager, domain.RoleAdmin); err != nil {
		return domain.DashboardSummary{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return domain.DashboardSummary{}, store.ErrInvalidInput
	}

	salesRevenue, err := s.repo.SumSaleTotals(ctx, from, to)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	entries, err := s.repo.ListEntriesBetween(ctx, from, to)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	otherIncome := decimal.Zero
	expenses := decimal.Zero
	for _, entry := range entries {
		switch entry.Type {
		case domain.EntryIncome:
			otherIncome = otherIncome.Add(entry.Amount)
		case domain.EntryExpense:
			expenses = expenses.Add(entry.Amount)
		}
	}

	return domain.DashboardSummary{
		From:         from,
		To:           to,
		SalesRevenue: salesRevenue,
		OtherIncome:  otherIncome,
		Expenses:     expenses,
		NetResult:    salesRevenue.Add(otherIncome).Sub(expenses),
	}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
