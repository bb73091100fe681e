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

	"boutik/backend/internal/domain"
	"boutik/backend/internal/store"
	"boutik/backend/internal/xid"
)

type Store struct {
	mu          sync.RWMutex
	products    map[string]domain.Product
	categories  map[string]domain.Category
	movements   []domain.StockMovement
	sales       []domain.Sale
	entries     []domain.FinancialEntry
	usersByName map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:    make(map[string]domain.Product),
		categories:  make(map[string]domain.Category),
		movements:   make([]domain.StockMovement, 0, 128),
		sales:       make([]domain.Sale, 0, 64),
		entries:     make([]domain.FinancialEntry, 0, 64),
		usersByName: make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Passwords are read from SEED_MANAGER_PASSWORD, SEED_ADMIN_PASSWORD and
// SEED_STAFF_PASSWORD; hardcoded dev defaults are used otherwise with a
// warning. These accounts are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_ADMIN_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_MANAGER_PASSWORD, SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"manager", managerPwd, domain.RoleManager},
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			ID:           xid.New("usr"),
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store pre-filled with demo catalog data and dev user
// accounts, each product stocked through an initial purchase movement so the
// derived stock figures are non-zero out of the box.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []struct {
		name  string
		price string
		desc  string
		stock int
	}{
		{"Coffret cadeau carré", "2500", "Boîte rigide avec couvercle", 40},
		{"Sac kraft moyen", "500", "Sac papier avec poignées", 120},
		{"Ruban satin 25mm", "1000", "Rouleau de 20m", 35},
		{"Pochette organza", "300", "", 80},
		{"Noeud décoratif doré", "750", "", 25},
		{"Papier de soie blanc", "200", "Paquet de 10 feuilles", 60},
	}

	for _, p := range products {
		price, _ := decimal.NewFromString(p.price)
		product := domain.Product{
			ID:          xid.New("prd"),
			Name:        p.name,
			Price:       price,
			Description: p.desc,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.products[product.ID] = product
		s.movements = append(s.movements, domain.StockMovement{
			ID:        xid.New("mov"),
			ProductID: product.ID,
			Quantity:  p.stock,
			Type:      domain.MovementPurchase,
			Note:      "Stock initial",
			CreatedAt: now,
		})
	}

	s.usersByName = seedUsers()
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Price.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListActiveCategories(_ context.Context, kind string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.Kind != kind || !c.Active {
			continue
		}
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) GetCategory(_ context.Context, kind string, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, exists := s.categories[id]
	if !exists || category.Kind != kind {
		return nil, store.ErrNotFound
	}
	found := category
	return &found, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.Name == "" || category.Kind == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.categories {
		if existing.Kind == category.Kind && existing.Name == category.Name {
			return nil, store.ErrDuplicate
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	existing, exists := s.categories[category.ID]
	if !exists || existing.Kind != category.Kind {
		return nil, store.ErrNotFound
	}
	for _, other := range s.categories {
		if other.ID != category.ID && other.Kind == category.Kind && other.Name == category.Name {
			return nil, store.ErrDuplicate
		}
	}
	category.CreatedAt = existing.CreatedAt
	s.categories[category.ID] = category
	updated := category
	return &updated, nil
}

func (s *Store) UpsertCategoryByName(_ context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.Name == "" || category.Kind == "" {
		return store.ErrInvalidInput
	}
	for id, existing := range s.categories {
		if existing.Kind == category.Kind && existing.Name == category.Name {
			existing.Color = category.Color
			existing.Active = true
			s.categories[id] = existing
			return nil
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	category.Active = true
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	return nil
}

func (s *Store) AppendMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if movement.ProductID == "" || movement.Quantity == 0 || !domain.ValidMovementType(movement.Type) {
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	s.movements = append(s.movements, movement)
	created := movement
	return &created, nil
}

func (s *Store) SumMovements(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, m := range s.movements {
		if m.ProductID == productID {
			total += m.Quantity
		}
	}
	return total, nil
}

func (s *Store) SumMovementsByProduct(_ context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]int, len(s.products))
	for _, m := range s.movements {
		totals[m.ProductID] += m.Quantity
	}
	return totals, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, movements []domain.StockMovement) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.Items = slices.Clone(sale.Items)
	s.sales = append(s.sales, sale)
	for _, m := range movements {
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = sale.CreatedAt
		}
		s.movements = append(s.movements, m)
	}
	created := sale
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			found := sale
			found.Items = slices.Clone(sale.Items)
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

// ListSales returns sales newest first with each item's product name
// resolved from the current catalog. Items referencing a hard-deleted
// product keep an empty name.
func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for i := len(s.sales) - 1; i >= 0; i-- {
		sale := s.sales[i]
		sale.Items = slices.Clone(sale.Items)
		for j := range sale.Items {
			if product, exists := s.products[sale.Items[j].ProductID]; exists {
				sale.Items[j].ProductName = product.Name
			}
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

// DeleteSale appends the compensating movements before removing the sale
// row, matching the write order used by the transactional store.
func (s *Store) DeleteSale(_ context.Context, id string, compensations []domain.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, sale := range s.sales {
		if sale.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return store.ErrNotFound
	}

	now := time.Now().UTC()
	for _, m := range compensations {
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		s.movements = append(s.movements, m)
	}
	s.sales = append(s.sales[:idx], s.sales[idx+1:]...)
	return nil
}

func (s *Store) SumSaleTotals(_ context.Context, from *time.Time, to *time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.sales {
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		total = total.Add(sale.TotalAmount)
	}
	return total, nil
}

func (s *Store) CreateEntry(_ context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !domain.ValidEntryType(entry.Type) || entry.Category == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("fin")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	created := entry
	return &created, nil
}

func (s *Store) GetEntry(_ context.Context, id string) (*domain.FinancialEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.ID == id {
			found := entry
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListEntries(_ context.Context) ([]domain.FinancialEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.FinancialEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		entries = append(entries, s.entries[i])
	}
	return entries, nil
}

func (s *Store) ListEntriesBetween(_ context.Context, from *time.Time, to *time.Time) ([]domain.FinancialEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.FinancialEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if inWindow(entry.CreatedAt, from, to) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Store) UpdateEntry(_ context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !domain.ValidEntryType(entry.Type) || entry.Category == "" {
		return nil, store.ErrInvalidInput
	}
	for i, existing := range s.entries {
		if existing.ID == entry.ID {
			entry.CreatedAt = existing.CreatedAt
			s.entries[i] = entry
			updated := entry
			return &updated, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.entries {
		if existing.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// ResetFinance empties financial entries and sales. Stock movements are
// deliberately left in place; derived stock keeps its history.
func (s *Store) ResetFinance(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
	s.sales = s.sales[:0]
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.PasswordHash == "" || !domain.ValidRole(user.Role) {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.usersByName[user.Username]; exists {
		return nil, store.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByName[user.Username] = user
	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByName[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	found := user
	return &found, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, user := range s.usersByName {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.Username, b.Username)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return users, nil
}

func inWindow(at time.Time, from *time.Time, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}
