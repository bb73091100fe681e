package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"boutik/backend/internal/domain"
	"boutik/backend/internal/store"
	"boutik/backend/internal/xid"
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
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema on first start. Every statement is idempotent
// so restarting against an existing database is a no-op.
func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category_id TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (kind, name)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			type TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements (product_id)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			total_amount NUMERIC(14,2) NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			payment_method TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			PRIMARY KEY (sale_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS financial_entries (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			category TEXT NOT NULL,
			category_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, image_url, description, category_id, active, created_at, updated_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Description, &p.CategoryID, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, image_url, description, category_id, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.ImageURL, &p.Description, &p.CategoryID, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, image_url, description, category_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Name, product.Price, product.ImageURL, product.Description, product.CategoryID, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Price.IsNegative() {
		return nil, store.ErrInvalidInput
	}
	product.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3, image_url = $4, description = $5, category_id = $6, active = $7, updated_at = $8
		WHERE id = $1
	`, product.ID, product.Name, product.Price, product.ImageURL, product.Description, product.CategoryID, product.Active, product.UpdatedAt)
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

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
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

func (s *Store) ListActiveCategories(ctx context.Context, kind string) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, color, active, created_at
		FROM categories
		WHERE kind = $1 AND active = TRUE
		ORDER BY name
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Kind, &c.Name, &c.Color, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, kind string, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, name, color, active, created_at
		FROM categories
		WHERE id = $1 AND kind = $2
	`, id, kind).Scan(&c.ID, &c.Kind, &c.Name, &c.Color, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" || category.Kind == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, kind, name, color, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, category.ID, category.Kind, category.Name, category.Color, category.Active, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $3, color = $4, active = $5
		WHERE id = $1 AND kind = $2
	`, category.ID, category.Kind, category.Name, category.Color, category.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
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
	updated := category
	return &updated, nil
}

func (s *Store) UpsertCategoryByName(ctx context.Context, category domain.Category) error {
	if category.Name == "" || category.Kind == "" {
		return store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, kind, name, color, active, created_at)
		VALUES ($1,$2,$3,$4,TRUE,$5)
		ON CONFLICT (kind, name) DO UPDATE SET color = EXCLUDED.color, active = TRUE
	`, category.ID, category.Kind, category.Name, category.Color, category.CreatedAt)
	return err
}

func (s *Store) AppendMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	if movement.ProductID == "" || movement.Quantity == 0 || !domain.ValidMovementType(movement.Type) {
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, quantity, type, user_id, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, movement.ID, movement.ProductID, movement.Quantity, movement.Type, movement.UserID, movement.Note, movement.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := movement
	return &created, nil
}

func (s *Store) SumMovements(ctx context.Context, productID string) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM stock_movements
		WHERE product_id = $1
	`, productID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) SumMovementsByProduct(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, SUM(quantity)
		FROM stock_movements
		GROUP BY product_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int, 64)
	for rows.Next() {
		var productID string
		var total int
		if err := rows.Scan(&productID, &total); err != nil {
			return nil, err
		}
		totals[productID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

// CreateSale writes the sale row, its items and the derived sale movements
// in one transaction, so a crash can never leave a sale without its ledger
// entries.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, movements []domain.StockMovement) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, total_amount, user_id, username, payment_method, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, sale.ID, sale.TotalAmount, sale.UserID, sale.Username, sale.PaymentMethod, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	for i, item := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, position, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
		`, sale.ID, i, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	for _, m := range movements {
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = sale.CreatedAt
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, quantity, type, user_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, m.ID, m.ProductID, m.Quantity, m.Type, m.UserID, m.Note, m.CreatedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := sale
	return &created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_amount, user_id, username, payment_method, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.TotalAmount, &sale.UserID, &sale.Username, &sale.PaymentMethod, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total_amount, user_id, username, payment_method, created_at
		FROM sales
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TotalAmount, &sale.UserID, &sale.Username, &sale.PaymentMethod, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.loadSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = items[sales[i].ID]
	}
	return sales, nil
}

// loadSaleItems fetches the items for the given sales with each item's
// product name resolved from the current catalog.
func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	result := make(map[string][]domain.SaleItem, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT si.sale_id, si.product_id, COALESCE(p.name, ''), si.quantity, si.unit_price
		FROM sale_items si
		LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = ANY($1)
		ORDER BY si.sale_id, si.position
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var item domain.SaleItem
		if err := rows.Scan(&saleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteSale writes the compensating movements and removes the sale row in
// one transaction. Items go with the sale via ON DELETE CASCADE.
func (s *Store) DeleteSale(ctx context.Context, id string, compensations []domain.StockMovement) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, m := range compensations {
		if m.ID == "" {
			m.ID = xid.New("mov")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (id, product_id, quantity, type, user_id, note, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, m.ID, m.ProductID, m.Quantity, m.Type, m.UserID, m.Note, m.CreatedAt)
		if err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
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

	return tx.Commit()
}

func (s *Store) SumSaleTotals(ctx context.Context, from *time.Time, to *time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(total_amount), 0) FROM sales WHERE TRUE`
	args := make([]any, 0, 2)
	if from != nil {
		args = append(args, *from)
		query += ` AND created_at >= $1`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND created_at <= $2`
		} else {
			query += ` AND created_at <= $1`
		}
	}

	var total decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) CreateEntry(ctx context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error) {
	if !domain.ValidEntryType(entry.Type) || entry.Category == "" {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("fin")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_entries (id, type, amount, category, category_id, description, user_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.Type, entry.Amount, entry.Category, entry.CategoryID, entry.Description, entry.UserID, entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := entry
	return &created, nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (*domain.FinancialEntry, error) {
	var entry domain.FinancialEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, amount, category, category_id, description, user_id, created_at
		FROM financial_entries
		WHERE id = $1
	`, id).Scan(&entry.ID, &entry.Type, &entry.Amount, &entry.Category, &entry.CategoryID, &entry.Description, &entry.UserID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return &entry, nil
}

func (s *Store) ListEntries(ctx context.Context) ([]domain.FinancialEntry, error) {
	return s.queryEntries(ctx, `
		SELECT id, type, amount, category, category_id, description, user_id, created_at
		FROM financial_entries
		ORDER BY created_at DESC, id DESC
	`)
}

func (s *Store) ListEntriesBetween(ctx context.Context, from *time.Time, to *time.Time) ([]domain.FinancialEntry, error) {
	query := `
		SELECT id, type, amount, category, category_id, description, user_id, created_at
		FROM financial_entries
		WHERE TRUE`
	args := make([]any, 0, 2)
	if from != nil {
		args = append(args, *from)
		query += ` AND created_at >= $1`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND created_at <= $2`
		} else {
			query += ` AND created_at <= $1`
		}
	}
	query += ` ORDER BY created_at, id`
	return s.queryEntries(ctx, query, args...)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]domain.FinancialEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.FinancialEntry, 0, 64)
	for rows.Next() {
		var entry domain.FinancialEntry
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Amount, &entry.Category, &entry.CategoryID, &entry.Description, &entry.UserID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry domain.FinancialEntry) (*domain.FinancialEntry, error) {
	if !domain.ValidEntryType(entry.Type) || entry.Category == "" {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE financial_entries
		SET type = $2, amount = $3, category = $4, category_id = $5, description = $6
		WHERE id = $1
	`, entry.ID, entry.Type, entry.Amount, entry.Category, entry.CategoryID, entry.Description)
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
	updated := entry
	return &updated, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM financial_entries WHERE id = $1`, id)
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

// ResetFinance empties financial entries and sales in one transaction.
// Stock movements are deliberately untouched.
func (s *Store) ResetFinance(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM financial_entries`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales`); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.Username == "" || user.PasswordHash == "" || !domain.ValidRole(user.Role) {
		return nil, store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.ID, user.Username, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		ORDER BY created_at, username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
