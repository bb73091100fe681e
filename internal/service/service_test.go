package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boutik/backend/internal/cache"
	"boutik/backend/internal/domain"
	"boutik/backend/internal/store"
	"boutik/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.New(), cache.NoopSaleIdempotencyStore{}, time.Hour)
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:   "usr-test-manager",
		Username: "manager",
		Role:     domain.RoleManager,
	})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:   "usr-test-staff",
		Username: "staff",
		Role:     domain.RoleStaff,
	})
}

func mustCreateProduct(t *testing.T, svc *Service, name string, price string) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(managerCtx(), domain.ProductCreateRequest{
		Name:  name,
		Price: decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func TestAdjustStockAccumulates(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Boîte cadeau", "1000")

	for _, qty := range []int{10, -4, 7} {
		if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{
			ProductID: product.ID,
			Quantity:  qty,
		}); err != nil {
			t.Fatalf("adjust %d: %v", qty, err)
		}
	}

	stock, err := svc.CurrentStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	if stock != 13 {
		t.Fatalf("expected stock 13, got %d", stock)
	}
}

func TestCurrentStockZeroWithoutMovements(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Ruban", "500")

	stock, err := svc.CurrentStock(managerCtx(), product.ID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	if stock != 0 {
		t.Fatalf("expected stock 0, got %d", stock)
	}
}

func TestStockMayGoNegative(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Pochette", "300")

	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{
		ProductID: product.ID,
		Quantity:  -5,
	}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	stock, err := svc.CurrentStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	if stock != -5 {
		t.Fatalf("expected stock -5, got %d", stock)
	}
}

func TestAdjustStockRejectsZeroAndUnknownProduct(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Sac kraft", "500")

	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: product.ID, Quantity: 0}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero quantity, got %v", err)
	}
	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: "prd-missing", Quantity: 5}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestLowStockBandEdges(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()

	atZero := mustCreateProduct(t, svc, "A zéro", "100")
	atTen := mustCreateProduct(t, svc, "B dix", "100")
	atEleven := mustCreateProduct(t, svc, "C onze", "100")
	negative := mustCreateProduct(t, svc, "D négatif", "100")

	adjust := func(id string, qty int) {
		t.Helper()
		if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: id, Quantity: qty}); err != nil {
			t.Fatalf("adjust %s: %v", id, err)
		}
	}
	adjust(atTen.ID, 10)
	adjust(atEleven.ID, 11)
	adjust(negative.ID, -3)

	items, err := svc.LowStock(ctx, DefaultLowStockMin, DefaultLowStockMax)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}

	got := map[string]int{}
	for _, item := range items {
		got[item.ProductID] = item.Stock
	}
	if _, ok := got[atZero.ID]; !ok {
		t.Fatalf("expected zero-movement product inside default band")
	}
	if got[atTen.ID] != 10 {
		t.Fatalf("expected product at 10 inside inclusive band, got %v", got)
	}
	if _, ok := got[atEleven.ID]; ok {
		t.Fatalf("product at 11 must be outside the default band")
	}
	if _, ok := got[negative.ID]; ok {
		t.Fatalf("negative stock is below min 0 and must be excluded")
	}
}

func TestLowStockSortsByStockThenName(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()

	b := mustCreateProduct(t, svc, "Bougie", "100")
	a := mustCreateProduct(t, svc, "Assiette", "100")
	c := mustCreateProduct(t, svc, "Carte", "100")

	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: c.ID, Quantity: 2}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	items, err := svc.LowStock(ctx, 0, 10)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	// Ties at stock 0 break on name.
	if items[0].ProductID != a.ID || items[1].ProductID != b.ID || items[2].ProductID != c.ID {
		t.Fatalf("unexpected order: %v", items)
	}
}

func TestLowStockRejectsInvertedBand(t *testing.T) {
	svc := newTestService()
	if _, err := svc.LowStock(managerCtx(), 5, 2); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCreateSaleComputesTotalAndWritesMovements(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()

	box := mustCreateProduct(t, svc, "Coffret", "2500")
	bag := mustCreateProduct(t, svc, "Sac", "500")
	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: box.ID, Quantity: 50}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: box.ID, Quantity: 3, UnitPrice: box.Price},
			{ProductID: bag.ID, Quantity: 2, UnitPrice: bag.Price},
		},
		PaymentMethod: domain.PaymentCash,
	}, "")
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	want := decimal.RequireFromString("8500")
	if !sale.TotalAmount.Equal(want) {
		t.Fatalf("expected total 8500, got %s", sale.TotalAmount)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sale.Items))
	}

	stock, err := svc.CurrentStock(ctx, box.ID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	if stock != 47 {
		t.Fatalf("expected stock 47 after selling 3 of 50, got %d", stock)
	}
}

func TestCreateSaleCapturesCallerUnitPrice(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Coffret soldé", "2500")

	discounted := decimal.RequireFromString("2000")
	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2, UnitPrice: discounted}},
		PaymentMethod: domain.PaymentCash,
	}, "")
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if !sale.Items[0].UnitPrice.Equal(discounted) {
		t.Fatalf("expected captured unit price 2000, got %s", sale.Items[0].UnitPrice)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("4000")) {
		t.Fatalf("expected total 4000 from the discounted price, got %s", sale.TotalAmount)
	}
}

func TestCreateSaleRejectsBadInput(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Noeud", "750")

	cases := []domain.SaleCreateRequest{
		{Items: nil, PaymentMethod: domain.PaymentCash},
		{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}}, PaymentMethod: "cheque"},
		{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 0, UnitPrice: product.Price}}, PaymentMethod: domain.PaymentCash},
		{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("-1")}}, PaymentMethod: domain.PaymentCash},
	}
	for i, req := range cases {
		if _, err := svc.CreateSale(ctx, req, ""); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: "prd-missing", Quantity: 1, UnitPrice: decimal.RequireFromString("100")}},
		PaymentMethod: domain.PaymentWave,
	}, "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestDeleteSaleRestoresStock(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()

	product := mustCreateProduct(t, svc, "Papier de soie", "200")
	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: product.ID, Quantity: 20}); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 4, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentCard,
	}, "")
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := svc.DeleteSale(ctx, sale.ID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}

	stock, err := svc.CurrentStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	if stock != 20 {
		t.Fatalf("expected stock restored to 20, got %d", stock)
	}

	sales, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sales after delete, got %d", len(sales))
	}
}

func TestDeleteSaleRequiresManager(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Carte cadeau", "1500")

	sale, err := svc.CreateSale(staffCtx(), domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentCash,
	}, "")
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if err := svc.DeleteSale(staffCtx(), sale.ID); err == nil {
		t.Fatalf("expected staff delete to fail")
	}
	if err := svc.DeleteSale(managerCtx(), sale.ID); err != nil {
		t.Fatalf("manager delete failed: %v", err)
	}
}

func TestListSalesNewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Ballon", "250")

	var ids []string
	for i := 0; i < 3; i++ {
		sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}},
			PaymentMethod: domain.PaymentCash,
		}, "")
		if err != nil {
			t.Fatalf("create sale %d: %v", i, err)
		}
		ids = append(ids, sale.ID)
	}

	sales, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(sales))
	}
	for i := range sales {
		if sales[i].ID != ids[len(ids)-1-i] {
			t.Fatalf("expected newest first, got %v", sales)
		}
	}
}

func TestSaleItemsCarryProductName(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Guirlande lumineuse", "1200")

	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentWave,
	}, ""); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	sales, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if sales[0].Items[0].ProductName != "Guirlande lumineuse" {
		t.Fatalf("expected resolved product name, got %q", sales[0].Items[0].ProductName)
	}
}

func TestSaleIdempotencyKeyReplays(t *testing.T) {
	svc := New(memory.New(), newFakeIdemStore(), time.Hour)
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Bougie parfumée", "900")

	req := domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentCash,
	}

	first, err := svc.CreateSale(ctx, req, "key-1")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.CreateSale(ctx, req, "key-1")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected replayed sale, got %s and %s", first.ID, second.ID)
	}

	sales, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected a single sale, got %d", len(sales))
	}
}

type fakeIdemStore struct {
	entries map[string]domain.Sale
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{entries: make(map[string]domain.Sale)}
}

func (f *fakeIdemStore) Get(_ context.Context, key string) (*domain.Sale, bool, error) {
	sale, ok := f.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &sale, true, nil
}

func (f *fakeIdemStore) Set(_ context.Context, key string, sale *domain.Sale, _ time.Duration) error {
	f.entries[key] = *sale
	return nil
}

func TestDashboardPartitionsWindow(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Coffret luxe", "4000")

	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentCash,
	}, ""); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if _, err := svc.CreateEntry(ctx, domain.EntryCreateRequest{
		Type:     domain.EntryIncome,
		Amount:   decimal.RequireFromString("3000"),
		Category: "Location décoration",
	}); err != nil {
		t.Fatalf("create income: %v", err)
	}
	if _, err := svc.CreateEntry(ctx, domain.EntryCreateRequest{
		Type:     domain.EntryExpense,
		Amount:   decimal.RequireFromString("1500"),
		Category: "Transport / livraison",
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	summary, err := svc.Dashboard(ctx, nil, nil)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if !summary.SalesRevenue.Equal(decimal.RequireFromString("8000")) {
		t.Fatalf("expected sales revenue 8000, got %s", summary.SalesRevenue)
	}
	if !summary.OtherIncome.Equal(decimal.RequireFromString("3000")) {
		t.Fatalf("expected other income 3000, got %s", summary.OtherIncome)
	}
	if !summary.Expenses.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("expected expenses 1500, got %s", summary.Expenses)
	}
	if !summary.NetResult.Equal(decimal.RequireFromString("9500")) {
		t.Fatalf("expected net result 9500, got %s", summary.NetResult)
	}
}

func TestDashboardWindowExcludesOutside(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Vase", "2000")

	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentCash,
	}, ""); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	past := time.Now().UTC().Add(-48 * time.Hour)
	pastEnd := past.Add(time.Hour)
	summary, err := svc.Dashboard(ctx, &past, &pastEnd)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !summary.SalesRevenue.IsZero() {
		t.Fatalf("expected no revenue in past window, got %s", summary.SalesRevenue)
	}

	if _, err := svc.Dashboard(ctx, &pastEnd, &past); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for inverted window, got %v", err)
	}
}

func TestResetAllKeepsStockMovements(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Ruban large", "800")

	if _, err := svc.AdjustStock(ctx, domain.StockAdjustRequest{ProductID: product.ID, Quantity: 30}); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 5, UnitPrice: product.Price}},
		PaymentMethod: domain.PaymentCash,
	}, ""); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := svc.CreateEntry(ctx, domain.EntryCreateRequest{
		Type:     domain.EntryExpense,
		Amount:   decimal.RequireFromString("100"),
		Category: "Divers",
	}); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if err := svc.ResetAll(staffCtx()); err == nil {
		t.Fatalf("expected staff reset to fail")
	}
	if err := svc.ResetAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	sales, _ := svc.ListSales(ctx)
	entries, _ := svc.ListEntries(ctx)
	if len(sales) != 0 || len(entries) != 0 {
		t.Fatalf("expected empty sales and entries, got %d and %d", len(sales), len(entries))
	}

	stock, err := svc.CurrentStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("current stock: %v", err)
	}
	if stock != 25 {
		t.Fatalf("expected stock 25 untouched by reset, got %d", stock)
	}
}

func TestBootstrapSeedsDefaultCategoriesOnce(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	productCats, err := svc.ListActiveCategories(managerCtx(), domain.CategoryKindProduct)
	if err != nil {
		t.Fatalf("list product categories: %v", err)
	}
	if len(productCats) != len(defaultProductCategories) {
		t.Fatalf("expected %d product categories, got %d", len(defaultProductCategories), len(productCats))
	}

	financeCats, err := svc.ListActiveCategories(managerCtx(), domain.CategoryKindFinance)
	if err != nil {
		t.Fatalf("list finance categories: %v", err)
	}
	if len(financeCats) != len(defaultFinanceCategories) {
		t.Fatalf("expected %d finance categories, got %d", len(defaultFinanceCategories), len(financeCats))
	}
}

func TestEntryValidation(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()

	if _, err := svc.CreateEntry(ctx, domain.EntryCreateRequest{
		Type:     "transfer",
		Amount:   decimal.RequireFromString("100"),
		Category: "Divers",
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}

	if _, err := svc.CreateEntry(ctx, domain.EntryCreateRequest{
		Type:     domain.EntryIncome,
		Amount:   decimal.RequireFromString("-5"),
		Category: "Divers",
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative amount, got %v", err)
	}

	if _, err := svc.CreateEntry(staffCtx(), domain.EntryCreateRequest{
		Type:     domain.EntryIncome,
		Amount:   decimal.RequireFromString("5"),
		Category: "Divers",
	}); err == nil {
		t.Fatalf("expected staff entry creation to fail")
	}
}

func TestUpdateEntryMergesFields(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()

	entry, err := svc.CreateEntry(ctx, domain.EntryCreateRequest{
		Type:        domain.EntryExpense,
		Amount:      decimal.RequireFromString("2000"),
		Category:    "Loyer / charges boutique",
		Description: "Loyer août",
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	newAmount := decimal.RequireFromString("2100")
	updated, err := svc.UpdateEntry(ctx, entry.ID, domain.EntryUpdateRequest{Amount: &newAmount})
	if err != nil {
		t.Fatalf("update entry: %v", err)
	}
	if !updated.Amount.Equal(newAmount) {
		t.Fatalf("expected amount 2100, got %s", updated.Amount)
	}
	if updated.Category != "Loyer / charges boutique" || updated.Description != "Loyer août" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
}

func TestProductUpdateMergesFields(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Sac tissu", "600")

	inactive := false
	updated, err := svc.UpdateProduct(ctx, product.ID, domain.ProductUpdateRequest{Active: &inactive})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Active {
		t.Fatalf("expected product deactivated")
	}
	if updated.Name != "Sac tissu" || !updated.Price.Equal(product.Price) {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	empty := ""
	if _, err := svc.UpdateProduct(ctx, product.ID, domain.ProductUpdateRequest{Name: &empty}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty name, got %v", err)
	}
}

func TestInactiveProductsExcludedFromLowStock(t *testing.T) {
	svc := newTestService()
	ctx := managerCtx()
	product := mustCreateProduct(t, svc, "Ancien modèle", "100")

	inactive := false
	if _, err := svc.UpdateProduct(ctx, product.ID, domain.ProductUpdateRequest{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	items, err := svc.LowStock(ctx, 0, 10)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	for _, item := range items {
		if item.ProductID == product.ID {
			t.Fatalf("inactive product must not appear in low stock")
		}
	}
}

func TestOperationsRequireActor(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.ListProducts(ctx); err == nil {
		t.Fatalf("expected list products without actor to fail")
	}
	if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{}, ""); err == nil {
		t.Fatalf("expected create sale without actor to fail")
	}
	if err := svc.ResetAll(ctx); err == nil {
		t.Fatalf("expected reset without actor to fail")
	}
}
