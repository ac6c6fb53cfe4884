package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// --- Helpers ---

type productEnv struct {
	categories *fakeCategoryRepo
	products   *fakeProductRepo
	carts      *fakeCartRepo
	orders     *fakeOrderRepo
	svc        services.ProductService
}

func newProductEnv(t *testing.T) *productEnv {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	categories := newFakeCategoryRepo()
	products := newFakeProductRepo()
	carts := newFakeCartRepo(products)
	orders := newFakeOrderRepo()

	svc := services.NewProductService(products, categories, carts, orders, &fakeTransactor{}, nil, logger)
	return &productEnv{categories: categories, products: products, carts: carts, orders: orders, svc: svc}
}

func (e *productEnv) seedCategory(active bool) *models.Category {
	c := &models.Category{ID: uuid.New(), Name: "Hardware", Slug: "hardware", IsActive: active}
	e.categories.byID[c.ID] = c
	return c
}

func (e *productEnv) seedProduct(name, sku, price string, stock int, categoryID uuid.UUID) *models.Product {
	p := &models.Product{
		ID:            uuid.New(),
		Name:          name,
		Slug:          name,
		SKU:           sku,
		Price:         dec(price),
		StockQuantity: stock,
		CategoryID:    categoryID,
		IsActive:      true,
	}
	e.products.byID[p.ID] = p
	return p
}

func createReq(name, sku, price string, stock int, categoryID uuid.UUID) *models.CreateProductRequest {
	return &models.CreateProductRequest{
		Name:          name,
		SKU:           sku,
		Price:         dec(price),
		StockQuantity: stock,
		CategoryID:    categoryID,
	}
}

// --- Tests ---

func TestService_CreateProduct_Success(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)

	product, svcErr := env.svc.Create(context.Background(), createReq("Widget Pro", "WID-1", "20.00", 5, category.ID))
	assert.Nil(t, svcErr)
	assert.NotNil(t, product)
	assert.Equal(t, "widget-pro", product.Slug)
	assert.True(t, product.IsActive, "new products start active")
	assert.Equal(t, 10, product.LowStockThreshold, "threshold defaults when omitted")
	assert.Equal(t, 5, product.StockQuantity)
}

func TestService_CreateProduct_DuplicateSKU(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	_, svcErr := env.svc.Create(context.Background(), createReq("Other Widget", "WID-1", "25.00", 3, category.ID))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
	assert.Equal(t, "SKU already exists", svcErr.Message)
}

func TestService_CreateProduct_DuplicateName(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	existing := env.seedProduct("Widget Pro", "WID-1", "20.00", 5, category.ID)
	existing.Slug = "widget-pro"

	_, svcErr := env.svc.Create(context.Background(), createReq("Widget Pro", "WID-2", "25.00", 3, category.ID))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
	assert.Equal(t, "Product with this name already exists", svcErr.Message)
}

func TestService_CreateProduct_InactiveCategory(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(false)

	_, svcErr := env.svc.Create(context.Background(), createReq("Widget", "WID-1", "20.00", 5, category.ID))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Invalid or inactive category", svcErr.Message)

	_, svcErr = env.svc.Create(context.Background(), createReq("Widget", "WID-1", "20.00", 5, uuid.New()))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestService_CreateProduct_PricingRules(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)

	_, svcErr := env.svc.Create(context.Background(), createReq("Widget", "WID-1", "0", 5, category.ID))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Price must be greater than 0", svcErr.Message)

	req := createReq("Widget", "WID-1", "20.00", 5, category.ID)
	compare := dec("15.00")
	req.ComparePrice = &compare
	_, svcErr = env.svc.Create(context.Background(), req)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Compare price must be greater than price", svcErr.Message)
}

func TestService_UpdateProduct_PartialUpdate(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	newPrice := dec("25.00")
	updated, svcErr := env.svc.Update(context.Background(), product.ID, &models.UpdateProductRequest{Price: &newPrice})
	assert.Nil(t, svcErr)
	assert.True(t, updated.Price.Equal(dec("25.00")))
	assert.Equal(t, "Widget", updated.Name, "unset fields stay untouched")
	assert.Equal(t, 5, updated.StockQuantity, "stock never moves through update")
}

func TestService_UpdateProduct_InactiveCategoryRejected(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	dead := env.seedCategory(false)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	_, svcErr := env.svc.Update(context.Background(), product.ID, &models.UpdateProductRequest{CategoryID: &dead.ID})
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Invalid or inactive category", svcErr.Message)
}

func TestService_DeleteProduct_SoftDeactivates(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	svcErr := env.svc.Delete(context.Background(), product.ID, false)
	assert.Nil(t, svcErr)

	stored := env.products.byID[product.ID]
	assert.NotNil(t, stored, "soft delete keeps the row")
	assert.False(t, stored.IsActive)
}

func TestService_DeleteProduct_HardRefusedWithOrderRefs(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	env.orders.byID[uuid.New()] = &models.Order{
		ID:    uuid.New(),
		Items: []models.OrderItem{{ProductID: product.ID, Quantity: 1}},
	}

	svcErr := env.svc.Delete(context.Background(), product.ID, true)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
	assert.Equal(t, "Cannot delete a product referenced by orders", svcErr.Message)
	assert.NotNil(t, env.products.byID[product.ID])
}

func TestService_DeleteProduct_HardDropsCartLines(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	cartID := uuid.New()
	env.carts.items = append(env.carts.items, &models.CartItem{ID: uuid.New(), CartID: cartID, ProductID: product.ID, Quantity: 2})

	svcErr := env.svc.Delete(context.Background(), product.ID, true)
	assert.Nil(t, svcErr)
	assert.Nil(t, env.products.byID[product.ID])
	assert.Empty(t, env.carts.items, "cart lines holding the product are dropped")
}

func TestService_GetProduct_ActiveOnlyHidesInactive(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)
	product.IsActive = false

	_, svcErr := env.svc.Get(context.Background(), product.ID, true)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)

	got, svcErr := env.svc.Get(context.Background(), product.ID, false)
	assert.Nil(t, svcErr)
	assert.Equal(t, product.ID, got.ID)
}

func TestService_AdjustStock_Operations(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	got, svcErr := env.svc.AdjustStock(context.Background(), product.ID, 4, models.StockAdd)
	assert.Nil(t, svcErr)
	assert.Equal(t, 9, got.StockQuantity)

	got, svcErr = env.svc.AdjustStock(context.Background(), product.ID, 3, models.StockSubtract)
	assert.Nil(t, svcErr)
	assert.Equal(t, 6, got.StockQuantity)

	got, svcErr = env.svc.AdjustStock(context.Background(), product.ID, 42, models.StockSet)
	assert.Nil(t, svcErr)
	assert.Equal(t, 42, got.StockQuantity)
}

func TestService_AdjustStock_SubtractBelowZero(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	product := env.seedProduct("Widget", "WID-1", "20.00", 2, category.ID)

	_, svcErr := env.svc.AdjustStock(context.Background(), product.ID, 3, models.StockSubtract)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Insufficient stock. Only 2 available", svcErr.Message)
	assert.Equal(t, 2, product.StockQuantity, "failed subtract leaves stock untouched")
}

func TestService_AdjustStock_InvalidOperation(t *testing.T) {
	env := newProductEnv(t)

	_, svcErr := env.svc.AdjustStock(context.Background(), uuid.New(), 1, models.StockOperation("shrink"))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Invalid stock operation", svcErr.Message)
}

func TestService_AdjustStock_NegativeQuantity(t *testing.T) {
	env := newProductEnv(t)

	_, svcErr := env.svc.AdjustStock(context.Background(), uuid.New(), -1, models.StockAdd)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Quantity cannot be negative", svcErr.Message)
}

func TestService_BulkUpdatePrices_Success(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	widget := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)
	gadget := env.seedProduct("Gadget", "GAD-1", "7.50", 5, category.ID)

	updated, svcErr := env.svc.BulkUpdatePrices(context.Background(), &models.BulkPriceUpdateRequest{
		Updates: []models.BulkPriceUpdate{
			{ProductID: widget.ID, Price: dec("22.00")},
			{ProductID: gadget.ID, Price: dec("8.00")},
		},
	})
	assert.Nil(t, svcErr)
	assert.Equal(t, 2, updated)
	assert.True(t, widget.Price.Equal(dec("22.00")))
	assert.True(t, gadget.Price.Equal(dec("8.00")))
}

func TestService_BulkUpdatePrices_UnknownProductFailsBatch(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	widget := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	updated, svcErr := env.svc.BulkUpdatePrices(context.Background(), &models.BulkPriceUpdateRequest{
		Updates: []models.BulkPriceUpdate{
			{ProductID: uuid.New(), Price: dec("5.00")},
			{ProductID: widget.ID, Price: dec("22.00")},
		},
	})
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Equal(t, 0, updated)
	assert.True(t, widget.Price.Equal(dec("20.00")), "no price moves when the batch fails")
}

func TestService_BulkUpdatePrices_NonPositivePrice(t *testing.T) {
	env := newProductEnv(t)
	category := env.seedCategory(true)
	widget := env.seedProduct("Widget", "WID-1", "20.00", 5, category.ID)

	_, svcErr := env.svc.BulkUpdatePrices(context.Background(), &models.BulkPriceUpdateRequest{
		Updates: []models.BulkPriceUpdate{{ProductID: widget.ID, Price: decimal.Zero}},
	})
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}
