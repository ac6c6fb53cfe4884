package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
)

// --- Helpers ---

type cartEnv struct {
	customers *fakeCustomerRepo
	products  *fakeProductRepo
	carts     *fakeCartRepo
	svc       services.CartService
}

func newCartEnv(t *testing.T) *cartEnv {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	customers := newFakeCustomerRepo()
	products := newFakeProductRepo()
	carts := newFakeCartRepo(products)

	tx := &fakeTransactor{repos: []txSnapshotter{products, carts}}
	svc := services.NewCartService(carts, products, customers, tx, logger)
	return &cartEnv{customers: customers, products: products, carts: carts, svc: svc}
}

func (e *cartEnv) seedCustomer() uuid.UUID {
	userID := uuid.New()
	e.customers.byUser[userID] = &models.Customer{ID: uuid.New(), UserID: userID, FirstName: "Ada", LastName: "Lovelace"}
	return userID
}

func (e *cartEnv) seedProduct(name string, price string, stock int) *models.Product {
	p := &models.Product{
		ID:            uuid.New(),
		Name:          name,
		Slug:          name,
		SKU:           name,
		Price:         dec(price),
		StockQuantity: stock,
		CategoryID:    uuid.New(),
		IsActive:      true,
	}
	e.products.byID[p.ID] = p
	return p
}

func addReq(productID uuid.UUID, qty int) *models.AddCartItemRequest {
	return &models.AddCartItemRequest{ProductID: productID, Quantity: qty}
}

// --- Tests ---

func TestService_GetCart_CreatesLazily(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()

	cart, svcErr := env.svc.GetCart(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.NotNil(t, cart)
	assert.NotEqual(t, uuid.Nil, cart.ID)
	assert.Empty(t, cart.Items)
	assert.Len(t, env.carts.carts, 1, "cart persisted on first access")
}

func TestService_AddItem_NewLine(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 5)

	cart, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.Nil(t, svcErr)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.NotNil(t, cart.Items[0].Product)
	assert.True(t, cart.Subtotal().Equal(dec("40.00")))
	assert.Equal(t, 5, widget.StockQuantity, "adding to cart never holds stock")
}

func TestService_AddItem_IncrementsExistingLine(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 10)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.Nil(t, svcErr)

	cart, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 3))
	assert.Nil(t, svcErr)
	assert.Len(t, cart.Items, 1, "same product lands on the same line")
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 5, cart.TotalItems())
}

func TestService_AddItem_CombinedExceedsStock(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 4)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 3))
	assert.Nil(t, svcErr)

	_, svcErr = env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Cannot add 2. Cart already has 3. Only 4 available in stock.", svcErr.Message)
}

func TestService_AddItem_QuantityBounds(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 500)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 0))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Quantity must be at least 1", svcErr.Message)

	_, svcErr = env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 101))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Maximum quantity per item is 100", svcErr.Message)
}

func TestService_AddItem_CombinedExceedsLineCap(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 500)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 60))
	assert.Nil(t, svcErr)

	_, svcErr = env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 50))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Maximum 100 items per product", svcErr.Message)
}

func TestService_AddItem_InactiveProduct(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 5)
	widget.IsActive = false

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 1))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Product is not available", svcErr.Message)
}

func TestService_AddItem_ProductNotFound(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(uuid.New(), 1))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Equal(t, "Product not found", svcErr.Message)
}

func TestService_AddItem_FreshLineExceedsStock(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 3)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 4))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Only 3 item(s) available in stock", svcErr.Message)
}

func TestService_AddItem_NoCustomerProfile(t *testing.T) {
	env := newCartEnv(t)
	widget := env.seedProduct("Widget", "20.00", 5)

	_, svcErr := env.svc.AddItem(context.Background(), uuid.New(), addReq(widget.ID, 1))
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Equal(t, "Customer profile not found", svcErr.Message)
}

func TestService_ConcurrentAddItem_LastUnit(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 1)

	// Materialize the cart first so both adds race on the same line.
	_, svcErr := env.svc.GetCart(context.Background(), userID)
	assert.Nil(t, svcErr)

	var wg sync.WaitGroup
	results := make([]*services.ServiceError, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, svcErr := range results {
		if svcErr == nil {
			succeeded++
		} else {
			assert.Equal(t, 400, svcErr.StatusCode)
			assert.Contains(t, svcErr.Message, "available in stock")
		}
	}
	assert.Equal(t, 1, succeeded, "only one add wins the last unit")

	cart, svcErr := env.svc.GetCart(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, 1, widget.StockQuantity, "stock only moves at checkout")
}

// racingCartRepo plays out a lost lazy-create race: the initial read misses
// and the insert then collides with a cart another request committed first.
type racingCartRepo struct {
	*fakeCartRepo
	misses int
}

func (r *racingCartRepo) FindByCustomerID(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	if r.misses > 0 {
		r.misses--
		return nil, gorm.ErrRecordNotFound
	}
	return r.fakeCartRepo.FindByCustomerID(ctx, customerID)
}

func (r *racingCartRepo) Create(_ context.Context, _ *models.Cart) error {
	return gorm.ErrDuplicatedKey
}

func TestService_GetCart_LostCreateRaceRereads(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	customers := newFakeCustomerRepo()
	products := newFakeProductRepo()
	inner := newFakeCartRepo(products)
	carts := &racingCartRepo{fakeCartRepo: inner, misses: 1}

	userID := uuid.New()
	customer := &models.Customer{ID: uuid.New(), UserID: userID, FirstName: "Ada", LastName: "Lovelace"}
	customers.byUser[userID] = customer
	inner.carts[customer.ID] = &models.Cart{ID: uuid.New(), CustomerID: customer.ID}

	svc := services.NewCartService(carts, products, customers, &fakeTransactor{}, logger)

	cart, svcErr := svc.GetCart(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.NotNil(t, cart)
	assert.Equal(t, customer.ID, cart.CustomerID)
	assert.Len(t, inner.carts, 1, "no duplicate cart created")
}

func TestService_UpdateItemQuantity_SetsQuantity(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 10)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.Nil(t, svcErr)

	cart, svcErr := env.svc.UpdateItemQuantity(context.Background(), userID, widget.ID, 7)
	assert.Nil(t, svcErr)
	assert.Equal(t, 7, cart.Items[0].Quantity, "update sets, not adds")
}

func TestService_UpdateItemQuantity_CartNotFound(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 10)

	_, svcErr := env.svc.UpdateItemQuantity(context.Background(), userID, widget.ID, 1)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Equal(t, "Cart not found", svcErr.Message)
}

func TestService_UpdateItemQuantity_ItemNotInCart(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 10)
	gadget := env.seedProduct("Gadget", "5.00", 10)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 1))
	assert.Nil(t, svcErr)

	_, svcErr = env.svc.UpdateItemQuantity(context.Background(), userID, gadget.ID, 1)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Equal(t, "Item not in cart", svcErr.Message)
}

func TestService_UpdateItemQuantity_InsufficientStock(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 3)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.Nil(t, svcErr)

	_, svcErr = env.svc.UpdateItemQuantity(context.Background(), userID, widget.ID, 10)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Equal(t, "Only 3 item(s) available in stock", svcErr.Message)
}

func TestService_RemoveItem(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 10)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.Nil(t, svcErr)

	cart, svcErr := env.svc.RemoveItem(context.Background(), userID, widget.ID)
	assert.Nil(t, svcErr)
	assert.Empty(t, cart.Items)

	_, svcErr = env.svc.RemoveItem(context.Background(), userID, widget.ID)
	assert.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Equal(t, "Item not in cart", svcErr.Message)
}

func TestService_ClearCart(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 10)
	gadget := env.seedProduct("Gadget", "5.00", 10)

	_, svcErr := env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 2))
	assert.Nil(t, svcErr)
	_, svcErr = env.svc.AddItem(context.Background(), userID, addReq(gadget.ID, 1))
	assert.Nil(t, svcErr)

	cart, svcErr := env.svc.ClearCart(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.NotNil(t, cart)
	assert.Empty(t, cart.Items)
}

func TestService_ClearCart_NoCartIsNoop(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()

	cart, svcErr := env.svc.ClearCart(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.Nil(t, cart)
}

func TestService_ValidateForCheckout(t *testing.T) {
	env := newCartEnv(t)
	userID := env.seedCustomer()
	widget := env.seedProduct("Widget", "20.00", 5)

	valid, reason, svcErr := env.svc.ValidateForCheckout(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.False(t, valid)
	assert.Equal(t, "Cart is empty", reason)

	_, svcErr = env.svc.AddItem(context.Background(), userID, addReq(widget.ID, 3))
	assert.Nil(t, svcErr)

	valid, reason, svcErr = env.svc.ValidateForCheckout(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.True(t, valid)
	assert.Empty(t, reason)

	// Stock drifts below the cart quantity after the add.
	widget.StockQuantity = 2
	valid, reason, svcErr = env.svc.ValidateForCheckout(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.False(t, valid)
	assert.Equal(t, "Insufficient stock for 'Widget'. Only 2 available, but cart has 3", reason)

	widget.StockQuantity = 5
	widget.IsActive = false
	valid, reason, svcErr = env.svc.ValidateForCheckout(context.Background(), userID)
	assert.Nil(t, svcErr)
	assert.False(t, valid)
	assert.Equal(t, "Product 'Widget' is no longer available", reason)
}
