package services_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
)

// In-memory fakes shared by the service tests. They honor the same
// contracts the gorm repositories do: gorm.ErrRecordNotFound for missing
// rows, WithTx returning the same repository since state is shared.

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Fake Transactor ---

// txSnapshotter is implemented by fakes whose state a failed transaction
// body must roll back.
type txSnapshotter interface {
	snapshot() func()
}

// fakeTransactor serializes transaction bodies with a mutex, standing in
// for the row locks that serialize them against a real database. Registered
// repositories are snapshotted before the body runs and restored when it
// errors, mirroring a rollback.
type fakeTransactor struct {
	mu    sync.Mutex
	repos []txSnapshotter
}

func (f *fakeTransactor) Transaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	restores := make([]func(), 0, len(f.repos))
	for _, r := range f.repos {
		restores = append(restores, r.snapshot())
	}
	if err := fn(nil); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// --- Fake CustomerRepository ---

type fakeCustomerRepo struct {
	byUser map[uuid.UUID]*models.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{byUser: make(map[uuid.UUID]*models.Customer)}
}

func (f *fakeCustomerRepo) WithTx(_ *gorm.DB) repository.CustomerRepository { return f }

func (f *fakeCustomerRepo) Create(_ context.Context, c *models.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.byUser[c.UserID] = c
	return nil
}

func (f *fakeCustomerRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	for _, c := range f.byUser {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCustomerRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*models.Customer, error) {
	c, ok := f.byUser[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

// --- Fake CategoryRepository ---

type fakeCategoryRepo struct {
	byID          map[uuid.UUID]*models.Category
	productCounts map[uuid.UUID]int64
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{
		byID:          make(map[uuid.UUID]*models.Category),
		productCounts: make(map[uuid.UUID]int64),
	}
}

func (f *fakeCategoryRepo) WithTx(_ *gorm.DB) repository.CategoryRepository { return f }

func (f *fakeCategoryRepo) Create(_ context.Context, c *models.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCategoryRepo) Update(_ context.Context, c *models.Category) error {
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCategoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeCategoryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeCategoryRepo) FindBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range f.byID {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCategoryRepo) List(_ context.Context, activeOnly bool) ([]models.Category, error) {
	var out []models.Category
	for _, c := range f.byID {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCategoryRepo) CountChildren(_ context.Context, parentID uuid.UUID, activeOnly bool) (int64, error) {
	var n int64
	for _, c := range f.byID {
		if c.ParentID == nil || *c.ParentID != parentID {
			continue
		}
		if activeOnly && !c.IsActive {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeCategoryRepo) CountProducts(_ context.Context, categoryID uuid.UUID, _ bool) (int64, error) {
	return f.productCounts[categoryID], nil
}

func (f *fakeCategoryRepo) UpdateSortOrder(_ context.Context, id uuid.UUID, sortOrder int) error {
	c, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.SortOrder = sortOrder
	return nil
}

// --- Fake ProductRepository ---

type fakeProductRepo struct {
	byID map[uuid.UUID]*models.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{byID: make(map[uuid.UUID]*models.Product)}
}

func (f *fakeProductRepo) WithTx(_ *gorm.DB) repository.ProductRepository { return f }

func (f *fakeProductRepo) Create(_ context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Update(_ context.Context, p *models.Product) error {
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeProductRepo) FindBySlug(_ context.Context, slug string) (*models.Product, error) {
	for _, p := range f.byID {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductRepo) FindBySKU(_ context.Context, sku string) (*models.Product, error) {
	for _, p := range f.byID {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductRepo) FindByBarcode(_ context.Context, barcode string) (*models.Product, error) {
	for _, p := range f.byID {
		if p.Barcode != nil && *p.Barcode == barcode {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeProductRepo) List(_ context.Context, filter models.ProductListFilter) ([]models.Product, int64, error) {
	var out []models.Product
	for _, p := range f.byID {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeProductRepo) ListLowStock(_ context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.byID {
		if p.IsActive && p.StockQuantity <= p.LowStockThreshold {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) UpdateStockQuantity(_ context.Context, id uuid.UUID, quantity int) error {
	p, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.StockQuantity = quantity
	return nil
}

func (f *fakeProductRepo) UpdatePrice(_ context.Context, id uuid.UUID, price decimal.Decimal) error {
	p, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Price = price
	return nil
}

// snapshot captures product state for transaction rollback. Restoration
// writes values back through the existing pointers so references held by
// tests stay live.
func (f *fakeProductRepo) snapshot() func() {
	saved := make(map[uuid.UUID]models.Product, len(f.byID))
	for id, p := range f.byID {
		saved[id] = *p
	}
	return func() {
		for id := range f.byID {
			if _, ok := saved[id]; !ok {
				delete(f.byID, id)
			}
		}
		for id, val := range saved {
			if p, ok := f.byID[id]; ok {
				*p = val
			} else {
				cp := val
				f.byID[id] = &cp
			}
		}
	}
}

// --- Fake CartRepository ---

// fakeCartRepo guards its state with a mutex: cart reads outside a
// transaction run concurrently with item writes inside one, the way they do
// against a real pool.
type fakeCartRepo struct {
	mu       sync.Mutex
	products *fakeProductRepo
	carts    map[uuid.UUID]*models.Cart
	items    []*models.CartItem
}

func newFakeCartRepo(products *fakeProductRepo) *fakeCartRepo {
	return &fakeCartRepo{
		products: products,
		carts:    make(map[uuid.UUID]*models.Cart),
	}
}

func (f *fakeCartRepo) WithTx(_ *gorm.DB) repository.CartRepository { return f }

func (f *fakeCartRepo) Create(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	f.carts[cart.CustomerID] = cart
	return nil
}

// FindByCustomerID hydrates items and their products the way the gorm
// repository preloads them.
func (f *fakeCartRepo) FindByCustomerID(_ context.Context, customerID uuid.UUID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cart, ok := f.carts[customerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	loaded := *cart
	loaded.Items = nil
	for _, item := range f.items {
		if item.CartID != cart.ID {
			continue
		}
		line := *item
		if p, ok := f.products.byID[item.ProductID]; ok {
			line.Product = p
		}
		loaded.Items = append(loaded.Items, line)
	}
	return &loaded, nil
}

func (f *fakeCartRepo) FindItem(_ context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.CartID == cartID && item.ProductID == productID {
			return item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) CreateItem(_ context.Context, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeCartRepo) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.ID == itemID {
			item.Quantity = quantity
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeCartRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.ID == itemID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeCartRepo) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.items[:0]
	for _, item := range f.items {
		if item.CartID != cartID {
			kept = append(kept, item)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeCartRepo) DeleteItemsByProduct(_ context.Context, productID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.items[:0]
	for _, item := range f.items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeCartRepo) snapshot() func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	carts := make(map[uuid.UUID]*models.Cart, len(f.carts))
	for id, c := range f.carts {
		cp := *c
		carts[id] = &cp
	}
	items := make([]*models.CartItem, len(f.items))
	for i, item := range f.items {
		cp := *item
		items[i] = &cp
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.carts = carts
		f.items = items
	}
}

// --- Fake OrderRepository ---

type fakeOrderRepo struct {
	byID       map[uuid.UUID]*models.Order
	lastFilter models.OrderListFilter
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{byID: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderRepo) WithTx(_ *gorm.DB) repository.OrderRepository { return f }

func (f *fakeOrderRepo) Create(_ context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	f.byID[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) Update(_ context.Context, order *models.Order) error {
	if _, ok := f.byID[order.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.byID[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeOrderRepo) FindByIDAndCustomer(_ context.Context, id, customerID uuid.UUID) (*models.Order, error) {
	order, ok := f.byID[id]
	if !ok || order.CustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) FindByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	for _, order := range f.byID {
		if order.OrderNumber == orderNumber {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrderRepo) ExistsByOrderNumber(_ context.Context, orderNumber string) (bool, error) {
	for _, order := range f.byID {
		if order.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrderRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, order := range f.byID {
		if order.CustomerID == customerID {
			out = append(out, *order)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrderRepo) List(_ context.Context, filter models.OrderListFilter) ([]models.Order, int64, error) {
	f.lastFilter = filter
	var out []models.Order
	for _, order := range f.byID {
		out = append(out, *order)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrderRepo) ListToday(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, order := range f.byID {
		out = append(out, *order)
	}
	return out, nil
}

func (f *fakeOrderRepo) SearchByOrderNumber(_ context.Context, term string, _, _ int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, order := range f.byID {
		if strings.HasPrefix(order.OrderNumber, term) {
			out = append(out, *order)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrderRepo) snapshot() func() {
	saved := make(map[uuid.UUID]*models.Order, len(f.byID))
	for id, o := range f.byID {
		cp := *o
		cp.Items = append([]models.OrderItem(nil), o.Items...)
		saved[id] = &cp
	}
	return func() {
		f.byID = saved
	}
}

func (f *fakeOrderRepo) CountItemsByProduct(_ context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	for _, order := range f.byID {
		for _, item := range order.Items {
			if item.ProductID == productID {
				n++
			}
		}
	}
	return n, nil
}

// --- Fake UserRepository ---

type fakeUserRepo struct {
	byID map[uuid.UUID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) WithTx(_ *gorm.DB) repository.UserRepository { return f }

func (f *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// --- Fake SNS Publisher ---

type fakeSNSPublisher struct {
	mu     sync.Mutex
	topics []string
	events []string
}

func (f *fakeSNSPublisher) Publish(_ context.Context, topicArn string, message []byte) error {
	var ev struct {
		EventType string `json:"event_type"`
	}
	_ = json.Unmarshal(message, &ev)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topicArn)
	f.events = append(f.events, ev.EventType)
	return nil
}

func (f *fakeSNSPublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}
