package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return gormDB, mock
}

func productRows(id uuid.UUID, name string, stock int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "slug", "price", "sku", "stock_quantity", "low_stock_threshold", "category_id", "is_active", "created_at", "updated_at"}).
		AddRow(id, name, name, "19.99", "SKU-"+name, stock, 10, uuid.New(), true, now, now)
}

func TestProductCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	product := &models.Product{
		ID:            uuid.New(),
		Name:          "Claw Hammer",
		Slug:          "claw-hammer",
		Price:         decimal.RequireFromString("19.99"),
		SKU:           "HAM-001",
		StockQuantity: 25,
		CategoryID:    uuid.New(),
		IsActive:      true,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(product.ID))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), product)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindByIDForUpdate_LocksRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM "products" .*FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(productRows(id, "hammer", 25))

	p, err := repo.FindByIDForUpdate(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, 25, p.StockQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	p, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, p)
}

func TestProductUpdateStockQuantity_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock_quantity"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStockQuantity(context.Background(), uuid.New(), 7)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductUpdateStockQuantity_MissingRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock_quantity"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStockQuantity(context.Background(), uuid.New(), 7)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductListLowStock_FiltersOnThreshold(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(`SELECT .* FROM "products" WHERE is_active = .* AND stock_quantity <= low_stock_threshold`).
		WillReturnRows(productRows(uuid.New(), "hammer", 2))

	products, err := repo.ListLowStock(context.Background())
	assert.NoError(t, err)
	assert.Len(t, products, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
