package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paysheet/internal/service/checkout/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

var selectItems = regexp.QuoteMeta("SELECT * FROM `catalog_items` ORDER BY position ASC,id ASC")

func TestGormCatalogRepository_Load(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "name", "price", "position"}).
		AddRow(1, "Nike Air Force 1 High LV8", "110.00", 0).
		AddRow(2, "Jordan Retro 10", "190.00", 1)
	mock.ExpectQuery(selectItems).WillReturnRows(rows)

	catalog, err := NewGormCatalogRepository(db).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, catalog.Len())

	item, err := catalog.Item(1)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Retro 10", item.Name)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("190")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCatalogRepository_LoadRejectsInvalidRows(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "name", "price", "position"}).
		AddRow(1, "Broken", "-1.00", 0)
	mock.ExpectQuery(selectItems).WillReturnRows(rows)

	_, err := NewGormCatalogRepository(db).Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
}

func TestGormCatalogRepository_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(selectItems).WillReturnError(errors.New("connection refused"))

	_, err := NewGormCatalogRepository(db).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load catalog items")
}
