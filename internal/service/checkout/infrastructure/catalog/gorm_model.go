package catalog

import (
	"github.com/shopspring/decimal"
)

// CatalogItemModel 对应数据库中的 catalog_items 表
type CatalogItemModel struct {
	ID       uint            `gorm:"primaryKey"`
	Name     string          `gorm:"size:128;not null"`
	Price    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Position int             `gorm:"index;not null"`
}

// TableName 指定 GORM 应该使用的表名
func (CatalogItemModel) TableName() string {
	return "catalog_items"
}
