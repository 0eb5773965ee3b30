package catalog

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"paysheet/internal/service/checkout/domain"
)

// GormCatalogRepository 从 MySQL 加载只读目录，服务启动时读取一次。
type GormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// Load 按 position 排序读取全部商品并构造目录。
func (r *GormCatalogRepository) Load(ctx context.Context) (*domain.Catalog, error) {
	var models []CatalogItemModel
	if err := r.db.WithContext(ctx).Order("position ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load catalog items")
	}
	return ToDomainCatalog(models)
}

// ToDomainCatalog 将数据库模型转换为领域目录
func ToDomainCatalog(models []CatalogItemModel) (*domain.Catalog, error) {
	items := make([]domain.Item, 0, len(models))
	for _, m := range models {
		items = append(items, domain.Item{Name: m.Name, Price: m.Price})
	}
	return domain.NewCatalog(items)
}
