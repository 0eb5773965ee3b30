package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Catalog 是只读的有序商品列表，只支持按下标查找。
type Catalog struct {
	items []Item
}

// NewCatalog 校验每一件商品后构造目录。传入的切片会被复制。
func NewCatalog(items []Item) (*Catalog, error) {
	copied := make([]Item, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("catalog item %d: %w", i, err)
		}
		copied[i] = item
	}
	return &Catalog{items: copied}, nil
}

// DefaultCatalog 返回内置的鞋类目录。
func DefaultCatalog() *Catalog {
	return &Catalog{items: []Item{
		{Name: "Nike Air Force 1 High LV8", Price: decimal.RequireFromString("110.00")},
		{Name: "adidas Ultra Boost Clima", Price: decimal.RequireFromString("139.99")},
		{Name: "Jordan Retro 10", Price: decimal.RequireFromString("190.00")},
		{Name: "adidas Originals Prophere", Price: decimal.RequireFromString("49.99")},
		{Name: "New Balance 574 Classic", Price: decimal.RequireFromString("90.00")},
	}}
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// Items 返回目录的副本。
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Item 按下标返回商品，越界时返回 ErrItemNotFound。
func (c *Catalog) Item(index int) (Item, error) {
	if index < 0 || index >= len(c.items) {
		return Item{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrItemNotFound, index, len(c.items))
	}
	return c.items[index], nil
}
