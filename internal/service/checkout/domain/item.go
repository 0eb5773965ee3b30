package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item 是目录中的一件商品，加载后不可变。
type Item struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// NewItem 创建并校验一件商品。
func NewItem(name string, price decimal.Decimal) (Item, error) {
	item := Item{Name: name, Price: price}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Validate 拒绝空名称和负价格，这两种输入属于调用方违约。
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidItem)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: price %s is negative", ErrInvalidItem, i.Price.String())
	}
	return nil
}

// MarshalJSON 以两位小数输出价格。
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		Price string `json:"price"`
	}{i.Name, i.Price.StringFixed(moneyPlaces)})
}
