package domain

import (
	"fmt"
	"strings"
)

// CountryCode 是结算所在国家，只支持固定映射表中的取值。
type CountryCode string

const (
	CountryUS CountryCode = "US"
	CountryIN CountryCode = "IN"
)

// CountryContext 是国家及其派生出的币种和展示名。
type CountryContext struct {
	Code         CountryCode `json:"country_code"`
	CurrencyCode string      `json:"currency_code"`
	DisplayName  string      `json:"display_name"`
}

// ParseCountry 解析 ISO 国家码，大小写不敏感。
func ParseCountry(s string) (CountryCode, error) {
	switch code := CountryCode(strings.ToUpper(strings.TrimSpace(s))); code {
	case CountryUS, CountryIN:
		return code, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCountry, s)
	}
}

func (c CountryCode) CurrencyCode() string {
	switch c {
	case CountryUS:
		return "USD"
	case CountryIN:
		return "INR"
	default:
		return ""
	}
}

func (c CountryCode) DisplayName() string {
	switch c {
	case CountryUS:
		return "United States"
	case CountryIN:
		return "India"
	default:
		return ""
	}
}

func (c CountryCode) Context() CountryContext {
	return CountryContext{
		Code:         c,
		CurrencyCode: c.CurrencyCode(),
		DisplayName:  c.DisplayName(),
	}
}
