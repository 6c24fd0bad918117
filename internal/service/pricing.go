package service

import (
	"salesledger/internal/model"

	"github.com/shopspring/decimal"
)

// priceColumns maps a price type to the product column it reads. Types not
// listed here, RETAIL included, use RetailPrice.
var priceColumns = map[model.PriceType]func(*model.Product) decimal.Decimal{
	model.PriceTypeWholesale:    func(p *model.Product) decimal.Decimal { return p.WholesalePrice },
	model.PriceTypeMediumDealer: func(p *model.Product) decimal.Decimal { return p.MediumDealerPrice },
	model.PriceTypeLargeDealer:  func(p *model.Product) decimal.Decimal { return p.LargeDealerPrice },
}

// ResolvePrice returns the unit price of product for priceType. A nil product is priced at zero.
func ResolvePrice(product *model.Product, priceType model.PriceType) decimal.Decimal {
	if product == nil {
		return decimal.Zero
	}
	if column, ok := priceColumns[priceType]; ok {
		return column(product)
	}
	return product.RetailPrice
}

// LinePrice returns override verbatim when set, the resolved catalog price otherwise.
func LinePrice(product *model.Product, priceType model.PriceType, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return ResolvePrice(product, priceType)
}
