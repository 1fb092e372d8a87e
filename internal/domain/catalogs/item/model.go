// Package item provides the stock item catalog.
// Items are the goods, materials, and manufactured products moved by documents.
package item

import (
	"context"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/types"
)

// ItemType defines the category of an item.
type ItemType string

const (
	TypeGoods    ItemType = "goods"
	TypeService  ItemType = "service"
	TypeMaterial ItemType = "material"
	TypeSemi     ItemType = "semi"
	TypeProduct  ItemType = "product"
)

// VATRate defines the VAT rate applied to an item.
type VATRate string

const (
	VAT0  VATRate = "0"
	VAT10 VATRate = "10"
	VAT20 VATRate = "20"
)

// Percent returns the numeric VAT percentage.
func (r VATRate) Percent() int64 {
	switch r {
	case VAT10:
		return 10
	case VAT20:
		return 20
	default:
		return 0
	}
}

// PriceGroup selects which stored price of an item to use.
type PriceGroup string

const (
	PricePurchase  PriceGroup = "purchase"
	PriceWholesale PriceGroup = "wholesale"
	PriceRetail    PriceGroup = "retail"
)

// Item represents a stock item.
type Item struct {
	entity.Catalog

	// Type defines item category
	Type ItemType `db:"type" json:"type"`

	// Barcode is the item barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	// BaseUnit is the unit of measure code
	BaseUnit string `db:"base_unit" json:"baseUnit"`

	// VATRate is the default VAT rate
	VATRate VATRate `db:"vat_rate" json:"vatRate"`

	// TrackLots indicates the item is tracked by saved lots
	TrackLots bool `db:"track_lots" json:"trackLots"`

	// Stored prices per price group
	PurchasePrice  types.Money `db:"purchase_price" json:"purchasePrice"`
	WholesalePrice types.Money `db:"wholesale_price" json:"wholesalePrice"`
	RetailPrice    types.Money `db:"retail_price" json:"retailPrice"`
}

// NewItem creates a new Item with required fields.
func NewItem(code, name string, itemType ItemType) *Item {
	return &Item{
		Catalog: entity.NewCatalog(code, name),
		Type:    itemType,
		VATRate: VAT20,
	}
}

// UsesSavedLots reports whether allocation should assign lots to this item.
// Services and works are never lot-tracked regardless of the flag.
func (i *Item) UsesSavedLots() bool {
	if i.Type == TypeService {
		return false
	}
	return i.TrackLots
}

// Price returns the stored price for a group.
func (i *Item) Price(group PriceGroup) types.Money {
	switch group {
	case PricePurchase:
		return i.PurchasePrice
	case PriceWholesale:
		return i.WholesalePrice
	default:
		return i.RetailPrice
	}
}

// Validate implements entity.Validatable interface.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.Catalog.Validate(ctx); err != nil {
		return err
	}

	switch i.Type {
	case TypeGoods, TypeService, TypeMaterial, TypeSemi, TypeProduct:
	default:
		return apperror.NewValidation("invalid item type").
			WithDetail("field", "type").
			WithDetail("value", string(i.Type))
	}

	switch i.VATRate {
	case VAT0, VAT10, VAT20:
	default:
		return apperror.NewValidation("invalid VAT rate").
			WithDetail("field", "vatRate").
			WithDetail("value", string(i.VATRate))
	}

	return nil
}
