package dto

import (
	"fabrica/internal/domain/catalogs/item"
)

// CreateItemRequest is the payload for item creation.
type CreateItemRequest struct {
	Code           string  `json:"code" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	Type           string  `json:"type" binding:"required"`
	Barcode        *string `json:"barcode"`
	BaseUnit       string  `json:"baseUnit"`
	VATRate        string  `json:"vatRate"`
	TrackLots      bool    `json:"trackLots"`
	PurchasePrice  float64 `json:"purchasePrice"`
	WholesalePrice float64 `json:"wholesalePrice"`
	RetailPrice    float64 `json:"retailPrice"`
}

// UpdateItemRequest is the payload for item updates.
type UpdateItemRequest struct {
	Name           string  `json:"name" binding:"required"`
	Barcode        *string `json:"barcode"`
	BaseUnit       string  `json:"baseUnit"`
	VATRate        string  `json:"vatRate"`
	TrackLots      bool    `json:"trackLots"`
	PurchasePrice  float64 `json:"purchasePrice"`
	WholesalePrice float64 `json:"wholesalePrice"`
	RetailPrice    float64 `json:"retailPrice"`
	Version        int     `json:"version" binding:"required"`
}

// ItemResponse is the item representation.
type ItemResponse struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Barcode        *string `json:"barcode,omitempty"`
	BaseUnit       string  `json:"baseUnit"`
	VATRate        string  `json:"vatRate"`
	TrackLots      bool    `json:"trackLots"`
	PurchasePrice  string  `json:"purchasePrice"`
	WholesalePrice string  `json:"wholesalePrice"`
	RetailPrice    string  `json:"retailPrice"`
	DeletionMark   bool    `json:"deletionMark"`
	Version        int     `json:"version"`
}

// FromItem maps an item to its response.
func FromItem(it *item.Item) ItemResponse {
	return ItemResponse{
		ID:             it.ID.String(),
		Code:           it.Code,
		Name:           it.Name,
		Type:           string(it.Type),
		Barcode:        it.Barcode,
		BaseUnit:       it.BaseUnit,
		VATRate:        string(it.VATRate),
		TrackLots:      it.TrackLots,
		PurchasePrice:  it.PurchasePrice.String(),
		WholesalePrice: it.WholesalePrice.String(),
		RetailPrice:    it.RetailPrice.String(),
		DeletionMark:   it.DeletionMark,
		Version:        it.Version,
	}
}

// FromItems maps a slice of items.
func FromItems(items []*item.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, FromItem(it))
	}
	return out
}
