// Package documents provides the Operation document and its Detail lines.
// An Operation moves quantities of items between locations; Details carry the
// per-line quantity, price, discount, VAT and lot math.
package documents

import (
	"time"

	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

// Detail represents one line of an operation.
// Quantity is signed by the owning document's polarity: consumption lines
// carry a negative multiplier, production-output lines positive. The sign is
// reset on every document state transition.
type Detail struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemID   id.ID          `db:"item_id" json:"itemId"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// EnteredQuantity is the raw counted quantity for stock-taking lines;
	// allocation uses it instead of the net delta.
	EnteredQuantity types.Quantity `db:"entered_quantity" json:"enteredQuantity"`

	// UnitInputPrice is the cost basis; UnitOutputPrice the sale price.
	UnitInputPrice  types.Money `db:"unit_input_price" json:"unitInputPrice"`
	UnitOutputPrice types.Money `db:"unit_output_price" json:"unitOutputPrice"`

	// DiscountPercent is the per-line discount; Discount accumulates the
	// amounts apportioned by distributed-discount passes.
	DiscountPercent types.Money `db:"discount_percent" json:"discountPercent"`
	Discount        types.Money `db:"discount" json:"discount"`

	VATRate   string      `db:"vat_rate" json:"vatRate"`
	VATAmount types.Money `db:"vat_amount" json:"vatAmount"`
	Total     types.Money `db:"total" json:"total"`

	// Lot assignment (nil until allocation runs or the user picks one).
	LotID             *id.ID     `db:"lot_id" json:"lotId,omitempty"`
	LotName           string     `db:"lot_name" json:"lotName,omitempty"`
	LotProductionDate *time.Time `db:"lot_production_date" json:"lotProductionDate,omitempty"`
	LotExpirationDate *time.Time `db:"lot_expiration_date" json:"lotExpirationDate,omitempty"`

	// FinalProductID is the top-level item whose shortage caused this line to
	// be synthesized; SourceRecipeID the recipe that generated it. Both are
	// set only on resolver-generated lines and kept until commit.
	FinalProductID *id.ID `db:"final_product_id" json:"finalProductId,omitempty"`
	SourceRecipeID *id.ID `db:"source_recipe_id" json:"sourceRecipeId,omitempty"`

	Note string `db:"note" json:"note,omitempty"`
}

// NewDetail creates a line for an item.
func NewDetail(itemID id.ID, quantity types.Quantity) *Detail {
	return &Detail{
		LineID:   id.New(),
		ItemID:   itemID,
		Quantity: quantity,
		VATRate:  "0",
	}
}

// HasLot reports whether the line already carries a positive lot reference.
// Allocation skips such lines, which makes re-allocation a no-op.
func (d *Detail) HasLot() bool {
	return d.LotID != nil && !id.IsNil(*d.LotID)
}

// ResetSign forces the quantity sign to the collection polarity.
func (d *Detail) ResetSign(sign int) {
	if sign < 0 {
		d.Quantity = d.Quantity.Abs().Neg()
	} else {
		d.Quantity = d.Quantity.Abs()
	}
}

// Clone returns a copy with a fresh line id and no lot assignment.
// Used when allocation splits a line across lots.
func (d *Detail) Clone() *Detail {
	c := *d
	c.LineID = id.New()
	c.LotID = nil
	c.LotName = ""
	c.LotProductionDate = nil
	c.LotExpirationDate = nil
	return &c
}

// AssignLot copies lot identity, price and dates onto the line.
func (d *Detail) AssignLot(lotID id.ID, name string, price types.Money, productionDate, expirationDate *time.Time) {
	lid := lotID
	d.LotID = &lid
	d.LotName = name
	if !price.IsZero() {
		d.UnitInputPrice = price
	}
	d.LotProductionDate = productionDate
	d.LotExpirationDate = expirationDate
}

// ClearLot resets the line to the empty-lot marker.
func (d *Detail) ClearLot() {
	d.LotID = nil
	d.LotName = ""
	d.LotProductionDate = nil
	d.LotExpirationDate = nil
}

// CostTotal is the line value at cost basis.
func (d *Detail) CostTotal() types.Money {
	return types.RoundMoney(d.Quantity.Abs().Decimal().Mul(d.UnitInputPrice))
}

// RecalculateCost recomputes the total from the input price.
// Production batch lines are valued at cost; no VAT applies.
func (d *Detail) RecalculateCost() {
	d.VATAmount = types.Zero()
	d.Total = d.CostTotal()
}

// RecalculateSale recomputes the total from the output price with the
// percent discount, the accumulated distributed discount, and VAT.
func (d *Detail) RecalculateSale() {
	base := d.Quantity.Abs().Decimal().Mul(d.UnitOutputPrice)
	if !d.DiscountPercent.IsZero() {
		base = base.Sub(base.Mul(d.DiscountPercent).Div(types.NewMoney(100)))
	}
	base = base.Sub(d.Discount)
	d.VATAmount = types.RoundMoney(base.Mul(types.NewMoney(float64(vatPercent(d.VATRate)))).Div(types.NewMoney(100)))
	d.Total = types.RoundMoney(base).Add(d.VATAmount)
}

func vatPercent(rate string) int64 {
	switch rate {
	case "10":
		return 10
	case "20":
		return 20
	default:
		return 0
	}
}
