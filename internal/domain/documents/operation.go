package documents

import (
	"context"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

// OperationType identifies the business role of a document.
type OperationType string

const (
	TypeSale        OperationType = "sale"
	TypePurchase    OperationType = "purchase"
	TypeTransfer    OperationType = "transfer"
	TypeStockTaking OperationType = "stock_taking"
	TypeProduction  OperationType = "production"
)

// Operation represents a business document: a header owning two ordered line
// collections. Pure movement documents use only Consumed; production documents
// use both.
type Operation struct {
	entity.Document

	Type OperationType `db:"type" json:"type"`

	PartnerID  *id.ID `db:"partner_id" json:"partnerId,omitempty"`
	LocationID id.ID  `db:"location_id" json:"locationId"`

	// ChildLocationID is set when the document moves stock between a location
	// and a sub-location (e.g. an order consumed at a restaurant floor
	// drawing from the kitchen store), and for transfers the destination.
	ChildLocationID *id.ID `db:"child_location_id" json:"childLocationId,omitempty"`

	// CounterRef links a transfer to its matching counter-document.
	CounterRef *id.ID `db:"counter_ref" json:"counterRef,omitempty"`

	UserID string `db:"user_id" json:"userId,omitempty"`

	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`
	TotalVAT    types.Money `db:"total_vat" json:"totalVat"`

	Consumed []*Detail `db:"-" json:"consumed"`
	Produced []*Detail `db:"-" json:"produced"`
}

// NewOperation creates a new unsaved operation.
func NewOperation(typ OperationType, locationID id.ID) *Operation {
	return &Operation{
		Document:   entity.NewDocument(),
		Type:       typ,
		LocationID: locationID,
	}
}

// ConsumedSign is the quantity multiplier for the consumed collection.
// Purchases bring stock in; every other role takes stock out.
func (o *Operation) ConsumedSign() int {
	if o.Type == TypePurchase {
		return 1
	}
	return -1
}

// SetKey transitions the document among draft/pending/committed states.
// Line quantity signs are reset on every transition; the resolver and
// allocator rely on this invariant when cloning lines.
func (o *Operation) SetKey(k types.DocKey) {
	o.Key = k
	o.NormalizeSigns()
}

// NormalizeSigns resets every line's quantity sign to its collection polarity.
// Stock-taking lines keep their deviation sign: a surplus line stays positive.
func (o *Operation) NormalizeSigns() {
	if o.Type == TypeStockTaking {
		return
	}
	sign := o.ConsumedSign()
	for _, d := range o.Consumed {
		d.ResetSign(sign)
	}
	for _, d := range o.Produced {
		d.ResetSign(1)
	}
}

// AddConsumed appends a line to the consumed collection.
func (o *Operation) AddConsumed(d *Detail) *Detail {
	d.ResetSign(o.ConsumedSign())
	d.LineNo = len(o.Consumed) + 1
	o.Consumed = append(o.Consumed, d)
	return d
}

// AddProduced appends a line to the produced collection.
func (o *Operation) AddProduced(d *Detail) *Detail {
	d.ResetSign(1)
	d.LineNo = len(o.Produced) + 1
	o.Produced = append(o.Produced, d)
	return d
}

// InsertConsumedAfter inserts line immediately after ref in the consumed
// collection. Used by allocation when splitting a line across lots.
func (o *Operation) InsertConsumedAfter(ref, line *Detail) bool {
	for i, d := range o.Consumed {
		if d == ref {
			o.Consumed = append(o.Consumed, nil)
			copy(o.Consumed[i+2:], o.Consumed[i+1:])
			o.Consumed[i+1] = line
			o.renumberConsumed()
			return true
		}
	}
	return false
}

// RemoveConsumed removes a line from the consumed collection.
func (o *Operation) RemoveConsumed(line *Detail) bool {
	for i, d := range o.Consumed {
		if d == line {
			o.Consumed = append(o.Consumed[:i], o.Consumed[i+1:]...)
			o.renumberConsumed()
			return true
		}
	}
	return false
}

func (o *Operation) renumberConsumed() {
	for i, d := range o.Consumed {
		d.LineNo = i + 1
	}
}

// AllLines returns both collections in order.
func (o *Operation) AllLines() []*Detail {
	lines := make([]*Detail, 0, len(o.Consumed)+len(o.Produced))
	lines = append(lines, o.Consumed...)
	lines = append(lines, o.Produced...)
	return lines
}

// Requirement is a duplicate-collapsed consumption need for one item.
type Requirement struct {
	ItemID   id.ID
	Quantity types.Quantity
	Lines    []*Detail
}

// MergedRequirements collapses consumed lines by item and returns the total
// quantity each item must supply, preserving first-seen order. Lines that add
// stock (positive after sign normalization) impose no requirement.
func (o *Operation) MergedRequirements() []*Requirement {
	index := make(map[id.ID]*Requirement)
	var merged []*Requirement
	for _, d := range o.Consumed {
		if d.Quantity >= 0 || id.IsNil(d.ItemID) {
			continue
		}
		req, ok := index[d.ItemID]
		if !ok {
			req = &Requirement{ItemID: d.ItemID}
			index[d.ItemID] = req
			merged = append(merged, req)
		}
		req.Quantity += d.Quantity.Abs()
		req.Lines = append(req.Lines, d)
	}
	return merged
}

// RequiredForAllocation is the quantity allocation must cover for a line.
// Stock-taking uses the entered quantity rather than the net delta.
func (o *Operation) RequiredForAllocation(d *Detail) types.Quantity {
	if o.Type == TypeStockTaking {
		return d.EnteredQuantity.Abs()
	}
	return d.Quantity.Abs()
}

// Recalculate recomputes line totals and header totals.
// Production documents are valued at cost, others at sale prices.
func (o *Operation) Recalculate() {
	atCost := o.Type == TypeProduction
	o.TotalAmount = types.Zero()
	o.TotalVAT = types.Zero()
	for _, d := range o.AllLines() {
		if atCost {
			d.RecalculateCost()
		} else {
			d.RecalculateSale()
		}
		o.TotalAmount = o.TotalAmount.Add(d.Total)
		o.TotalVAT = o.TotalVAT.Add(d.VATAmount)
	}
}

// Validate implements entity.Validatable.
func (o *Operation) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(o.LocationID) {
		return apperror.NewValidation("location is required").
			WithDetail("field", "locationId")
	}

	if len(o.Consumed) == 0 && len(o.Produced) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	if o.Type == TypeTransfer {
		if o.ChildLocationID == nil || id.IsNil(*o.ChildLocationID) {
			return apperror.NewValidation("transfer requires a destination location").
				WithDetail("field", "childLocationId")
		}
		if o.CounterRef == nil || id.IsNil(*o.CounterRef) {
			return apperror.NewValidation("transfer is missing its counter-document").
				WithDetail("field", "counterRef")
		}
	}

	for i, d := range o.AllLines() {
		if id.IsNil(d.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if d.Quantity.IsZero() && o.Type != TypeStockTaking {
			return apperror.NewValidation("quantity must not be zero").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// GetDocumentType returns the register recorder type.
func (o *Operation) GetDocumentType() string {
	switch o.Type {
	case TypeSale:
		return "Sale"
	case TypePurchase:
		return "Purchase"
	case TypeTransfer:
		return "Transfer"
	case TypeStockTaking:
		return "StockTaking"
	case TypeProduction:
		return "ProductionBatch"
	default:
		return "Operation"
	}
}

// GenerateMovements creates register movements for this document.
// Negative lines record expense, positive lines receipt; transfers addition-
// ally record the receipt at the destination location.
func (o *Operation) GenerateMovements(ctx context.Context) ([]entity.StockMovement, error) {
	newVersion := o.CommitVersion + 1
	var movements []entity.StockMovement

	add := func(locationID id.ID, d *Detail, rt entity.RecordType) {
		movements = append(movements, entity.NewStockMovement(
			o.ID,
			o.GetDocumentType(),
			newVersion,
			o.Date,
			rt,
			locationID,
			d.ItemID,
			d.LotID,
			d.Quantity.Abs(),
		))
	}

	for _, d := range o.AllLines() {
		if d.Quantity.IsZero() {
			continue
		}
		switch {
		case o.Type == TypeTransfer:
			add(o.LocationID, d, entity.RecordTypeExpense)
			add(*o.ChildLocationID, d, entity.RecordTypeReceipt)
		case d.Quantity.IsNegative():
			add(o.LocationID, d, entity.RecordTypeExpense)
		default:
			add(o.LocationID, d, entity.RecordTypeReceipt)
		}
	}

	return movements, nil
}
