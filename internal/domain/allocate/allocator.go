// Package allocate assigns stock lots to document lines before commit.
// Lots are drained oldest first; a line is split across lots when a single
// lot cannot cover its requirement.
package allocate

import (
	"context"

	"fabrica/internal/core/config"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/registers/stock"
	"fabrica/pkg/logger"
)

// LotSource supplies the ordered lot ledger.
type LotSource interface {
	Lots(ctx context.Context, locationID, itemID id.ID, filter stock.LotFilter) ([]*stock.Lot, error)
}

// QuantityHook lets an operation override the quantity written onto a line
// when a lot portion is assigned. Stock-taking, for example, keeps the
// counted deviation instead of the consumed amount.
type QuantityHook func(line *documents.Detail, consumed types.Quantity)

// Allocator performs lot assignment over an operation's consumed lines.
type Allocator struct {
	flags config.Flags
	items item.Reader
	lots  LotSource
}

// New creates an Allocator.
func New(flags config.Flags, items item.Reader, lots LotSource) *Allocator {
	return &Allocator{
		flags: flags,
		items: items,
		lots:  lots,
	}
}

// Request describes one line-level allocation.
type Request struct {
	Line *documents.Detail

	// LotName, when set, restricts candidates to lots with this name.
	LotName string

	// BarcodeScan requests exactly one unit regardless of line quantity.
	BarcodeScan bool

	// ForLot and ForEmpty override the quantity written when a lot portion
	// (or the unlotted residual) is assigned. Nil means the default of
	// writing the consumed amount.
	ForLot   QuantityHook
	ForEmpty QuantityHook
}

// AllocateAll runs Allocate for every consumed line of the operation.
// Already-assigned lines are skipped, so the pass is idempotent.
func (a *Allocator) AllocateAll(ctx context.Context, op *documents.Operation) error {
	// Snapshot: Allocate inserts split clones which must not be revisited.
	pending := make([]*documents.Detail, len(op.Consumed))
	copy(pending, op.Consumed)

	for _, line := range pending {
		if err := a.Allocate(ctx, op, Request{Line: line}); err != nil {
			return err
		}
	}
	return nil
}

// Allocate assigns lots to one line, splitting it across lots as needed.
//
// The pass is a no-op when lot tracking is off, the item does not keep saved
// lots, or the line already carries a lot. A residual that no lot covers is
// left on an unlotted line silently; this is the permitted-negative path, not
// an error.
func (a *Allocator) Allocate(ctx context.Context, op *documents.Operation, req Request) error {
	line := req.Line

	if !a.flags.LotsEnabled(ctx) || id.IsNil(line.ItemID) || line.HasLot() {
		return nil
	}

	it, err := a.items.GetByID(ctx, line.ItemID)
	if err != nil {
		return err
	}
	if !it.UsesSavedLots() {
		return nil
	}

	required := op.RequiredForAllocation(line)
	if req.BarcodeScan {
		required = types.One
	}
	if required.IsZero() {
		return nil
	}

	lots, err := a.lots.Lots(ctx, op.LocationID, line.ItemID, stock.LotFilter{Name: req.LotName})
	if err != nil {
		return err
	}

	working := a.reserveAgainstSiblings(op, line, lots)

	negative := line.Quantity.IsNegative()
	writeQty := func(target *documents.Detail, hook QuantityHook, consumed types.Quantity) {
		if hook != nil {
			hook(target, consumed)
			return
		}
		if negative {
			target.Quantity = consumed.Neg()
		} else {
			target.Quantity = consumed
		}
	}

	current := line
	remaining := required

	for _, lot := range lots {
		avail := working[lot.ID]
		if !avail.IsPositive() {
			continue
		}

		take := avail.Min(remaining)
		working[lot.ID] = avail - take
		remaining -= take

		current.AssignLot(lot.ID, lot.Name, lot.UnitPrice, lot.ProductionDate, lot.ExpirationDate)
		writeQty(current, req.ForLot, take)

		if remaining.IsZero() {
			return nil
		}

		// The clone carries what is still owed; it either matches a later
		// lot or ends up as the unlotted residual below.
		split := current.Clone()
		writeQty(split, req.ForLot, remaining)
		op.InsertConsumedAfter(current, split)
		current = split
	}

	// Residual no lot covered: keep it on an unlotted line.
	writeQty(current, req.ForEmpty, remaining)

	if !a.flags.AllowNegativeAvailability(ctx) {
		logger.Warn(ctx, "lot allocation left an uncovered residual",
			"item_id", line.ItemID.String(),
			"location_id", op.LocationID.String(),
			"residual", remaining.String(),
		)
	}
	return nil
}

// reserveAgainstSiblings computes each lot's working availability after
// subtracting quantities other lines in the same document already hold
// against it. Persisted lot counters are not touched.
func (a *Allocator) reserveAgainstSiblings(op *documents.Operation, line *documents.Detail, lots []*stock.Lot) map[id.ID]types.Quantity {
	working := make(map[id.ID]types.Quantity, len(lots))
	for _, lot := range lots {
		working[lot.ID] = lot.Quantity
	}

	for _, sibling := range op.Consumed {
		if sibling == line || !sibling.HasLot() {
			continue
		}
		if avail, ok := working[*sibling.LotID]; ok {
			working[*sibling.LotID] = avail - sibling.Quantity.Abs()
		}
	}
	return working
}
