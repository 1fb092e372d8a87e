// Package costing provides the proportional distribution algorithms used when
// pricing production batches and spreading document-level discounts.
package costing

import (
	"fabrica/internal/core/types"
	"fabrica/internal/domain/documents"
)

// DistributeCost apportions raw-material cost across produced lines, weighted
// by their sale value. Lines are grouped by source recipe (or note when no
// recipe is set) so each recipe's materials are costed against its own
// outputs.
//
// A group whose produced value is zero falls back to quantity weighting with
// unit price 1. This degenerate-pricing rule affects observable rounding and
// is kept deliberately.
func DistributeCost(consumed, produced []*documents.Detail) {
	groups := make(map[string]*costGroup)
	var order []string

	groupOf := func(d *documents.Detail) *costGroup {
		key := d.Note
		if d.SourceRecipeID != nil {
			key = d.SourceRecipeID.String()
		}
		g, ok := groups[key]
		if !ok {
			g = &costGroup{}
			groups[key] = g
			order = append(order, key)
		}
		return g
	}

	for _, d := range consumed {
		g := groupOf(d)
		g.consumed = append(g.consumed, d)
	}
	for _, d := range produced {
		g := groupOf(d)
		g.produced = append(g.produced, d)
	}

	for _, key := range order {
		groups[key].distribute()
	}
}

type costGroup struct {
	consumed []*documents.Detail
	produced []*documents.Detail
}

func (g *costGroup) distribute() {
	if len(g.produced) == 0 {
		return
	}

	totalCost := types.Zero()
	for _, d := range g.consumed {
		totalCost = totalCost.Add(d.CostTotal())
	}

	totalValue := types.Zero()
	for _, d := range g.produced {
		totalValue = totalValue.Add(d.Quantity.Abs().Decimal().Mul(d.UnitOutputPrice))
	}

	fallback := totalValue.IsZero()
	if fallback {
		for _, d := range g.produced {
			totalValue = totalValue.Add(d.Quantity.Abs().Decimal())
		}
	}
	if totalValue.IsZero() {
		return
	}

	one := types.MustMoney("1")
	for _, d := range g.produced {
		if d.Quantity.IsZero() {
			continue
		}
		weight := d.UnitOutputPrice
		if fallback {
			weight = one
		}
		d.UnitInputPrice = weight.Mul(totalCost).Div(totalValue)
		d.RecalculateCost()
	}
}

// Distribute spreads target across lines proportionally to their totals,
// clamping each line so its cumulative discount never pushes the effective
// value outside [0, 2x original]. It mutates each line's running Discount and
// returns the per-line deltas applied.
//
// The loop converges: each pass either distributes the whole remainder or
// saturates at least one line, whose clamp then excludes it from growth.
func Distribute(lines []*documents.Detail, target types.Money) []types.Money {
	deltas := make([]types.Money, len(lines))
	for i := range deltas {
		deltas[i] = types.Zero()
	}
	if len(lines) == 0 {
		return deltas
	}

	originals := make([]types.Money, len(lines))
	sumOriginals := types.Zero()
	for i, d := range lines {
		originals[i] = d.Total
		sumOriginals = sumOriginals.Add(d.Total)
	}
	if sumOriginals.IsZero() {
		return deltas
	}

	remaining := target
	for !types.RoundMoney(remaining).IsZero() {
		ratio := remaining.Div(sumOriginals)
		changed := false

		for i, d := range lines {
			raw := originals[i].Mul(ratio)

			lo := originals[i].Neg().Sub(d.Discount)
			hi := originals[i].Sub(d.Discount)
			delta := raw
			if delta.LessThan(lo) {
				delta = lo
			}
			if delta.GreaterThan(hi) {
				delta = hi
			}
			if delta.IsZero() {
				continue
			}

			d.Discount = d.Discount.Add(delta)
			deltas[i] = deltas[i].Add(delta)
			remaining = remaining.Sub(delta)
			changed = true
		}

		if !changed {
			break
		}
	}

	return deltas
}
