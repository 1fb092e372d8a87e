package costing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/documents"
)

func consumedLine(recipeID *id.ID, qty int64, price string) *documents.Detail {
	d := documents.NewDetail(id.New(), types.NewQuantityFromInt(qty))
	d.UnitInputPrice = types.MustMoney(price)
	d.SourceRecipeID = recipeID
	return d
}

func producedLine(recipeID *id.ID, qty int64, outPrice string) *documents.Detail {
	d := documents.NewDetail(id.New(), types.NewQuantityFromInt(qty))
	d.UnitOutputPrice = types.MustMoney(outPrice)
	d.SourceRecipeID = recipeID
	return d
}

func TestDistributeCost_ValueWeighted(t *testing.T) {
	rec := id.New()

	// materials: 6 units at 5 = 30
	consumed := []*documents.Detail{consumedLine(&rec, 6, "5")}
	// outputs: 2 at sale 20 (value 40), 1 at sale 10 (value 10)
	p1 := producedLine(&rec, 2, "20")
	p2 := producedLine(&rec, 1, "10")
	produced := []*documents.Detail{p1, p2}

	DistributeCost(consumed, produced)

	// p1 unit cost = 20*30/50 = 12, p2 = 10*30/50 = 6
	assert.True(t, p1.UnitInputPrice.Equal(types.MustMoney("12")), p1.UnitInputPrice.String())
	assert.True(t, p2.UnitInputPrice.Equal(types.MustMoney("6")), p2.UnitInputPrice.String())

	// cost conservation
	total := p1.CostTotal().Add(p2.CostTotal())
	assert.True(t, total.Equal(types.MustMoney("30")), total.String())
}

func TestDistributeCost_QuantityFallback(t *testing.T) {
	rec := id.New()

	consumed := []*documents.Detail{consumedLine(&rec, 6, "5")}
	// no sale prices set: fall back to quantity weighting
	p1 := producedLine(&rec, 2, "0")
	p2 := producedLine(&rec, 1, "0")
	DistributeCost(consumed, []*documents.Detail{p1, p2})

	// 30 cost over 3 units = 10 per unit
	assert.True(t, p1.UnitInputPrice.Equal(types.MustMoney("10")), p1.UnitInputPrice.String())
	assert.True(t, p2.UnitInputPrice.Equal(types.MustMoney("10")), p2.UnitInputPrice.String())
}

func TestDistributeCost_GroupsByRecipe(t *testing.T) {
	recA := id.New()
	recB := id.New()

	cA := consumedLine(&recA, 1, "100")
	cB := consumedLine(&recB, 1, "10")
	pA := producedLine(&recA, 1, "1")
	pB := producedLine(&recB, 1, "1")

	DistributeCost([]*documents.Detail{cA, cB}, []*documents.Detail{pA, pB})

	assert.True(t, pA.UnitInputPrice.Equal(types.MustMoney("100")), pA.UnitInputPrice.String())
	assert.True(t, pB.UnitInputPrice.Equal(types.MustMoney("10")), pB.UnitInputPrice.String())
}

func TestDistributeCost_GroupsByNoteWithoutRecipe(t *testing.T) {
	c := consumedLine(nil, 2, "7")
	c.Note = "side"
	pMain := producedLine(nil, 1, "0")
	pMain.Note = "main"
	pSide := producedLine(nil, 1, "0")
	pSide.Note = "side"

	DistributeCost([]*documents.Detail{c}, []*documents.Detail{pMain, pSide})

	assert.True(t, pMain.UnitInputPrice.IsZero())
	assert.True(t, pSide.UnitInputPrice.Equal(types.MustMoney("14")), pSide.UnitInputPrice.String())
}

func saleLine(total string) *documents.Detail {
	d := documents.NewDetail(id.New(), types.One)
	d.Total = types.MustMoney(total)
	return d
}

func TestDistribute_Proportional(t *testing.T) {
	lines := []*documents.Detail{saleLine("60"), saleLine("40")}

	deltas := Distribute(lines, types.MustMoney("10"))

	require.Len(t, deltas, 2)
	assert.True(t, deltas[0].Equal(types.MustMoney("6")), deltas[0].String())
	assert.True(t, deltas[1].Equal(types.MustMoney("4")), deltas[1].String())
	assert.True(t, lines[0].Discount.Equal(types.MustMoney("6")))
	assert.True(t, lines[1].Discount.Equal(types.MustMoney("4")))
}

func TestDistribute_ClampAndRedistribute(t *testing.T) {
	// first line already nearly saturated: it can take at most 10 more
	l1 := saleLine("50")
	l1.Discount = types.MustMoney("40")
	l2 := saleLine("50")
	lines := []*documents.Detail{l1, l2}

	deltas := Distribute(lines, types.MustMoney("40"))

	sum := deltas[0].Add(deltas[1])
	assert.True(t, types.RoundMoney(sum.Sub(types.MustMoney("40"))).IsZero(), sum.String())
	// cap: cumulative discount never exceeds the original total
	assert.True(t, l1.Discount.LessThanOrEqual(types.MustMoney("50")))
	assert.True(t, l2.Discount.LessThanOrEqual(types.MustMoney("50")))
}

func TestDistribute_NegativeTarget(t *testing.T) {
	lines := []*documents.Detail{saleLine("30"), saleLine("70")}

	deltas := Distribute(lines, types.MustMoney("-10"))

	sum := deltas[0].Add(deltas[1])
	assert.True(t, types.RoundMoney(sum.Add(types.MustMoney("10"))).IsZero(), sum.String())
	assert.True(t, lines[0].Discount.IsNegative())
}

func TestDistribute_Terminates_WhenTargetExceedsCapacity(t *testing.T) {
	// total capacity is 100; asking for 150 must saturate and stop
	lines := []*documents.Detail{saleLine("40"), saleLine("60")}

	deltas := Distribute(lines, types.MustMoney("150"))

	assert.True(t, lines[0].Discount.Equal(types.MustMoney("40")))
	assert.True(t, lines[1].Discount.Equal(types.MustMoney("60")))
	sum := deltas[0].Add(deltas[1])
	assert.True(t, sum.Equal(types.MustMoney("100")), sum.String())
}

func TestDistribute_ZeroTotalsNoop(t *testing.T) {
	lines := []*documents.Detail{saleLine("0")}
	deltas := Distribute(lines, types.MustMoney("5"))
	assert.True(t, deltas[0].IsZero())
}
