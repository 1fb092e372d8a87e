package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

func TestOperation_SignNormalization(t *testing.T) {
	sale := NewOperation(TypeSale, id.New())
	d := sale.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(3)))
	assert.True(t, d.Quantity.IsNegative(), "sale consumption must be negative")

	purchase := NewOperation(TypePurchase, id.New())
	p := purchase.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(3).Neg()))
	assert.True(t, p.Quantity.IsPositive(), "purchase lines must be positive")

	// transitions re-normalize
	d.Quantity = d.Quantity.Abs()
	sale.SetKey(types.KeyPending)
	assert.True(t, d.Quantity.IsNegative())
}

func TestOperation_StockTakingKeepsDeviationSign(t *testing.T) {
	st := NewOperation(TypeStockTaking, id.New())
	surplus := NewDetail(id.New(), types.NewQuantityFromInt(2))
	surplus.EnteredQuantity = types.NewQuantityFromInt(12)
	st.Consumed = append(st.Consumed, surplus)

	st.SetKey(types.KeyPending)
	assert.True(t, surplus.Quantity.IsPositive(), "surplus deviation must keep its sign")
	assert.Equal(t, types.NewQuantityFromInt(12), st.RequiredForAllocation(surplus))
}

func TestOperation_MergedRequirements(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	sale := NewOperation(TypeSale, id.New())
	sale.AddConsumed(NewDetail(itemA, types.NewQuantityFromInt(2)))
	sale.AddConsumed(NewDetail(itemB, types.NewQuantityFromInt(1)))
	sale.AddConsumed(NewDetail(itemA, types.NewQuantityFromInt(3)))

	reqs := sale.MergedRequirements()
	require.Len(t, reqs, 2)
	assert.Equal(t, itemA, reqs[0].ItemID)
	assert.Equal(t, types.NewQuantityFromInt(5), reqs[0].Quantity)
	assert.Len(t, reqs[0].Lines, 2)
	assert.Equal(t, itemB, reqs[1].ItemID)
	assert.Equal(t, types.NewQuantityFromInt(1), reqs[1].Quantity)
}

func TestOperation_InsertConsumedAfter(t *testing.T) {
	sale := NewOperation(TypeSale, id.New())
	first := sale.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(5)))
	last := sale.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(1)))

	split := first.Clone()
	require.True(t, sale.InsertConsumedAfter(first, split))

	require.Len(t, sale.Consumed, 3)
	assert.Same(t, split, sale.Consumed[1])
	assert.Same(t, last, sale.Consumed[2])
	assert.Equal(t, []int{1, 2, 3}, []int{sale.Consumed[0].LineNo, sale.Consumed[1].LineNo, sale.Consumed[2].LineNo})
	assert.NotEqual(t, first.LineID, split.LineID)
	assert.False(t, split.HasLot())
}

func TestOperation_ValidateTransfer(t *testing.T) {
	tr := NewOperation(TypeTransfer, id.New())
	tr.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(1)))

	err := tr.Validate(context.Background())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	dst := id.New()
	ref := id.New()
	tr.ChildLocationID = &dst
	tr.CounterRef = &ref
	assert.NoError(t, tr.Validate(context.Background()))
}

func TestOperation_GenerateMovements_Transfer(t *testing.T) {
	src := id.New()
	dst := id.New()
	ref := id.New()

	tr := NewOperation(TypeTransfer, src)
	tr.ChildLocationID = &dst
	tr.CounterRef = &ref
	tr.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(4)))

	moves, err := tr.GenerateMovements(context.Background())
	require.NoError(t, err)
	require.Len(t, moves, 2)
	assert.Equal(t, src, moves[0].LocationID)
	assert.True(t, moves[0].SignedQuantity().IsNegative())
	assert.Equal(t, dst, moves[1].LocationID)
	assert.True(t, moves[1].SignedQuantity().IsPositive())
}

func TestOperation_RecalculateSaleTotals(t *testing.T) {
	sale := NewOperation(TypeSale, id.New())
	d := sale.AddConsumed(NewDetail(id.New(), types.NewQuantityFromInt(2)))
	d.UnitOutputPrice = types.MustMoney("100")
	d.VATRate = "20"

	sale.Recalculate()

	// 2 * 100 = 200, VAT 40, total 240
	assert.True(t, d.VATAmount.Equal(types.MustMoney("40")), d.VATAmount.String())
	assert.True(t, d.Total.Equal(types.MustMoney("240")), d.Total.String())
	assert.True(t, sale.TotalAmount.Equal(types.MustMoney("240")))
	assert.True(t, sale.TotalVAT.Equal(types.MustMoney("40")))
}
