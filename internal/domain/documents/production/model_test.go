package production

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/recipe"
)

func newRecipe(t *testing.T, product id.ID, productRatio int64, materials map[id.ID]int64) *recipe.Recipe {
	t.Helper()
	r := recipe.NewRecipe("R-1", "test recipe")
	r.ID = id.New()
	for itemID, ratio := range materials {
		r.AddMaterial(itemID, types.NewQuantityFromInt(ratio))
	}
	r.AddProduct(product, types.NewQuantityFromInt(productRatio))
	return r
}

func TestBatch_InstantiateAndScale(t *testing.T) {
	product := id.New()
	flour := id.New()

	// 1 product needs 2 flour
	rec := newRecipe(t, product, 1, map[id.ID]int64{flour: 2})

	b := NewBatch(id.New())
	b.InstantiateRecipe(rec, product, nil)

	require.Len(t, b.Consumed, 1)
	require.Len(t, b.Produced, 1)
	assert.Equal(t, rec.ID, *b.Consumed[0].SourceRecipeID)
	assert.Equal(t, product, *b.Consumed[0].FinalProductID)

	// produce 3: consume 6 flour
	require.NoError(t, b.ScaleRecipe(rec, product, types.NewQuantityFromInt(3)))
	assert.Equal(t, types.NewQuantityFromInt(6), b.ConsumedOf(flour))
	assert.Equal(t, types.NewQuantityFromInt(3), b.ProducedOf(product))
}

func TestBatch_ScaleWithProductRatio(t *testing.T) {
	product := id.New()
	base := id.New()

	// one application produces 4, consumes 10
	rec := newRecipe(t, product, 4, map[id.ID]int64{base: 10})

	b := NewBatch(id.New())
	b.InstantiateRecipe(rec, product, nil)
	require.NoError(t, b.ScaleRecipe(rec, product, types.NewQuantityFromInt(6)))

	// factor 6/4 = 1.5
	assert.Equal(t, types.NewQuantityFromInt(15), b.ConsumedOf(base))
	assert.Equal(t, types.NewQuantityFromInt(6), b.ProducedOf(product))
}

func TestBatch_ScaleRejectsForeignItem(t *testing.T) {
	product := id.New()
	rec := newRecipe(t, product, 1, map[id.ID]int64{id.New(): 1})

	b := NewBatch(id.New())
	b.InstantiateRecipe(rec, product, nil)
	err := b.ScaleRecipe(rec, id.New(), types.NewQuantityFromInt(1))
	assert.Error(t, err)
}

func TestBatch_IngredientVeto(t *testing.T) {
	product := id.New()
	allowed := id.New()
	blocked := id.New()

	rec := newRecipe(t, product, 1, map[id.ID]int64{allowed: 1, blocked: 1})

	b := NewBatch(id.New())
	b.InstantiateRecipe(rec, product, func(itemID id.ID) bool {
		return itemID != blocked
	})

	require.Len(t, b.Consumed, 1)
	assert.Equal(t, allowed, b.Consumed[0].ItemID)
}

func TestBatch_RemoveRecipeLines(t *testing.T) {
	productA := id.New()
	productB := id.New()
	recA := newRecipe(t, productA, 1, map[id.ID]int64{id.New(): 1})
	recB := newRecipe(t, productB, 1, map[id.ID]int64{id.New(): 1})

	b := NewBatch(id.New())
	b.InstantiateRecipe(recA, productA, nil)
	b.InstantiateRecipe(recB, productB, nil)
	require.Len(t, b.Consumed, 2)

	b.RemoveRecipeLines(recA.ID)
	require.Len(t, b.Consumed, 1)
	require.Len(t, b.Produced, 1)
	assert.Equal(t, recB.ID, *b.Consumed[0].SourceRecipeID)
	assert.Equal(t, 1, b.Consumed[0].LineNo)
}
