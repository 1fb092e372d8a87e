package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/config"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/documents/production"
)

type fakeCatalog struct {
	avail   map[id.ID]types.Quantity
	recipes map[id.ID][]*recipe.Recipe
	prices  map[id.ID]types.Money
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		avail:   map[id.ID]types.Quantity{},
		recipes: map[id.ID][]*recipe.Recipe{},
		prices:  map[id.ID]types.Money{},
	}
}

func (f *fakeCatalog) Availability(_ context.Context, _ id.ID, _ *id.ID, itemID id.ID) (types.Quantity, error) {
	return f.avail[itemID], nil
}

func (f *fakeCatalog) RecipesProducing(_ context.Context, itemID id.ID) ([]*recipe.Recipe, error) {
	return f.recipes[itemID], nil
}

func (f *fakeCatalog) Price(_ context.Context, itemID id.ID, _ item.PriceGroup) (types.Money, error) {
	return f.prices[itemID], nil
}

type fakeStore struct {
	commits   int
	fail      func(attempt int, batch *production.Batch) error
	committed *production.Batch
}

func (f *fakeStore) CommitBatch(_ context.Context, batch *production.Batch) error {
	f.commits++
	if f.fail != nil {
		if err := f.fail(f.commits, batch); err != nil {
			return err
		}
	}
	f.committed = batch
	return nil
}

func simpleRecipe(product id.ID, productRatio int64, material id.ID, materialRatio int64) *recipe.Recipe {
	r := recipe.NewRecipe("R", "recipe")
	r.ID = id.New()
	r.AddMaterial(material, types.NewQuantityFromInt(materialRatio))
	r.AddProduct(product, types.NewQuantityFromInt(productRatio))
	return r
}

func saleFor(itemID id.ID, qty int64) *documents.Operation {
	op := documents.NewOperation(documents.TypeSale, id.New())
	op.AddConsumed(documents.NewDetail(itemID, types.NewQuantityFromInt(qty)))
	return op
}

func TestResolve_SynthesizesBatchForShortfall(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}
	cat.prices[itemB] = types.MustMoney("5")
	cat.prices[itemA] = types.MustMoney("12")

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	op := saleFor(itemA, 3)
	batch, err := r.Resolve(context.Background(), op)

	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, types.NewQuantityFromInt(6), batch.ConsumedOf(itemB))
	assert.Equal(t, types.NewQuantityFromInt(3), batch.ProducedOf(itemA))

	// 6 B at 5 = 30 cost, spread over 3 A by quantity fallback = 10 each
	require.Len(t, batch.Produced, 1)
	assert.True(t, batch.Produced[0].UnitInputPrice.Equal(types.MustMoney("10")),
		batch.Produced[0].UnitInputPrice.String())

	// triggering line repriced from the catalog
	assert.True(t, op.Consumed[0].UnitInputPrice.Equal(types.MustMoney("12")))
}

func TestResolve_NoShortfallNoBatch(t *testing.T) {
	itemA := id.New()
	cat := newFakeCatalog()
	cat.avail[itemA] = types.NewQuantityFromInt(10)

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.Zero(t, store.commits)
}

func TestResolve_DisabledIsNoop(t *testing.T) {
	itemA := id.New()
	store := &fakeStore{}
	r := New(newFakeCatalog(), store, config.Static{AutoProduction: false}, nil)

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.Zero(t, store.commits)
}

func TestResolve_NoRecipeInsufficient(t *testing.T) {
	itemA := id.New()
	store := &fakeStore{}
	r := New(newFakeCatalog(), store, config.Static{AutoProduction: true}, nil)

	_, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientAvailability(err))
	assert.Zero(t, store.commits)
}

func TestResolve_NoRecipeNegativeAllowed(t *testing.T) {
	itemA := id.New()
	store := &fakeStore{}
	r := New(newFakeCatalog(), store, config.Static{AutoProduction: true, NegativeAvailable: true}, nil)

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestResolve_RecursiveMaterials(t *testing.T) {
	itemA := id.New()
	itemB := id.New()
	itemC := id.New()

	cat := newFakeCatalog()
	cat.avail[itemC] = types.NewQuantityFromInt(18)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}
	cat.recipes[itemB] = []*recipe.Recipe{simpleRecipe(itemB, 1, itemC, 3)}

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, types.NewQuantityFromInt(3), batch.ProducedOf(itemA))
	assert.Equal(t, types.NewQuantityFromInt(6), batch.ProducedOf(itemB))
	assert.Equal(t, types.NewQuantityFromInt(6), batch.ConsumedOf(itemB))
	assert.Equal(t, types.NewQuantityFromInt(18), batch.ConsumedOf(itemC))
}

func TestResolve_CycleTerminates(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	cat := newFakeCatalog()
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 1)}
	cat.recipes[itemB] = []*recipe.Recipe{simpleRecipe(itemB, 1, itemA, 1)}

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	_, err := r.Resolve(context.Background(), saleFor(itemA, 1))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientAvailability(err))
	assert.Zero(t, store.commits)
}

func TestResolve_DepthBoundTerminates(t *testing.T) {
	// chain of 8 items, each produced from the next, nothing in stock
	items := make([]id.ID, 8)
	for i := range items {
		items[i] = id.New()
	}

	cat := newFakeCatalog()
	for i := 0; i < len(items)-1; i++ {
		cat.recipes[items[i]] = []*recipe.Recipe{simpleRecipe(items[i], 1, items[i+1], 1)}
	}

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	_, err := r.Resolve(context.Background(), saleFor(items[0], 1))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientAvailability(err))
}

func TestResolve_ConflictAdvancesToNextRecipe(t *testing.T) {
	itemA := id.New()
	itemB := id.New()
	itemC := id.New()

	recB := simpleRecipe(itemA, 1, itemB, 2)
	recC := simpleRecipe(itemA, 1, itemC, 2)

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.avail[itemC] = types.NewQuantityFromInt(6)
	cat.recipes[itemA] = []*recipe.Recipe{recB, recC}

	store := &fakeStore{
		fail: func(attempt int, _ *production.Batch) error {
			if attempt == 1 {
				return apperror.NewAvailabilityConflict(itemA)
			}
			return nil
		},
	}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, 2, store.commits)
	assert.True(t, batch.ConsumedOf(itemB).IsZero(), "first candidate's lines must be removed")
	assert.Equal(t, types.NewQuantityFromInt(6), batch.ConsumedOf(itemC))
}

func TestResolve_ConflictExhaustionFails(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}

	store := &fakeStore{
		fail: func(int, *production.Batch) error {
			return apperror.NewAvailabilityConflict(itemA)
		},
	}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	_, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientAvailability(err))
}

func TestResolve_ConflictOnStockedItemConvertsToInsufficient(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}

	// B covered the plan, but the store keeps reporting it conflicted and
	// there is no recipe for B: the conflict must not escape raw.
	store := &fakeStore{
		fail: func(int, *production.Batch) error {
			return apperror.NewAvailabilityConflict(itemB)
		},
	}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	_, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientAvailability(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.NotEqual(t, apperror.CodeAvailabilityConflict, appErr.Code)
}

func TestResolve_ConflictedMaterialProducedInPlace(t *testing.T) {
	itemA := id.New()
	itemB := id.New()
	itemC := id.New()

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.avail[itemC] = types.NewQuantityFromInt(18)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}
	cat.recipes[itemB] = []*recipe.Recipe{simpleRecipe(itemB, 1, itemC, 3)}

	// B had stock during planning; a concurrent draw takes 4 of its 6 units
	// before the first commit lands. B is itself producible from C.
	store := &fakeStore{
		fail: func(attempt int, _ *production.Batch) error {
			if attempt == 1 {
				cat.avail[itemB] = types.NewQuantityFromInt(2)
				return apperror.NewAvailabilityConflict(itemB)
			}
			return nil
		},
	}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, 2, store.commits)
	assert.Equal(t, types.NewQuantityFromInt(3), batch.ProducedOf(itemA))
	assert.Equal(t, types.NewQuantityFromInt(4), batch.ProducedOf(itemB))
	assert.Equal(t, types.NewQuantityFromInt(12), batch.ConsumedOf(itemC))
}

type denyTarget struct{ itemID id.ID }

func (d denyTarget) AllowTarget(_ context.Context, itemID id.ID) bool { return itemID != d.itemID }
func (d denyTarget) AllowIngredient(context.Context, id.ID) bool      { return true }

func TestResolve_TargetVeto(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}

	r := New(cat, &fakeStore{}, config.Static{AutoProduction: true}, denyTarget{itemID: itemA})

	_, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientAvailability(err))
}

type denyIngredient struct{ itemID id.ID }

func (d denyIngredient) AllowTarget(context.Context, id.ID) bool { return true }
func (d denyIngredient) AllowIngredient(_ context.Context, itemID id.ID) bool {
	return itemID != d.itemID
}

func TestResolve_IngredientVetoSkipsRecipe(t *testing.T) {
	itemA := id.New()
	itemB := id.New()
	itemC := id.New()

	recB := simpleRecipe(itemA, 1, itemB, 2)
	recC := simpleRecipe(itemA, 1, itemC, 2)

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(6)
	cat.avail[itemC] = types.NewQuantityFromInt(6)
	cat.recipes[itemA] = []*recipe.Recipe{recB, recC}

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, denyIngredient{itemID: itemB})

	batch, err := r.Resolve(context.Background(), saleFor(itemA, 3))
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.True(t, batch.ConsumedOf(itemB).IsZero())
	assert.Equal(t, types.NewQuantityFromInt(6), batch.ConsumedOf(itemC))
}

func TestResolve_MergedDuplicateLines(t *testing.T) {
	itemA := id.New()
	itemB := id.New()

	cat := newFakeCatalog()
	cat.avail[itemB] = types.NewQuantityFromInt(10)
	cat.recipes[itemA] = []*recipe.Recipe{simpleRecipe(itemA, 1, itemB, 2)}

	store := &fakeStore{}
	r := New(cat, store, config.Static{AutoProduction: true}, nil)

	op := documents.NewOperation(documents.TypeSale, id.New())
	op.AddConsumed(documents.NewDetail(itemA, types.NewQuantityFromInt(2)))
	op.AddConsumed(documents.NewDetail(itemA, types.NewQuantityFromInt(3)))

	batch, err := r.Resolve(context.Background(), op)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Equal(t, types.NewQuantityFromInt(5), batch.ProducedOf(itemA))
	assert.Equal(t, types.NewQuantityFromInt(10), batch.ConsumedOf(itemB))
}
