package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/config"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/allocate"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/domain/catalogs/location"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/documents/production"
	"fabrica/internal/domain/registers/stock"
	"fabrica/pkg/numerator"
)

type storeStockRepo struct {
	saved map[id.ID][]entity.StockMovement
	lots  []*stock.Lot

	// saveErr fails the next SaveMovements call, then clears.
	saveErr error
}

func newStoreStockRepo() *storeStockRepo {
	return &storeStockRepo{saved: map[id.ID][]entity.StockMovement{}}
}

func (f *storeStockRepo) SaveMovements(_ context.Context, recorderID id.ID, movements []entity.StockMovement) error {
	if f.saveErr != nil {
		err := f.saveErr
		f.saveErr = nil
		return err
	}
	f.saved[recorderID] = movements
	return nil
}

func (f *storeStockRepo) DeleteMovements(_ context.Context, recorderID id.ID) error {
	delete(f.saved, recorderID)
	return nil
}

func (f *storeStockRepo) GetBalance(context.Context, id.ID, id.ID) (types.Quantity, error) {
	return 0, nil
}

func (f *storeStockRepo) GetBalances(context.Context, id.ID, []id.ID) (map[id.ID]types.Quantity, error) {
	return map[id.ID]types.Quantity{}, nil
}

func (f *storeStockRepo) GetBalanceAt(context.Context, id.ID, id.ID, time.Time) (types.Quantity, error) {
	return 0, nil
}

func (f *storeStockRepo) Lots(_ context.Context, _, itemID id.ID, _ stock.LotFilter) ([]*stock.Lot, error) {
	var out []*stock.Lot
	for _, l := range f.lots {
		if l.ItemID == itemID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *storeStockRepo) CreateLot(context.Context, *stock.Lot) error { return nil }

func (f *storeStockRepo) AdjustLot(context.Context, id.ID, types.Quantity) error { return nil }

type storeLocations struct{}

func (storeLocations) Create(context.Context, *location.Location) error { return nil }
func (storeLocations) GetByID(context.Context, id.ID) (*location.Location, error) {
	return nil, nil
}
func (storeLocations) GetByCode(context.Context, string) (*location.Location, error) {
	return nil, nil
}
func (storeLocations) Children(context.Context, id.ID) ([]*location.Location, error) {
	return nil, nil
}

type storeDocRepo struct {
	created []*documents.Operation
	updated []*documents.Operation
}

func (f *storeDocRepo) Create(_ context.Context, op *documents.Operation) error {
	f.created = append(f.created, op)
	return nil
}

func (f *storeDocRepo) Update(_ context.Context, op *documents.Operation) error {
	f.updated = append(f.updated, op)
	return nil
}

func (f *storeDocRepo) GetByID(context.Context, id.ID) (*documents.Operation, error) {
	return nil, nil
}

func (f *storeDocRepo) ListByLocation(context.Context, id.ID, int, int) ([]*documents.Operation, error) {
	return nil, nil
}

type seqRow struct{ val int64 }

func (r seqRow) Scan(dest ...any) error {
	if p, ok := dest[0].(*int64); ok {
		*p = r.val
	}
	return nil
}

type seqQuerier struct {
	calls int
	val   int64
}

func (q *seqQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	q.calls++
	q.val++
	return seqRow{val: q.val}
}

type storeItems struct {
	items map[id.ID]*item.Item
}

func (f *storeItems) GetByID(_ context.Context, itemID id.ID) (*item.Item, error) {
	if it, ok := f.items[itemID]; ok {
		return it, nil
	}
	return item.NewItem("X", "item", item.TypeMaterial), nil
}

type backendFixture struct {
	backend *ResolverBackend
	repo    *storeStockRepo
	docs    *storeDocRepo
	seq     *seqQuerier
}

func newBackendFixture(flags config.Static, items item.Reader, withAllocator bool) backendFixture {
	repo := newStoreStockRepo()
	docs := &storeDocRepo{}
	seq := &seqQuerier{}
	svc := stock.NewService(repo, storeLocations{}, flags)

	var alloc *allocate.Allocator
	if withAllocator {
		alloc = allocate.New(flags, items, svc)
	}

	return backendFixture{
		backend: NewResolverBackend(svc, nil, items, docs, numerator.New(seq), alloc),
		repo:    repo,
		docs:    docs,
		seq:     seq,
	}
}

func batchOf(consumedItem, producedItem id.ID, consumed, produced int64) *production.Batch {
	b := production.NewBatch(id.New())
	b.AddConsumed(documents.NewDetail(consumedItem, types.NewQuantityFromInt(consumed)))
	b.AddProduced(documents.NewDetail(producedItem, types.NewQuantityFromInt(produced)))
	return b
}

func TestCommitBatch_FirstCommitNumbersAndCreates(t *testing.T) {
	itemA, itemB := id.New(), id.New()
	fx := newBackendFixture(config.Static{NegativeAvailable: true}, nil, false)

	batch := batchOf(itemB, itemA, 6, 3)
	require.NoError(t, fx.backend.CommitBatch(context.Background(), batch))

	assert.True(t, batch.IsCommitted())
	assert.EqualValues(t, 1, batch.Key.Number())
	assert.Equal(t, 1, fx.seq.calls)
	require.Len(t, fx.docs.created, 1)
	assert.Empty(t, fx.docs.updated)

	movements := fx.repo.saved[batch.ID]
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, batch.CommitVersion, m.RecorderVersion)
	}
}

func TestCommitBatch_ReplannedRecommitKeepsNumber(t *testing.T) {
	itemA, itemB, itemC := id.New(), id.New(), id.New()
	fx := newBackendFixture(config.Static{NegativeAvailable: true}, nil, false)

	batch := batchOf(itemB, itemA, 6, 3)

	fx.repo.saveErr = apperror.NewAvailabilityConflict(itemB)
	err := fx.backend.CommitBatch(context.Background(), batch)
	require.Error(t, err)
	conflictItem, ok := apperror.AvailabilityConflictItem(err)
	require.True(t, ok)
	assert.Equal(t, itemB, conflictItem)
	assert.Empty(t, fx.repo.saved)

	number := batch.Key.Number()

	// Replanning swapped the material before the retry.
	batch.Consumed[0].ItemID = itemC
	require.NoError(t, fx.backend.CommitBatch(context.Background(), batch))

	assert.Equal(t, number, batch.Key.Number())
	assert.Equal(t, 1, fx.seq.calls, "retry must not draw a second number")
	require.Len(t, fx.docs.created, 1)
	require.Len(t, fx.docs.updated, 1)
	assert.Equal(t, 2, batch.CommitVersion)

	movements := fx.repo.saved[batch.ID]
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, 2, m.RecorderVersion)
		if m.RecordType == entity.RecordTypeExpense {
			assert.Equal(t, itemC, m.ItemID, "movements must reflect the replanned sourcing")
		}
	}
}

func TestCommitBatch_AllocatesLotsOnMaterials(t *testing.T) {
	itemA, itemB := id.New(), id.New()
	lotID := id.New()

	trackedB := item.NewItem("B", "material b", item.TypeMaterial)
	trackedB.TrackLots = true
	items := &storeItems{items: map[id.ID]*item.Item{itemB: trackedB}}

	fx := newBackendFixture(config.Static{NegativeAvailable: true, Lots: true}, items, true)
	fx.repo.lots = []*stock.Lot{{
		ID:       lotID,
		ItemID:   itemB,
		Name:     "L-1",
		Quantity: types.NewQuantityFromInt(10),
	}}

	batch := batchOf(itemB, itemA, 6, 3)
	require.NoError(t, fx.backend.CommitBatch(context.Background(), batch))

	require.Len(t, batch.Consumed, 1)
	require.NotNil(t, batch.Consumed[0].LotID)
	assert.Equal(t, lotID, *batch.Consumed[0].LotID)

	var lotted bool
	for _, m := range fx.repo.saved[batch.ID] {
		if m.RecordType == entity.RecordTypeExpense {
			require.NotNil(t, m.LotID)
			assert.Equal(t, lotID, *m.LotID)
			lotted = true
		}
	}
	assert.True(t, lotted)
}
