package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

func mv(recorderID, locationID, itemID id.ID, lotID *id.ID, rt entity.RecordType, qty int64) entity.StockMovement {
	return entity.NewStockMovement(
		recorderID, "ProductionBatch", 1, time.Now(), rt,
		locationID, itemID, lotID, types.NewQuantityFromInt(qty),
	)
}

func TestNetMovements_IntermediateDrawNetsAgainstReceipt(t *testing.T) {
	recorderID, locationID := id.New(), id.New()
	itemA, itemB, itemC := id.New(), id.New(), id.New()

	// A batch making A from B and B from C: B is drawn and produced in the
	// same movement set and must net to zero, regardless of movement order.
	movements := []entity.StockMovement{
		mv(recorderID, locationID, itemB, nil, entity.RecordTypeExpense, 6),
		mv(recorderID, locationID, itemC, nil, entity.RecordTypeExpense, 18),
		mv(recorderID, locationID, itemB, nil, entity.RecordTypeReceipt, 6),
		mv(recorderID, locationID, itemA, nil, entity.RecordTypeReceipt, 3),
	}

	balances, lots := netMovements(movements)
	require.Len(t, balances, 3)
	assert.Empty(t, lots)

	byItem := map[id.ID]types.Quantity{}
	for _, b := range balances {
		byItem[b.itemID] = b.delta
	}
	assert.True(t, byItem[itemB].IsZero(), "intermediate must net to zero")
	assert.Equal(t, types.NewQuantityFromInt(-18), byItem[itemC])
	assert.Equal(t, types.NewQuantityFromInt(3), byItem[itemA])
}

func TestNetMovements_KeepsFirstSeenOrder(t *testing.T) {
	recorderID, locationID := id.New(), id.New()
	itemA, itemB := id.New(), id.New()

	movements := []entity.StockMovement{
		mv(recorderID, locationID, itemB, nil, entity.RecordTypeExpense, 2),
		mv(recorderID, locationID, itemA, nil, entity.RecordTypeReceipt, 1),
		mv(recorderID, locationID, itemB, nil, entity.RecordTypeExpense, 3),
	}

	balances, _ := netMovements(movements)
	require.Len(t, balances, 2)
	assert.Equal(t, itemB, balances[0].itemID)
	assert.Equal(t, types.NewQuantityFromInt(-5), balances[0].delta)
	assert.Equal(t, itemA, balances[1].itemID)
}

func TestNetMovements_SeparatesLocations(t *testing.T) {
	recorderID, itemID := id.New(), id.New()
	source, destination := id.New(), id.New()

	// Transfer shape: the same item leaves one location and arrives at the
	// other; the dimensions must stay apart.
	movements := []entity.StockMovement{
		mv(recorderID, source, itemID, nil, entity.RecordTypeExpense, 4),
		mv(recorderID, destination, itemID, nil, entity.RecordTypeReceipt, 4),
	}

	balances, _ := netMovements(movements)
	require.Len(t, balances, 2)
	assert.Equal(t, types.NewQuantityFromInt(-4), balances[0].delta)
	assert.Equal(t, types.NewQuantityFromInt(4), balances[1].delta)
}

func TestNetMovements_NetsLotDeltas(t *testing.T) {
	recorderID, locationID, itemID := id.New(), id.New(), id.New()
	lotID := id.New()

	movements := []entity.StockMovement{
		mv(recorderID, locationID, itemID, &lotID, entity.RecordTypeExpense, 5),
		mv(recorderID, locationID, itemID, &lotID, entity.RecordTypeReceipt, 2),
	}

	balances, lots := netMovements(movements)
	require.Len(t, balances, 1)
	require.Len(t, lots, 1)
	assert.Equal(t, lotID, lots[0].lotID)
	assert.Equal(t, itemID, lots[0].itemID)
	assert.Equal(t, types.NewQuantityFromInt(-3), lots[0].delta)
}
