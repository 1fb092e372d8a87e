// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/config"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/registers/stock"
	"fabrica/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "reg_stock_movements"
	stockBalancesTable  = "reg_stock_balances"
	lotsTable           = "reg_lots"
)

var movementColumns = []string{
	"line_id", "recorder_id", "recorder_type", "recorder_version",
	"period", "record_type",
	"location_id", "item_id", "lot_id", "quantity", "created_at",
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	flags   config.Flags
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager, flags config.Flags) *StockRepo {
	return &StockRepo{
		txm:     txm,
		flags:   flags,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// SaveMovements replaces the recorder's movements: older versions are
// deleted, the new set is COPY-inserted, balances and lots are adjusted.
// A balance left below zero fails with an availability conflict for the
// item unless negative availability is permitted.
//
// The save runs under a savepoint: when it is part of a larger document
// transaction, a conflict rolls back only this save, so the resolver can
// replan and recommit from the state the attempt started with.
func (r *StockRepo) SaveMovements(ctx context.Context, recorderID id.ID, movements []entity.StockMovement) error {
	opts := postgres.DefaultTxOptions()
	opts.UseSavepoint = true
	return r.txm.RunInTransactionWithOptions(ctx, opts, func(ctx context.Context) error {
		if err := r.removeAndUnapply(ctx, recorderID); err != nil {
			return err
		}
		if len(movements) == 0 {
			return nil
		}

		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.LineID, m.RecorderID, m.RecorderType, m.RecorderVersion,
				m.Period, m.RecordType,
				m.LocationID, m.ItemID, m.LotID, m.Quantity, m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, stockMovementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}

		return r.applyMovements(ctx, movements)
	})
}

// DeleteMovements removes all movements of a recorder and unapplies their
// balance and lot effects (document reversal).
func (r *StockRepo) DeleteMovements(ctx context.Context, recorderID id.ID) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return r.removeAndUnapply(ctx, recorderID)
	})
}

// removeAndUnapply deletes the recorder's rows, reverting balances and lots
// by the deleted signed quantities.
func (r *StockRepo) removeAndUnapply(ctx context.Context, recorderID id.ID) error {
	existing, err := r.movementsOf(ctx, recorderID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	q := r.builder.Delete(stockMovementsTable).Where(squirrel.Eq{"recorder_id": recorderID})
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete movements: %w", err)
	}

	for i := range existing {
		existing[i].Quantity = existing[i].Quantity.Neg()
	}
	// Unapply never enforces the non-negative constraint; a reversal may
	// legally leave another document's draw uncovered until recommit.
	return r.adjust(ctx, existing, false)
}

func (r *StockRepo) applyMovements(ctx context.Context, movements []entity.StockMovement) error {
	enforce := !r.flags.AllowNegativeAvailability(ctx)
	return r.adjust(ctx, movements, enforce)
}

// adjust applies the movements' deltas netted per balance dimension and per
// lot. Enforcement sees the net result, so a batch that both draws and
// produces an item (a recursive production covering its own intermediate)
// does not conflict on the draw half of a zero net.
func (r *StockRepo) adjust(ctx context.Context, movements []entity.StockMovement, enforce bool) error {
	querier := r.txm.GetQuerier(ctx)
	balances, lots := netMovements(movements)

	balanceSQL := `
		INSERT INTO reg_stock_balances (location_id, item_id, quantity, last_movement_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (location_id, item_id) DO UPDATE
		SET quantity = reg_stock_balances.quantity + EXCLUDED.quantity,
		    last_movement_at = EXCLUDED.last_movement_at,
		    updated_at = now()
		RETURNING quantity
	`
	for _, b := range balances {
		var balance types.Quantity
		err := querier.QueryRow(ctx, balanceSQL, b.locationID, b.itemID, b.delta, b.period).Scan(&balance)
		if err != nil {
			return fmt.Errorf("apply balance: %w", err)
		}
		if enforce && balance.IsNegative() {
			return apperror.NewAvailabilityConflict(b.itemID).
				WithDetail("location_id", b.locationID.String()).
				WithDetail("balance", balance.Float64())
		}
	}

	lotSQL := `
		UPDATE reg_lots SET quantity = quantity + $2 WHERE id = $1
		RETURNING quantity
	`
	for _, l := range lots {
		var lotBalance types.Quantity
		if err := querier.QueryRow(ctx, lotSQL, l.lotID, l.delta).Scan(&lotBalance); err != nil {
			return fmt.Errorf("apply lot: %w", err)
		}
		if enforce && lotBalance.IsNegative() {
			return apperror.NewAvailabilityConflict(l.itemID).
				WithDetail("lot_id", l.lotID.String()).
				WithDetail("balance", lotBalance.Float64())
		}
	}
	return nil
}

type balanceDelta struct {
	locationID id.ID
	itemID     id.ID
	delta      types.Quantity
	period     time.Time
}

type lotDelta struct {
	lotID  id.ID
	itemID id.ID
	delta  types.Quantity
}

// netMovements collapses movements to one signed delta per (location, item)
// and per lot, in first-seen order. The period carried forward is that of the
// dimension's last movement.
func netMovements(movements []entity.StockMovement) ([]balanceDelta, []lotDelta) {
	type balKey struct {
		locationID id.ID
		itemID     id.ID
	}
	balIdx := make(map[balKey]int)
	lotIdx := make(map[id.ID]int)

	var balances []balanceDelta
	var lots []lotDelta

	for _, m := range movements {
		delta := m.SignedQuantity()

		bk := balKey{m.LocationID, m.ItemID}
		if i, ok := balIdx[bk]; ok {
			balances[i].delta += delta
			balances[i].period = m.Period
		} else {
			balIdx[bk] = len(balances)
			balances = append(balances, balanceDelta{
				locationID: m.LocationID,
				itemID:     m.ItemID,
				delta:      delta,
				period:     m.Period,
			})
		}

		if m.LotID == nil {
			continue
		}
		if i, ok := lotIdx[*m.LotID]; ok {
			lots[i].delta += delta
		} else {
			lotIdx[*m.LotID] = len(lots)
			lots = append(lots, lotDelta{lotID: *m.LotID, itemID: m.ItemID, delta: delta})
		}
	}
	return balances, lots
}

func (r *StockRepo) movementsOf(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	q := r.builder.Select(movementColumns...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"recorder_id": recorderID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetBalance returns current balance for location+item.
// The row is locked for the rest of the transaction when one is open, so the
// availability the resolver saw holds until commit.
func (r *StockRepo) GetBalance(ctx context.Context, locationID, itemID id.ID) (types.Quantity, error) {
	sql := `
		SELECT quantity
		FROM reg_stock_balances
		WHERE location_id = $1 AND item_id = $2
	`
	if r.txm.GetTx(ctx) != nil {
		sql += " FOR UPDATE"
	}

	var quantity types.Quantity
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, locationID, itemID).Scan(&quantity)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return quantity, nil
}

// GetBalances returns balances for several items at one location.
func (r *StockRepo) GetBalances(ctx context.Context, locationID id.ID, itemIDs []id.ID) (map[id.ID]types.Quantity, error) {
	balances := make(map[id.ID]types.Quantity, len(itemIDs))
	if len(itemIDs) == 0 {
		return balances, nil
	}

	q := r.builder.Select("item_id", "quantity").
		From(stockBalancesTable).
		Where(squirrel.Eq{"location_id": locationID, "item_id": itemIDs})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID id.ID
		var quantity types.Quantity
		if err := rows.Scan(&itemID, &quantity); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances[itemID] = quantity
	}
	return balances, rows.Err()
}

// GetBalanceAt reconstructs the balance at a past moment from movements.
func (r *StockRepo) GetBalanceAt(ctx context.Context, locationID, itemID id.ID, at time.Time) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(
			SUM(CASE WHEN record_type = 'receipt' THEN quantity ELSE -quantity END),
			0
		)
		FROM reg_stock_movements
		WHERE location_id = $1
		  AND item_id = $2
		  AND period <= $3
	`

	var balanceScaled int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, locationID, itemID, at).Scan(&balanceScaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("calculate balance at date: %w", err)
	}
	return types.NewQuantityFromInt64Scaled(balanceScaled), nil
}

// Lots returns the lot ledger for an item at a location, oldest first.
func (r *StockRepo) Lots(ctx context.Context, locationID, itemID id.ID, filter stock.LotFilter) ([]*stock.Lot, error) {
	q := r.builder.Select(
		"id", "item_id", "location_id", "name",
		"production_date", "expiration_date", "unit_price", "quantity", "created_at",
	).From(lotsTable).
		Where(squirrel.Eq{"location_id": locationID, "item_id": itemID})

	if filter.Name != "" {
		q = q.Where(squirrel.Eq{"name": filter.Name})
	}
	if !filter.IncludeEmpty {
		q = q.Where(squirrel.Gt{"quantity": int64(0)})
	}

	q = q.OrderBy("production_date NULLS LAST", "created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lots []*stock.Lot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}
	return lots, nil
}

// CreateLot registers a new lot on receipt.
func (r *StockRepo) CreateLot(ctx context.Context, lot *stock.Lot) error {
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}

	q := r.builder.Insert(lotsTable).
		Columns(
			"id", "item_id", "location_id", "name",
			"production_date", "expiration_date", "unit_price", "quantity", "created_at",
		).
		Values(
			lot.ID, lot.ItemID, lot.LocationID, lot.Name,
			lot.ProductionDate, lot.ExpirationDate, lot.UnitPrice, lot.Quantity, lot.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// AdjustLot changes a lot's remaining balance by delta.
func (r *StockRepo) AdjustLot(ctx context.Context, lotID id.ID, delta types.Quantity) error {
	sql := `UPDATE reg_lots SET quantity = quantity + $2 WHERE id = $1 RETURNING quantity, item_id`

	var quantity types.Quantity
	var itemID id.ID
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, lotID, delta).Scan(&quantity, &itemID); err != nil {
		if err == pgx.ErrNoRows {
			return apperror.NewNotFound("lot", lotID.String())
		}
		return fmt.Errorf("adjust lot: %w", err)
	}

	if quantity.IsNegative() && !r.flags.AllowNegativeAvailability(ctx) {
		return apperror.NewAvailabilityConflict(itemID).
			WithDetail("lot_id", lotID.String()).
			WithDetail("balance", quantity.Float64())
	}
	return nil
}

var _ stock.Repository = (*StockRepo)(nil)
