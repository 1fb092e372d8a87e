// Package catalog_repo provides PostgreSQL implementations for catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/infrastructure/storage/postgres"
)

const itemsTable = "cat_items"

var itemColumns = []string{
	"id", "code", "name", "deletion_mark", "version",
	"type", "barcode", "base_unit", "vat_rate",
	"track_lots", "purchase_price", "wholesale_price", "retail_price",
}

// ItemRepo implements item.Repository.
type ItemRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewItemRepo creates a new item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new item.
func (r *ItemRepo) Create(ctx context.Context, it *item.Item) error {
	q := r.builder.Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			it.ID, it.Code, it.Name, it.DeletionMark, it.Version,
			it.Type, it.Barcode, it.BaseUnit, it.VATRate,
			it.TrackLots, it.PurchasePrice, it.WholesalePrice, it.RetailPrice,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetByID retrieves an item by id.
func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*item.Item, error) {
	return r.getOne(ctx, squirrel.Eq{"id": itemID}, itemID)
}

// GetByCode retrieves an item by code.
func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*item.Item, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

// GetByBarcode retrieves an item by barcode.
func (r *ItemRepo) GetByBarcode(ctx context.Context, barcode string) (*item.Item, error) {
	return r.getOne(ctx, squirrel.Eq{"barcode": barcode}, barcode)
}

func (r *ItemRepo) getOne(ctx context.Context, where squirrel.Eq, key any) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).From(itemsTable).Where(where).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("item", key)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// Update updates an existing item.
func (r *ItemRepo) Update(ctx context.Context, it *item.Item) error {
	// Optimistic locking: match the version we loaded, write the next one.
	prevVersion := it.Version
	it.Touch()

	q := r.builder.Update(itemsTable).
		Set("code", it.Code).
		Set("name", it.Name).
		Set("deletion_mark", it.DeletionMark).
		Set("version", it.Version).
		Set("type", it.Type).
		Set("barcode", it.Barcode).
		Set("base_unit", it.BaseUnit).
		Set("vat_rate", it.VATRate).
		Set("track_lots", it.TrackLots).
		Set("purchase_price", it.PurchasePrice).
		Set("wholesale_price", it.WholesalePrice).
		Set("retail_price", it.RetailPrice).
		Where(squirrel.Eq{"id": it.ID, "version": prevVersion})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("item", it.ID.String())
	}
	return nil
}

// List returns items matching an optional search string.
func (r *ItemRepo) List(ctx context.Context, search string, limit, offset int) ([]*item.Item, error) {
	q := r.builder.Select(itemColumns...).From(itemsTable)

	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}

	q = q.OrderBy("code")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*item.Item
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

var _ item.Repository = (*ItemRepo)(nil)
