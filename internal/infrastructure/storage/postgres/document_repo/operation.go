// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/domain/documents"
	"fabrica/internal/infrastructure/storage/postgres"
)

const (
	operationsTable     = "doc_operations"
	operationLinesTable = "doc_operation_lines"
)

const (
	collectionConsumed = "consumed"
	collectionProduced = "produced"
)

var operationColumns = []string{
	"id", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"doc_key", "date", "commit_version", "comment",
	"type", "partner_id", "location_id", "child_location_id", "counter_ref",
	"user_id", "total_amount", "total_vat",
}

var lineColumns = []string{
	"line_id", "operation_id", "collection", "line_no",
	"item_id", "quantity", "entered_quantity",
	"unit_input_price", "unit_output_price",
	"discount_percent", "discount",
	"vat_rate", "vat_amount", "total",
	"lot_id", "lot_name", "lot_production_date", "lot_expiration_date",
	"final_product_id", "source_recipe_id", "note",
}

// OperationRepo implements documents.Repository.
type OperationRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewOperationRepo creates a new operation repository.
func NewOperationRepo(txm *postgres.TxManager) *OperationRepo {
	return &OperationRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the operation with its lines.
func (r *OperationRepo) Create(ctx context.Context, op *documents.Operation) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(operationsTable).
			Columns(operationColumns...).
			Values(
				op.ID, op.DeletionMark, op.Version,
				op.CreatedAt, op.UpdatedAt, op.CreatedBy, op.UpdatedBy,
				op.Key, op.Date, op.CommitVersion, op.Comment,
				op.Type, op.PartnerID, op.LocationID, op.ChildLocationID, op.CounterRef,
				op.UserID, op.TotalAmount, op.TotalVAT,
			)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert operation: %w", err)
		}

		return r.insertLines(ctx, op)
	})
}

// Update rewrites the operation header and replaces its lines.
// Uses optimistic locking on the entity version.
func (r *OperationRepo) Update(ctx context.Context, op *documents.Operation) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		prevVersion := op.Version
		op.Touch()

		q := r.builder.Update(operationsTable).
			Set("deletion_mark", op.DeletionMark).
			Set("version", op.Version).
			Set("updated_at", op.UpdatedAt).
			Set("updated_by", op.UpdatedBy).
			Set("doc_key", op.Key).
			Set("date", op.Date).
			Set("commit_version", op.CommitVersion).
			Set("comment", op.Comment).
			Set("type", op.Type).
			Set("partner_id", op.PartnerID).
			Set("location_id", op.LocationID).
			Set("child_location_id", op.ChildLocationID).
			Set("counter_ref", op.CounterRef).
			Set("user_id", op.UserID).
			Set("total_amount", op.TotalAmount).
			Set("total_vat", op.TotalVAT).
			Where(squirrel.Eq{"id": op.ID, "version": prevVersion})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update operation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewConcurrentModification("operation", op.ID.String())
		}

		del := r.builder.Delete(operationLinesTable).Where(squirrel.Eq{"operation_id": op.ID})
		sql, args, err = del.ToSql()
		if err != nil {
			return fmt.Errorf("build delete lines: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete lines: %w", err)
		}

		return r.insertLines(ctx, op)
	})
}

func (r *OperationRepo) insertLines(ctx context.Context, op *documents.Operation) error {
	total := len(op.Consumed) + len(op.Produced)
	if total == 0 {
		return nil
	}

	rows := make([][]any, 0, total)
	appendLines := func(collection string, lines []*documents.Detail) {
		for _, d := range lines {
			rows = append(rows, []any{
				d.LineID, op.ID, collection, d.LineNo,
				d.ItemID, d.Quantity, d.EnteredQuantity,
				d.UnitInputPrice, d.UnitOutputPrice,
				d.DiscountPercent, d.Discount,
				d.VATRate, d.VATAmount, d.Total,
				d.LotID, d.LotName, d.LotProductionDate, d.LotExpirationDate,
				d.FinalProductID, d.SourceRecipeID, d.Note,
			})
		}
	}
	appendLines(collectionConsumed, op.Consumed)
	appendLines(collectionProduced, op.Produced)

	inserter := postgres.NewBatchInserter(r.txm)
	if _, err := inserter.CopyFromSlice(ctx, operationLinesTable, lineColumns, rows); err != nil {
		return fmt.Errorf("copy lines: %w", err)
	}
	return nil
}

// GetByID retrieves an operation with its line collections.
func (r *OperationRepo) GetByID(ctx context.Context, opID id.ID) (*documents.Operation, error) {
	q := r.builder.Select(operationColumns...).
		From(operationsTable).
		Where(squirrel.Eq{"id": opID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var op documents.Operation
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &op, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("operation", opID.String())
		}
		return nil, fmt.Errorf("get operation: %w", err)
	}

	if err := r.loadLines(ctx, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

type lineRow struct {
	documents.Detail
	Collection string `db:"collection"`
}

func (r *OperationRepo) loadLines(ctx context.Context, op *documents.Operation) error {
	q := r.builder.Select(
		"line_id", "collection", "line_no",
		"item_id", "quantity", "entered_quantity",
		"unit_input_price", "unit_output_price",
		"discount_percent", "discount",
		"vat_rate", "vat_amount", "total",
		"lot_id", "lot_name", "lot_production_date", "lot_expiration_date",
		"final_product_id", "source_recipe_id", "note",
	).From(operationLinesTable).
		Where(squirrel.Eq{"operation_id": op.ID}).
		OrderBy("collection", "line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select lines: %w", err)
	}

	op.Consumed = nil
	op.Produced = nil
	for i := range rows {
		d := rows[i].Detail
		if rows[i].Collection == collectionProduced {
			op.Produced = append(op.Produced, &d)
		} else {
			op.Consumed = append(op.Consumed, &d)
		}
	}
	return nil
}

// ListByLocation returns committed operations at a location, newest first.
func (r *OperationRepo) ListByLocation(ctx context.Context, locationID id.ID, limit, offset int) ([]*documents.Operation, error) {
	q := r.builder.Select(operationColumns...).
		From(operationsTable).
		Where(squirrel.Eq{"location_id": locationID}).
		Where(squirrel.GtOrEq{"doc_key": int64(0)}).
		OrderBy("date DESC")

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

	var ops []*documents.Operation
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ops, sql, args...); err != nil {
		return nil, fmt.Errorf("select operations: %w", err)
	}
	return ops, nil
}

var _ documents.Repository = (*OperationRepo)(nil)
