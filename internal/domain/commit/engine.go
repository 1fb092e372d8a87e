// Package commit orchestrates document commits: validation, automatic
// production resolution, lot allocation, numbering, persistence and register
// movements run as one transaction.
package commit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/core/tx"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/allocate"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/documents/production"
	"fabrica/internal/domain/registers/stock"
	"fabrica/internal/domain/resolve"
	"fabrica/pkg/logger"
	"fabrica/pkg/numerator"
)

// Auditor records commit and reversal events. Implemented by the audit
// service; a nil Auditor disables the trail.
type Auditor interface {
	LogCommit(ctx context.Context, entityType string, entityID id.ID, changes map[string]any) error
	LogReverse(ctx context.Context, entityType string, entityID id.ID) error
}

// Numbers hands out document numbers.
type Numbers interface {
	NextValue(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (int64, error)
}

// Engine runs the commit pipeline for operations.
//
// Top-level commits are serialized: resolution reads availability, plans
// against it and commits in the same transaction, so two interleaved commits
// could both plan against the same stock.
type Engine struct {
	repo      documents.Repository
	resolver  *resolve.Resolver
	allocator *allocate.Allocator
	stock     *stock.Service
	numbers   Numbers
	audit     Auditor
	txm       tx.Manager

	mu sync.Mutex
}

// NewEngine creates a commit engine. audit may be nil.
func NewEngine(
	repo documents.Repository,
	resolver *resolve.Resolver,
	allocator *allocate.Allocator,
	stockSvc *stock.Service,
	numbers Numbers,
	audit Auditor,
	txm tx.Manager,
) *Engine {
	return &Engine{
		repo:      repo,
		resolver:  resolver,
		allocator: allocator,
		stock:     stockSvc,
		numbers:   numbers,
		audit:     audit,
		txm:       txm,
	}
}

// numberPrefix maps an operation type to its sequence prefix.
func numberPrefix(typ documents.OperationType) string {
	switch typ {
	case documents.TypeSale:
		return "SA"
	case documents.TypePurchase:
		return "PU"
	case documents.TypeTransfer:
		return "TR"
	case documents.TypeStockTaking:
		return "ST"
	case documents.TypeProduction:
		return "PB"
	default:
		return "OP"
	}
}

// Commit runs the full pipeline for an operation. On success the operation is
// persisted with a number and its register movements are recorded; any
// production batch synthesized on the way is committed ahead of it in the
// same transaction. On failure nothing is persisted.
func (e *Engine) Commit(ctx context.Context, op *documents.Operation) (*production.Batch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if op.IsCommitted() {
		return nil, apperror.NewBusinessRule(
			apperror.CodeDocumentCommitted,
			"document is already committed",
		).WithDetail("document_id", op.ID.String())
	}

	var batch *production.Batch
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		op.NormalizeSigns()
		op.Recalculate()
		if err := op.Validate(ctx); err != nil {
			return err
		}

		var err error
		batch, err = e.resolver.Resolve(ctx, op)
		if err != nil {
			return err
		}

		if err := e.allocator.AllocateAll(ctx, op); err != nil {
			return err
		}

		movements, err := op.GenerateMovements(ctx)
		if err != nil {
			return fmt.Errorf("generate movements: %w", err)
		}

		cfg := numerator.DefaultConfig(numberPrefix(op.Type))
		number, err := e.numbers.NextValue(ctx, cfg, nil, op.Date)
		if err != nil {
			return fmt.Errorf("next number: %w", err)
		}
		wasNew := op.Key.IsNew()
		op.MarkCommitted(number)

		if wasNew {
			err = e.repo.Create(ctx, op)
		} else {
			err = e.repo.Update(ctx, op)
		}
		if err != nil {
			return err
		}

		if err := e.stock.Record(ctx, op.ID, movements); err != nil {
			return err
		}

		if e.audit != nil {
			if err := e.audit.LogCommit(ctx, op.GetDocumentType(), op.ID, map[string]any{
				"number":         number,
				"commit_version": op.CommitVersion,
				"total_amount":   op.TotalAmount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "operation committed",
		"operation_id", op.ID.String(),
		"type", string(op.Type),
		"number", op.Key.Number(),
	)
	return batch, nil
}

// Reverse removes a committed operation's register movements and returns the
// document to pending state. The document row stays; reversing does not
// delete it.
func (e *Engine) Reverse(ctx context.Context, opID id.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		op, err := e.repo.GetByID(ctx, opID)
		if err != nil {
			return err
		}
		if !op.IsCommitted() {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"only committed documents can be reversed",
			).WithDetail("document_id", opID.String())
		}

		if err := e.stock.Reverse(ctx, op.ID); err != nil {
			return err
		}

		op.SetKey(types.KeyPending)
		if err := e.repo.Update(ctx, op); err != nil {
			return err
		}

		if e.audit != nil {
			if err := e.audit.LogReverse(ctx, op.GetDocumentType(), op.ID); err != nil {
				return err
			}
		}

		logger.Info(ctx, "operation reversed", "operation_id", opID.String())
		return nil
	})
}

// Save persists an operation without committing it. New documents are
// created, existing drafts updated. Committed documents must be reversed
// before they can change.
func (e *Engine) Save(ctx context.Context, op *documents.Operation) error {
	if err := op.CanModify(); err != nil {
		return err
	}

	op.NormalizeSigns()
	op.Recalculate()
	if err := op.Validate(ctx); err != nil {
		return err
	}

	if op.Key.IsNew() {
		op.SetKey(types.KeyPending)
		return e.repo.Create(ctx, op)
	}
	return e.repo.Update(ctx, op)
}
