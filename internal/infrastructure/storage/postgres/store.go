package postgres

import (
	"context"
	"fmt"

	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/allocate"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/documents/production"
	"fabrica/internal/domain/registers/stock"
	"fabrica/pkg/numerator"
)

// ResolverBackend adapts the persistence layer to the resolution engine's
// catalog and store ports. Batch commits run inside the surrounding document
// transaction; the stock repository's balance enforcement is what surfaces
// availability conflicts back to the resolver.
type ResolverBackend struct {
	stock     *stock.Service
	recipes   recipe.Repository
	items     item.Reader
	documents documents.Repository
	numbers   *numerator.Service
	allocator *allocate.Allocator
}

// NewResolverBackend wires the resolution engine's data access.
// allocator may be nil when lot tracking is off.
func NewResolverBackend(
	stockSvc *stock.Service,
	recipes recipe.Repository,
	items item.Reader,
	docs documents.Repository,
	numbers *numerator.Service,
	allocator *allocate.Allocator,
) *ResolverBackend {
	return &ResolverBackend{
		stock:     stockSvc,
		recipes:   recipes,
		items:     items,
		documents: docs,
		numbers:   numbers,
		allocator: allocator,
	}
}

// Availability returns the on-hand quantity at a location. The stock service
// already counts stock held at direct child locations, which covers the
// document's sub-location.
func (b *ResolverBackend) Availability(ctx context.Context, locationID id.ID, childLocationID *id.ID, itemID id.ID) (types.Quantity, error) {
	return b.stock.Availability(ctx, locationID, itemID)
}

// RecipesProducing returns recipes yielding the item, in stored order.
func (b *ResolverBackend) RecipesProducing(ctx context.Context, itemID id.ID) ([]*recipe.Recipe, error) {
	return b.recipes.ProducingItem(ctx, itemID)
}

// Price returns the stored price of an item for a price group.
func (b *ResolverBackend) Price(ctx context.Context, itemID id.ID, group item.PriceGroup) (types.Money, error) {
	it, err := b.items.GetByID(ctx, itemID)
	if err != nil {
		return types.Zero(), err
	}
	return it.Price(group), nil
}

// CommitBatch numbers and persists a synthesized production batch, then
// records its stock movements. A draw that would push a balance negative
// fails with an availability conflict carrying the item, which the resolver
// uses to replan.
func (b *ResolverBackend) CommitBatch(ctx context.Context, batch *production.Batch) error {
	batch.Recalculate()
	if err := batch.Validate(ctx); err != nil {
		return err
	}

	// The batch's material draws carry lot provenance like any other
	// document's lines. Already-assigned lines are skipped, so a replanned
	// re-commit only allocates the freshly instantiated ones.
	if b.allocator != nil {
		if err := b.allocator.AllocateAll(ctx, &batch.Operation); err != nil {
			return err
		}
	}

	movements, err := batch.GenerateMovements(ctx)
	if err != nil {
		return fmt.Errorf("generate movements: %w", err)
	}

	if !batch.IsCommitted() {
		number, err := b.numbers.NextValue(ctx, numerator.DefaultConfig("PB"), nil, batch.Date)
		if err != nil {
			return fmt.Errorf("next batch number: %w", err)
		}
		batch.MarkCommitted(number)
		if err := b.documents.Create(ctx, &batch.Operation); err != nil {
			return err
		}
	} else {
		// Replanned re-commit: keep the number, advance the commit version to
		// match the freshly generated movements. Update bumps the entity
		// version itself.
		batch.CommitVersion++
		if err := b.documents.Update(ctx, &batch.Operation); err != nil {
			return err
		}
	}

	return b.stock.Record(ctx, batch.ID, movements)
}
