// Package production provides the production batch document.
// A batch consumes recipe materials and produces recipe outputs; the resolver
// synthesizes batches automatically to cover shortfalls.
package production

import (
	"context"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/domain/documents"
)

// Batch is a production document built from one or more recipe applications.
type Batch struct {
	documents.Operation
}

// NewBatch creates a new unsaved production batch at a location.
func NewBatch(locationID id.ID) *Batch {
	return &Batch{
		Operation: *documents.NewOperation(documents.TypeProduction, locationID),
	}
}

// IngredientVeto decides whether an ingredient line may be added when a
// recipe is instantiated. A vetoed ingredient is skipped silently.
type IngredientVeto func(itemID id.ID) bool

// InstantiateRecipe appends one application of rec to the batch: every
// material becomes a consumed line and every product a produced line, tagged
// with the recipe and the final product that caused this instantiation.
// Vetoed ingredients are skipped; veto may be nil.
func (b *Batch) InstantiateRecipe(rec *recipe.Recipe, finalProductID id.ID, veto IngredientVeto) {
	recID := rec.ID
	finalID := finalProductID

	for _, m := range rec.Materials {
		if veto != nil && !veto(m.ItemID) {
			continue
		}
		d := documents.NewDetail(m.ItemID, m.Ratio)
		d.SourceRecipeID = &recID
		d.FinalProductID = &finalID
		b.AddConsumed(d)
	}
	for _, p := range rec.Products {
		d := documents.NewDetail(p.ItemID, p.Ratio)
		d.SourceRecipeID = &recID
		d.FinalProductID = &finalID
		b.AddProduced(d)
	}
}

// ScaleRecipe multiplies every line originating from rec so that the batch
// produces targetQty of targetItem. Ratios come from the recipe, so a recipe
// producing 3 of the target scales 6 required units to factor 2.
func (b *Batch) ScaleRecipe(rec *recipe.Recipe, targetItem id.ID, targetQty types.Quantity) error {
	ratio := rec.ProductRatio(targetItem)
	if ratio <= 0 {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"recipe does not produce the requested item",
		).WithDetail("recipe_id", rec.ID.String()).
			WithDetail("item_id", targetItem.String())
	}

	for _, d := range b.AllLines() {
		if d.SourceRecipeID == nil || *d.SourceRecipeID != rec.ID {
			continue
		}
		base := d.Quantity
		scaled := base.Abs().MulRatio(targetQty, ratio)
		if base.IsNegative() {
			scaled = scaled.Neg()
		}
		d.Quantity = scaled
	}
	return nil
}

// RemoveRecipeLines drops every line originating from the recipe. Used when
// the resolver backtracks off a candidate.
func (b *Batch) RemoveRecipeLines(recipeID id.ID) {
	b.Consumed = withoutRecipe(b.Consumed, recipeID)
	b.Produced = withoutRecipe(b.Produced, recipeID)
	for i, d := range b.Consumed {
		d.LineNo = i + 1
	}
	for i, d := range b.Produced {
		d.LineNo = i + 1
	}
}

func withoutRecipe(lines []*documents.Detail, recipeID id.ID) []*documents.Detail {
	kept := lines[:0]
	for _, d := range lines {
		if d.SourceRecipeID != nil && *d.SourceRecipeID == recipeID {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// ConsumedOf sums the consumed quantity of an item across the batch.
func (b *Batch) ConsumedOf(itemID id.ID) types.Quantity {
	var total types.Quantity
	for _, d := range b.Consumed {
		if d.ItemID == itemID {
			total += d.Quantity.Abs()
		}
	}
	return total
}

// ProducedOf sums the produced quantity of an item across the batch.
func (b *Batch) ProducedOf(itemID id.ID) types.Quantity {
	var total types.Quantity
	for _, d := range b.Produced {
		if d.ItemID == itemID {
			total += d.Quantity.Abs()
		}
	}
	return total
}

// Validate implements entity.Validatable.
func (b *Batch) Validate(ctx context.Context) error {
	if err := b.Operation.Validate(ctx); err != nil {
		return err
	}
	if len(b.Produced) == 0 {
		return apperror.NewValidation("production batch must produce at least one item").
			WithDetail("field", "produced")
	}
	return nil
}
