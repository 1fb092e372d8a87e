// Package recipe provides the bill-of-materials catalog.
// A recipe maps consumed material quantities to produced item quantities; the
// resolver instantiates recipes to manufacture shortfalls.
package recipe

import (
	"context"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

// Line is one material or product row of a recipe.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ItemID id.ID `db:"item_id" json:"itemId"`

	// Ratio is the quantity of this item per one application of the recipe.
	Ratio types.Quantity `db:"ratio" json:"ratio"`
}

// Recipe is a named, persisted bill of materials.
// Materials are consumed, Products are produced; one recipe may produce
// several items.
type Recipe struct {
	entity.Catalog

	Materials []Line `db:"-" json:"materials"`
	Products  []Line `db:"-" json:"products"`
}

// NewRecipe creates a new empty Recipe.
func NewRecipe(code, name string) *Recipe {
	return &Recipe{
		Catalog: entity.NewCatalog(code, name),
	}
}

// AddMaterial appends a consumed line.
func (r *Recipe) AddMaterial(itemID id.ID, ratio types.Quantity) {
	r.Materials = append(r.Materials, Line{
		LineID: id.New(),
		LineNo: len(r.Materials) + 1,
		ItemID: itemID,
		Ratio:  ratio,
	})
}

// AddProduct appends a produced line.
func (r *Recipe) AddProduct(itemID id.ID, ratio types.Quantity) {
	r.Products = append(r.Products, Line{
		LineID: id.New(),
		LineNo: len(r.Products) + 1,
		ItemID: itemID,
		Ratio:  ratio,
	})
}

// ProductRatio returns the produced ratio for an item, or zero if the recipe
// does not produce it.
func (r *Recipe) ProductRatio(itemID id.ID) types.Quantity {
	for _, p := range r.Products {
		if p.ItemID == itemID {
			return p.Ratio
		}
	}
	return 0
}

// Produces reports whether the recipe yields the item.
func (r *Recipe) Produces(itemID id.ID) bool {
	return r.ProductRatio(itemID) > 0
}

// Validate implements entity.Validatable.
func (r *Recipe) Validate(ctx context.Context) error {
	if err := r.Catalog.Validate(ctx); err != nil {
		return err
	}

	if len(r.Materials) == 0 {
		return apperror.NewValidation("at least one material is required").
			WithDetail("field", "materials")
	}
	if len(r.Products) == 0 {
		return apperror.NewValidation("at least one product is required").
			WithDetail("field", "products")
	}

	for i, l := range r.Materials {
		if id.IsNil(l.ItemID) {
			return apperror.NewValidation("material item is required").
				WithDetail("field", "materials").
				WithDetail("lineNo", i+1)
		}
		if l.Ratio <= 0 {
			return apperror.NewValidation("material ratio must be positive").
				WithDetail("field", "materials").
				WithDetail("lineNo", i+1)
		}
	}
	for i, l := range r.Products {
		if id.IsNil(l.ItemID) {
			return apperror.NewValidation("product item is required").
				WithDetail("field", "products").
				WithDetail("lineNo", i+1)
		}
		if l.Ratio <= 0 {
			return apperror.NewValidation("product ratio must be positive").
				WithDetail("field", "products").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// Repository defines persistence operations for recipes.
type Repository interface {
	Create(ctx context.Context, r *Recipe) error
	GetByID(ctx context.Context, recipeID id.ID) (*Recipe, error)
	Update(ctx context.Context, r *Recipe) error

	// ProducingItem returns recipes that produce the item, in stored order.
	// The resolver relies on this order being stable across calls.
	ProducingItem(ctx context.Context, itemID id.ID) ([]*Recipe, error)
}
