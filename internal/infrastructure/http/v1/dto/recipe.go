package dto

import (
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/recipe"
)

// RecipeLineRequest is one material or product row.
type RecipeLineRequest struct {
	ItemID string  `json:"itemId" binding:"required"`
	Ratio  float64 `json:"ratio" binding:"required,gt=0"`
}

// CreateRecipeRequest is the payload for recipe creation.
type CreateRecipeRequest struct {
	Code      string              `json:"code" binding:"required"`
	Name      string              `json:"name" binding:"required"`
	Materials []RecipeLineRequest `json:"materials" binding:"required,min=1"`
	Products  []RecipeLineRequest `json:"products" binding:"required,min=1"`
}

// RecipeLineResponse is one recipe row.
type RecipeLineResponse struct {
	LineNo int     `json:"lineNo"`
	ItemID string  `json:"itemId"`
	Ratio  float64 `json:"ratio"`
}

// RecipeResponse is the recipe representation.
type RecipeResponse struct {
	ID           string               `json:"id"`
	Code         string               `json:"code"`
	Name         string               `json:"name"`
	Materials    []RecipeLineResponse `json:"materials"`
	Products     []RecipeLineResponse `json:"products"`
	DeletionMark bool                 `json:"deletionMark"`
	Version      int                  `json:"version"`
}

// FromRecipe maps a recipe to its response.
func FromRecipe(rec *recipe.Recipe) RecipeResponse {
	return RecipeResponse{
		ID:           rec.ID.String(),
		Code:         rec.Code,
		Name:         rec.Name,
		Materials:    fromRecipeLines(rec.Materials),
		Products:     fromRecipeLines(rec.Products),
		DeletionMark: rec.DeletionMark,
		Version:      rec.Version,
	}
}

// FromRecipes maps a slice of recipes.
func FromRecipes(recs []*recipe.Recipe) []RecipeResponse {
	out := make([]RecipeResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecipe(rec))
	}
	return out
}

func fromRecipeLines(lines []recipe.Line) []RecipeLineResponse {
	out := make([]RecipeLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, RecipeLineResponse{
			LineNo: l.LineNo,
			ItemID: l.ItemID.String(),
			Ratio:  l.Ratio.Float64(),
		})
	}
	return out
}

// ToQuantity converts an API quantity to the internal fixed-point form.
func ToQuantity(v float64) types.Quantity {
	return types.NewQuantityFromFloat64(v)
}
