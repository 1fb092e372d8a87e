package handlers

import (
	"github.com/gin-gonic/gin"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/infrastructure/http/v1/dto"
)

// RecipeHandler provides recipe catalog endpoints.
type RecipeHandler struct {
	*BaseHandler
	repo recipe.Repository
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(base *BaseHandler, repo recipe.Repository) *RecipeHandler {
	return &RecipeHandler{BaseHandler: base, repo: repo}
}

// RegisterRoutes registers recipe routes.
func (h *RecipeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	recipes := rg.Group("/recipes")
	{
		recipes.POST("", h.Create)
		recipes.GET("/:id", h.Get)
		recipes.GET("/producing/:itemId", h.Producing)
	}
}

// Create handles POST /recipes.
func (h *RecipeHandler) Create(c *gin.Context) {
	var req dto.CreateRecipeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rec := recipe.NewRecipe(req.Code, req.Name)
	for _, l := range req.Materials {
		itemID, err := id.Parse(l.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid material item id"))
			return
		}
		rec.AddMaterial(itemID, dto.ToQuantity(l.Ratio))
	}
	for _, l := range req.Products {
		itemID, err := id.Parse(l.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid product item id"))
			return
		}
		rec.AddProduct(itemID, dto.ToQuantity(l.Ratio))
	}

	if err := rec.Validate(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, rec.ID.String())
}

// Get handles GET /recipes/:id.
func (h *RecipeHandler) Get(c *gin.Context) {
	recipeID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	rec, err := h.repo.GetByID(c.Request.Context(), recipeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(rec))
}

// Producing handles GET /recipes/producing/:itemId.
// Returns recipes yielding the item, in the order the resolver tries them.
func (h *RecipeHandler) Producing(c *gin.Context) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}

	recs, err := h.repo.ProducingItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromRecipes(recs), Count: len(recs)})
}
