package handlers

import (
	"github.com/gin-gonic/gin"

	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/infrastructure/http/v1/dto"
)

// ItemHandler provides item catalog endpoints.
type ItemHandler struct {
	*BaseHandler
	repo item.Repository
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, repo item.Repository) *ItemHandler {
	return &ItemHandler{BaseHandler: base, repo: repo}
}

// RegisterRoutes registers item routes.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/items")
	{
		items.POST("", h.Create)
		items.GET("", h.List)
		items.GET("/:id", h.Get)
		items.PUT("/:id", h.Update)
	}
}

// Create handles POST /items.
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it := item.NewItem(req.Code, req.Name, item.ItemType(req.Type))
	it.Barcode = req.Barcode
	it.BaseUnit = req.BaseUnit
	if req.VATRate != "" {
		it.VATRate = item.VATRate(req.VATRate)
	}
	it.TrackLots = req.TrackLots
	it.PurchasePrice = types.NewMoney(req.PurchasePrice)
	it.WholesalePrice = types.NewMoney(req.WholesalePrice)
	it.RetailPrice = types.NewMoney(req.RetailPrice)

	if err := it.Validate(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, it.ID.String())
}

// Get handles GET /items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	it, err := h.repo.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromItem(it))
}

// Update handles PUT /items/:id.
func (h *ItemHandler) Update(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := h.repo.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	it.Name = req.Name
	it.Barcode = req.Barcode
	it.BaseUnit = req.BaseUnit
	if req.VATRate != "" {
		it.VATRate = item.VATRate(req.VATRate)
	}
	it.TrackLots = req.TrackLots
	it.PurchasePrice = types.NewMoney(req.PurchasePrice)
	it.WholesalePrice = types.NewMoney(req.WholesalePrice)
	it.RetailPrice = types.NewMoney(req.RetailPrice)
	it.Version = req.Version

	if err := it.Validate(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.repo.Update(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromItem(it))
}

// List handles GET /items.
func (h *ItemHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	items, err := h.repo.List(c.Request.Context(), c.Query("search"), page.PageSize, page.Offset())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromItems(items), Count: len(items)})
}
