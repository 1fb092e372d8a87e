package handlers

import (
	"github.com/gin-gonic/gin"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/domain/catalogs/location"
	"fabrica/internal/infrastructure/http/v1/dto"
)

// LocationHandler provides location catalog endpoints.
type LocationHandler struct {
	*BaseHandler
	repo location.Repository
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, repo location.Repository) *LocationHandler {
	return &LocationHandler{BaseHandler: base, repo: repo}
}

// RegisterRoutes registers location routes.
func (h *LocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	locations := rg.Group("/locations")
	{
		locations.POST("", h.Create)
		locations.GET("/:id", h.Get)
		locations.GET("/:id/children", h.Children)
	}
}

// Create handles POST /locations.
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc := location.NewLocation(req.Code, req.Name)
	loc.Address = req.Address
	if req.ParentID != nil {
		parentID, err := id.Parse(*req.ParentID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid parent id").WithDetail("field", "parentId"))
			return
		}
		loc.ParentID = &parentID
	}

	if err := loc.Validate(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), loc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, loc.ID.String())
}

// Get handles GET /locations/:id.
func (h *LocationHandler) Get(c *gin.Context) {
	locID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	loc, err := h.repo.GetByID(c.Request.Context(), locID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLocation(loc))
}

// Children handles GET /locations/:id/children.
func (h *LocationHandler) Children(c *gin.Context) {
	locID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	children, err := h.repo.Children(c.Request.Context(), locID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromLocations(children), Count: len(children)})
}
