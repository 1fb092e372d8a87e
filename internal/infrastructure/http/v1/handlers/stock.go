package handlers

import (
	"github.com/gin-gonic/gin"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/domain/registers/stock"
	"fabrica/internal/infrastructure/http/v1/dto"
)

// StockHandler provides stock register endpoints.
type StockHandler struct {
	*BaseHandler
	svc *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, svc *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, svc: svc}
}

// RegisterRoutes registers stock routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	st := rg.Group("/stock")
	{
		st.GET("/availability", h.Availability)
		st.GET("/lots", h.Lots)
	}
}

// Availability handles GET /stock/availability?locationId=...&itemId=...
// The returned quantity includes stock at direct child locations.
func (h *StockHandler) Availability(c *gin.Context) {
	locationID, itemID, ok := h.dims(c)
	if !ok {
		return
	}

	qty, err := h.svc.Availability(c.Request.Context(), locationID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AvailabilityResponse{
		ItemID:     itemID.String(),
		LocationID: locationID.String(),
		Quantity:   qty.Float64(),
	})
}

// Lots handles GET /stock/lots?locationId=...&itemId=...
// Lots are returned oldest first, the order allocation drains them in.
func (h *StockHandler) Lots(c *gin.Context) {
	locationID, itemID, ok := h.dims(c)
	if !ok {
		return
	}

	filter := stock.LotFilter{
		Name:         c.Query("name"),
		IncludeEmpty: c.Query("includeEmpty") == "true",
	}

	lots, err := h.svc.Lots(c.Request.Context(), locationID, itemID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromLots(lots), Count: len(lots)})
}

func (h *StockHandler) dims(c *gin.Context) (id.ID, id.ID, bool) {
	locationID, err := id.Parse(c.Query("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("locationId is required"))
		return id.Nil(), id.Nil(), false
	}
	itemID, err := id.Parse(c.Query("itemId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("itemId is required"))
		return id.Nil(), id.Nil(), false
	}
	return locationID, itemID, true
}
