package handlers

import (
	"github.com/gin-gonic/gin"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/commit"
	"fabrica/internal/domain/costing"
	"fabrica/internal/domain/documents"
	"fabrica/internal/infrastructure/http/v1/dto"
)

// OperationHandler provides document endpoints: draft save, commit, reversal.
type OperationHandler struct {
	*BaseHandler
	engine *commit.Engine
	repo   documents.Repository
}

// NewOperationHandler creates a new operation handler.
func NewOperationHandler(base *BaseHandler, engine *commit.Engine, repo documents.Repository) *OperationHandler {
	return &OperationHandler{BaseHandler: base, engine: engine, repo: repo}
}

// RegisterRoutes registers operation routes.
func (h *OperationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ops := rg.Group("/operations")
	{
		ops.POST("", h.Create)
		ops.GET("", h.List)
		ops.GET("/:id", h.Get)
		ops.POST("/:id/commit", h.Commit)
		ops.POST("/:id/reverse", h.Reverse)
		ops.POST("/:id/distribute-discount", h.DistributeDiscount)
	}
}

// Create handles POST /operations. The document is saved as pending; commit
// is a separate call.
func (h *OperationHandler) Create(c *gin.Context) {
	var req dto.CreateOperationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.buildOperation(&req)
	if err != nil {
		h.Error(c, err)
		return
	}
	op.UserID = h.GetUserID(c)

	if err := h.engine.Save(c.Request.Context(), op); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, op.ID.String())
}

// Get handles GET /operations/:id.
func (h *OperationHandler) Get(c *gin.Context) {
	opID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	op, err := h.repo.GetByID(c.Request.Context(), opID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOperation(op))
}

// List handles GET /operations?locationId=...
func (h *OperationHandler) List(c *gin.Context) {
	locationID, err := id.Parse(c.Query("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("locationId is required"))
		return
	}

	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	ops, err := h.repo.ListByLocation(c.Request.Context(), locationID, page.PageSize, page.Offset())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: dto.FromOperations(ops), Count: len(ops)})
}

// Commit handles POST /operations/:id/commit. Runs the full pipeline:
// resolution, allocation, numbering, movements. The response carries any
// production batch committed ahead of the document.
func (h *OperationHandler) Commit(c *gin.Context) {
	opID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	op, err := h.repo.GetByID(c.Request.Context(), opID)
	if err != nil {
		h.Error(c, err)
		return
	}

	batch, err := h.engine.Commit(c.Request.Context(), op)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCommit(op, batch))
}

// Reverse handles POST /operations/:id/reverse.
func (h *OperationHandler) Reverse(c *gin.Context) {
	opID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.engine.Reverse(c.Request.Context(), opID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "operation reversed")
}

// DistributeDiscount handles POST /operations/:id/distribute-discount.
// Spreads the amount over the document's consumed lines proportionally to
// their value and re-saves the document.
func (h *OperationHandler) DistributeDiscount(c *gin.Context) {
	opID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.DistributeDiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.repo.GetByID(c.Request.Context(), opID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := op.CanModify(); err != nil {
		h.Error(c, err)
		return
	}

	costing.Distribute(op.Consumed, types.NewMoney(req.Amount))
	op.Recalculate()

	if err := h.repo.Update(c.Request.Context(), op); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOperation(op))
}

func (h *OperationHandler) buildOperation(req *dto.CreateOperationRequest) (*documents.Operation, error) {
	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		return nil, apperror.NewValidation("invalid location id").WithDetail("field", "locationId")
	}

	op := documents.NewOperation(documents.OperationType(req.Type), locationID)
	if req.Date != nil {
		op.Date = *req.Date
	}
	op.Comment = req.Comment

	if req.ChildLocationID != nil {
		childID, err := id.Parse(*req.ChildLocationID)
		if err != nil {
			return nil, apperror.NewValidation("invalid child location id").WithDetail("field", "childLocationId")
		}
		op.ChildLocationID = &childID
	}
	if req.PartnerID != nil {
		partnerID, err := id.Parse(*req.PartnerID)
		if err != nil {
			return nil, apperror.NewValidation("invalid partner id").WithDetail("field", "partnerId")
		}
		op.PartnerID = &partnerID
	}

	appendLines := func(lines []dto.OperationLineRequest, produced bool) error {
		for _, l := range lines {
			itemID, err := id.Parse(l.ItemID)
			if err != nil {
				return apperror.NewValidation("invalid item id").WithDetail("field", "itemId")
			}
			d := documents.NewDetail(itemID, dto.ToQuantity(l.Quantity))
			d.EnteredQuantity = dto.ToQuantity(l.EnteredQuantity)
			d.UnitInputPrice = types.NewMoney(l.UnitInputPrice)
			d.UnitOutputPrice = types.NewMoney(l.UnitOutputPrice)
			d.DiscountPercent = types.NewMoney(l.DiscountPercent)
			if l.VATRate != "" {
				d.VATRate = l.VATRate
			}
			d.LotName = l.LotName
			d.Note = l.Note
			if produced {
				op.AddProduced(d)
			} else {
				op.AddConsumed(d)
			}
		}
		return nil
	}

	if err := appendLines(req.Consumed, false); err != nil {
		return nil, err
	}
	if err := appendLines(req.Produced, true); err != nil {
		return nil, err
	}
	return op, nil
}
