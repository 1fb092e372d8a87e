package dto

import (
	"time"

	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/documents/production"
)

// OperationLineRequest is one document line.
type OperationLineRequest struct {
	ItemID          string  `json:"itemId" binding:"required"`
	Quantity        float64 `json:"quantity"`
	EnteredQuantity float64 `json:"enteredQuantity"`
	UnitInputPrice  float64 `json:"unitInputPrice"`
	UnitOutputPrice float64 `json:"unitOutputPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	VATRate         string  `json:"vatRate"`
	LotName         string  `json:"lotName"`
	Note            string  `json:"note"`
}

// CreateOperationRequest is the payload for operation creation.
type CreateOperationRequest struct {
	Type            string                 `json:"type" binding:"required"`
	Date            *time.Time             `json:"date"`
	LocationID      string                 `json:"locationId" binding:"required"`
	ChildLocationID *string                `json:"childLocationId"`
	PartnerID       *string                `json:"partnerId"`
	Comment         string                 `json:"comment"`
	Consumed        []OperationLineRequest `json:"consumed"`
	Produced        []OperationLineRequest `json:"produced"`
}

// DistributeDiscountRequest asks the server to spread an amount over lines.
type DistributeDiscountRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// OperationLineResponse is one document line.
type OperationLineResponse struct {
	LineID          string  `json:"lineId"`
	LineNo          int     `json:"lineNo"`
	ItemID          string  `json:"itemId"`
	Quantity        float64 `json:"quantity"`
	UnitInputPrice  string  `json:"unitInputPrice"`
	UnitOutputPrice string  `json:"unitOutputPrice"`
	Discount        string  `json:"discount"`
	VATRate         string  `json:"vatRate"`
	VATAmount       string  `json:"vatAmount"`
	Total           string  `json:"total"`
	LotID           *string `json:"lotId,omitempty"`
	LotName         string  `json:"lotName,omitempty"`
	FinalProductID  *string `json:"finalProductId,omitempty"`
	SourceRecipeID  *string `json:"sourceRecipeId,omitempty"`
	Note            string  `json:"note,omitempty"`
}

// OperationResponse is the operation representation.
type OperationResponse struct {
	ID              string                  `json:"id"`
	Type            string                  `json:"type"`
	State           string                  `json:"state"`
	Number          int64                   `json:"number"`
	Date            time.Time               `json:"date"`
	LocationID      string                  `json:"locationId"`
	ChildLocationID *string                 `json:"childLocationId,omitempty"`
	Comment         string                  `json:"comment,omitempty"`
	TotalAmount     string                  `json:"totalAmount"`
	TotalVAT        string                  `json:"totalVat"`
	CommitVersion   int                     `json:"commitVersion"`
	Version         int                     `json:"version"`
	Consumed        []OperationLineResponse `json:"consumed"`
	Produced        []OperationLineResponse `json:"produced"`
}

// CommitResponse carries the committed operation and any production batch
// synthesized to cover its shortfalls.
type CommitResponse struct {
	Operation OperationResponse  `json:"operation"`
	Batch     *OperationResponse `json:"batch,omitempty"`
}

// FromOperation maps an operation to its response.
func FromOperation(op *documents.Operation) OperationResponse {
	resp := OperationResponse{
		ID:            op.ID.String(),
		Type:          string(op.Type),
		State:         string(op.Key.State()),
		Number:        op.Key.Number(),
		Date:          op.Date,
		LocationID:    op.LocationID.String(),
		Comment:       op.Comment,
		TotalAmount:   op.TotalAmount.String(),
		TotalVAT:      op.TotalVAT.String(),
		CommitVersion: op.CommitVersion,
		Version:       op.Version,
		Consumed:      fromDetails(op.Consumed),
		Produced:      fromDetails(op.Produced),
	}
	if op.ChildLocationID != nil {
		s := op.ChildLocationID.String()
		resp.ChildLocationID = &s
	}
	return resp
}

// FromOperations maps a slice of operations.
func FromOperations(ops []*documents.Operation) []OperationResponse {
	out := make([]OperationResponse, 0, len(ops))
	for _, op := range ops {
		out = append(out, FromOperation(op))
	}
	return out
}

// FromCommit builds the commit response.
func FromCommit(op *documents.Operation, batch *production.Batch) CommitResponse {
	resp := CommitResponse{Operation: FromOperation(op)}
	if batch != nil {
		b := FromOperation(&batch.Operation)
		resp.Batch = &b
	}
	return resp
}

func fromDetails(details []*documents.Detail) []OperationLineResponse {
	out := make([]OperationLineResponse, 0, len(details))
	for _, d := range details {
		line := OperationLineResponse{
			LineID:          d.LineID.String(),
			LineNo:          d.LineNo,
			ItemID:          d.ItemID.String(),
			Quantity:        d.Quantity.Float64(),
			UnitInputPrice:  d.UnitInputPrice.String(),
			UnitOutputPrice: d.UnitOutputPrice.String(),
			Discount:        d.Discount.String(),
			VATRate:         d.VATRate,
			VATAmount:       d.VATAmount.String(),
			Total:           d.Total.String(),
			LotName:         d.LotName,
			Note:            d.Note,
		}
		if d.LotID != nil {
			s := d.LotID.String()
			line.LotID = &s
		}
		if d.FinalProductID != nil {
			s := d.FinalProductID.String()
			line.FinalProductID = &s
		}
		if d.SourceRecipeID != nil {
			s := d.SourceRecipeID.String()
			line.SourceRecipeID = &s
		}
		out = append(out, line)
	}
	return out
}
