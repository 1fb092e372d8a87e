package entity

import (
	"context"
	"time"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
)

// Document is the base type for business transactions.
// Examples: Sale, Purchase, Transfer, StockTaking, ProductionBatch.
type Document struct {
	BaseDocument

	// Key encodes document number and lifecycle state in one integer.
	// See types.DocKey for the encoding.
	Key types.DocKey `db:"doc_key" json:"key"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// CommitVersion tracks commit iterations for movement reconciliation.
	// Incremented each time the document is committed or re-committed.
	CommitVersion int `db:"commit_version" json:"commitVersion"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new, unsaved Document.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Key:          types.KeyNew,
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// IsCommitted reports whether the document is persisted with a number.
func (d *Document) IsCommitted() bool {
	return d.Key.IsPersisted()
}

// CanModify checks if document can be modified.
// Committed documents require reversal first.
func (d *Document) CanModify() error {
	if d.IsCommitted() {
		return apperror.NewBusinessRule(
			apperror.CodeDocumentCommitted,
			"Cannot modify committed document. Reverse it first.",
		).WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkCommitted assigns the persisted number and bumps the commit version.
func (d *Document) MarkCommitted(number int64) {
	d.Key = types.FromNumber(number)
	d.CommitVersion++
	d.Touch()
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// GetCommitVersion returns the current commit version.
func (d *Document) GetCommitVersion() int {
	return d.CommitVersion
}
