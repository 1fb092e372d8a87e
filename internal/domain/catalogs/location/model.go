// Package location provides the stock location catalog.
// A location is a warehouse or a sub-location of one (e.g. a restaurant floor
// drawing from the kitchen store).
package location

import (
	"context"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
)

// Location represents a place stock is held.
type Location struct {
	entity.Catalog

	// ParentID links a child location to its parent warehouse (nullable).
	ParentID *id.ID `db:"parent_id" json:"parentId,omitempty"`

	// Address is free-form.
	Address string `db:"address" json:"address,omitempty"`
}

// NewLocation creates a new Location.
func NewLocation(code, name string) *Location {
	return &Location{
		Catalog: entity.NewCatalog(code, name),
	}
}

// IsChildOf reports whether l is a direct child of parentID.
func (l *Location) IsChildOf(parentID id.ID) bool {
	return l.ParentID != nil && *l.ParentID == parentID
}

// Validate implements entity.Validatable.
func (l *Location) Validate(ctx context.Context) error {
	if err := l.Catalog.Validate(ctx); err != nil {
		return err
	}
	if l.ParentID != nil && *l.ParentID == l.ID {
		return apperror.NewValidation("location cannot be its own parent").
			WithDetail("field", "parentId")
	}
	return nil
}

// Repository defines persistence operations for locations.
type Repository interface {
	Create(ctx context.Context, loc *Location) error
	GetByID(ctx context.Context, locID id.ID) (*Location, error)
	GetByCode(ctx context.Context, code string) (*Location, error)
	Children(ctx context.Context, parentID id.ID) ([]*Location, error)
}
