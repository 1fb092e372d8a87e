package documents

import (
	"context"

	"fabrica/internal/core/id"
)

// Repository defines persistence operations for operations and their lines.
type Repository interface {
	Create(ctx context.Context, op *Operation) error
	Update(ctx context.Context, op *Operation) error
	GetByID(ctx context.Context, opID id.ID) (*Operation, error)
	ListByLocation(ctx context.Context, locationID id.ID, limit, offset int) ([]*Operation, error)
}
