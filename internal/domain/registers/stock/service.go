package stock

import (
	"context"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/config"
	"fabrica/internal/core/entity"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/location"
	"fabrica/pkg/logger"
)

// Service answers availability questions over the stock register.
type Service struct {
	repo      Repository
	locations location.Repository
	flags     config.Flags
}

// NewService creates a stock register service.
func NewService(repo Repository, locations location.Repository, flags config.Flags) *Service {
	return &Service{
		repo:      repo,
		locations: locations,
		flags:     flags,
	}
}

// Availability returns the quantity of an item available at a location,
// including stock held at its direct child locations. A sub-location order
// sees both its own stock and the parent store's.
func (s *Service) Availability(ctx context.Context, locationID, itemID id.ID) (types.Quantity, error) {
	total, err := s.repo.GetBalance(ctx, locationID, itemID)
	if err != nil {
		return 0, err
	}

	children, err := s.locations.Children(ctx, locationID)
	if err != nil {
		return 0, err
	}
	for _, child := range children {
		q, err := s.repo.GetBalance(ctx, child.ID, itemID)
		if err != nil {
			return 0, err
		}
		total += q
	}

	return total, nil
}

// AvailabilityBatch returns availability for several items at once.
func (s *Service) AvailabilityBatch(ctx context.Context, locationID id.ID, itemIDs []id.ID) (map[id.ID]types.Quantity, error) {
	totals, err := s.repo.GetBalances(ctx, locationID, itemIDs)
	if err != nil {
		return nil, err
	}

	children, err := s.locations.Children(ctx, locationID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childTotals, err := s.repo.GetBalances(ctx, child.ID, itemIDs)
		if err != nil {
			return nil, err
		}
		for itemID, q := range childTotals {
			totals[itemID] += q
		}
	}

	return totals, nil
}

// Lots returns the ordered lot ledger for an item at a location.
func (s *Service) Lots(ctx context.Context, locationID, itemID id.ID, filter LotFilter) ([]*Lot, error) {
	return s.repo.Lots(ctx, locationID, itemID, filter)
}

// Record replaces a document's movements and applies lot deltas.
// When negative availability is not permitted, any draw that would push a
// balance below zero fails with an availability conflict for the item, which
// the resolver treats as a signal to replan.
func (s *Service) Record(ctx context.Context, recorderID id.ID, movements []entity.StockMovement) error {
	if !s.flags.AllowNegativeAvailability(ctx) {
		if err := s.checkExpenses(ctx, movements); err != nil {
			return err
		}
	}

	if err := s.repo.SaveMovements(ctx, recorderID, movements); err != nil {
		return err
	}

	logger.Debug(ctx, "stock movements recorded",
		"recorder_id", recorderID.String(),
		"movements", len(movements),
	)
	return nil
}

// Reverse removes all movements of a document.
func (s *Service) Reverse(ctx context.Context, recorderID id.ID) error {
	return s.repo.DeleteMovements(ctx, recorderID)
}

// checkExpenses verifies every net expense is covered by the current balance.
// The check is advisory; the repository enforces the same constraint under
// the transaction's locks, so a pass here can still conflict at save time.
func (s *Service) checkExpenses(ctx context.Context, movements []entity.StockMovement) error {
	type dim struct {
		locationID id.ID
		itemID     id.ID
	}

	net := make(map[dim]types.Quantity)
	var order []dim
	for _, m := range movements {
		d := dim{m.LocationID, m.ItemID}
		if _, seen := net[d]; !seen {
			order = append(order, d)
		}
		net[d] += m.SignedQuantity()
	}

	for _, d := range order {
		delta := net[d]
		if !delta.IsNegative() {
			continue
		}
		available, err := s.repo.GetBalance(ctx, d.locationID, d.itemID)
		if err != nil {
			return err
		}
		if available+delta < 0 {
			return apperror.NewAvailabilityConflict(d.itemID).
				WithDetail("location_id", d.locationID.String()).
				WithDetail("available", available.Float64()).
				WithDetail("required", delta.Abs().Float64())
		}
	}
	return nil
}
