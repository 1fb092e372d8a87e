// Package resolve implements automatic production resolution: when a document
// is about to consume more of an item than is available, the resolver
// synthesizes a production batch from known recipes, recursively covering the
// recipes' own material shortfalls, and commits it ahead of the document.
package resolve

import (
	"context"
	"sync/atomic"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/config"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/domain/costing"
	"fabrica/internal/domain/documents"
	"fabrica/internal/domain/documents/production"
	"fabrica/pkg/logger"
)

// Catalog supplies availability, recipe and price lookups.
type Catalog interface {
	// Availability returns the on-hand quantity of an item at a location,
	// including the optional child location's stock.
	Availability(ctx context.Context, locationID id.ID, childLocationID *id.ID, itemID id.ID) (types.Quantity, error)

	// RecipesProducing returns recipes yielding the item, in stored order.
	RecipesProducing(ctx context.Context, itemID id.ID) ([]*recipe.Recipe, error)

	// Price returns the current stored price for an item.
	Price(ctx context.Context, itemID id.ID, group item.PriceGroup) (types.Money, error)
}

// Store commits a synthesized production batch atomically. An availability
// conflict return means stock changed since the availability check; the
// resolver reacts by advancing to the next recipe candidate for the item
// carried by the error.
type Store interface {
	CommitBatch(ctx context.Context, batch *production.Batch) error
}

// Veto lets the caller exclude items from automatic production.
// A nil Veto allows everything.
type Veto interface {
	// AllowTarget reports whether the item may be auto-produced at all.
	AllowTarget(ctx context.Context, itemID id.ID) bool

	// AllowIngredient reports whether the item may be consumed as a
	// substitute ingredient. One rejected ingredient rejects the recipe.
	AllowIngredient(ctx context.Context, itemID id.ID) bool
}

// Resolver runs the production-resolution search.
// It is not reentrant: one resolution may be in flight at a time, and the
// caller serializes top-level commits around it.
type Resolver struct {
	catalog Catalog
	store   Store
	flags   config.Flags
	veto    Veto

	busy atomic.Bool
}

// New creates a Resolver. veto may be nil.
func New(catalog Catalog, store Store, flags config.Flags, veto Veto) *Resolver {
	return &Resolver{
		catalog: catalog,
		store:   store,
		flags:   flags,
		veto:    veto,
	}
}

// resolution is the working state of one outer Resolve call.
type resolution struct {
	op    *documents.Operation
	batch *production.Batch

	// chains by final product id, plans by short item id.
	chains map[id.ID]*Chain
	plans  map[id.ID]*itemPlan
}

// itemPlan is the resumable recipe trial state for one short item.
type itemPlan struct {
	itemID    id.ID
	chain     *Chain
	shortfall types.Quantity

	recipes  []*recipe.Recipe
	index    int
	assigned *recipe.Recipe
}

// Resolve inspects the operation's merged requirements, synthesizes a
// production batch covering every shortfall, and commits it through the
// Store. It returns the committed batch, or nil when nothing was short.
//
// On success the operation's lines are re-priced from the catalog and its
// totals recomputed. On failure no batch is persisted; the caller aborts the
// surrounding document commit in the same transaction.
func (r *Resolver) Resolve(ctx context.Context, op *documents.Operation) (*production.Batch, error) {
	if !r.flags.AutoProductionEnabled(ctx) {
		return nil, nil
	}
	if !r.busy.CompareAndSwap(false, true) {
		return nil, apperror.NewConflict("production resolution already in progress")
	}
	defer r.busy.Store(false)

	res := &resolution{
		op:     op,
		batch:  production.NewBatch(op.LocationID),
		chains: make(map[id.ID]*Chain),
		plans:  make(map[id.ID]*itemPlan),
	}
	res.batch.ChildLocationID = op.ChildLocationID

	for _, req := range op.MergedRequirements() {
		short, err := r.shortfall(ctx, res, req.ItemID, req.Quantity)
		if err != nil {
			return nil, err
		}
		if !short.IsPositive() {
			continue
		}

		chain := NewChain(req.ItemID)
		res.chains[req.ItemID] = chain

		if err := r.resolveItem(ctx, res, chain, req.ItemID, short); err != nil {
			accepted, aerr := r.acceptNegative(ctx, res, err, req.ItemID, req.Quantity, short)
			if accepted {
				continue
			}
			if aerr != nil {
				return nil, aerr
			}
			return nil, err
		}
	}

	if len(res.batch.Produced) == 0 {
		return nil, nil
	}

	if err := r.commitBatch(ctx, res); err != nil {
		return nil, err
	}

	if err := r.reprice(ctx, res); err != nil {
		return nil, err
	}

	logger.Info(ctx, "production batch synthesized",
		"batch_id", res.batch.ID.String(),
		"produced_lines", len(res.batch.Produced),
		"consumed_lines", len(res.batch.Consumed),
	)
	return res.batch, nil
}

// shortfall computes how much of the item the resolution still has to
// manufacture, netting the batch's own receipts and draws against stock.
func (r *Resolver) shortfall(ctx context.Context, res *resolution, itemID id.ID, required types.Quantity) (types.Quantity, error) {
	available, err := r.catalog.Availability(ctx, res.op.LocationID, res.op.ChildLocationID, itemID)
	if err != nil {
		return 0, err
	}
	available += res.batch.ProducedOf(itemID)
	available -= res.batch.ConsumedOf(itemID)
	return required - available, nil
}

// resolveItem finds and applies a recipe producing the item, recursively
// covering the recipe's own material shortfalls. Candidates are tried in
// stored order starting from the plan's resumable index; failed candidates
// stay recorded in the chain and are never retried for this final product.
func (r *Resolver) resolveItem(ctx context.Context, res *resolution, chain *Chain, itemID id.ID, shortfall types.Quantity) error {
	if r.veto != nil && !r.veto.AllowTarget(ctx, itemID) {
		return apperror.NewRecipeExhausted(itemID)
	}

	plan, ok := res.plans[itemID]
	if !ok {
		recipes, err := r.catalog.RecipesProducing(ctx, itemID)
		if err != nil {
			return err
		}
		plan = &itemPlan{itemID: itemID, chain: chain, recipes: recipes}
		res.plans[itemID] = plan
	}
	plan.shortfall = shortfall

	for plan.index < len(plan.recipes) {
		rec := plan.recipes[plan.index]

		if chain.Exhausted() || chain.Contains(rec.ID) || !r.ingredientsAllowed(ctx, rec) {
			plan.index++
			continue
		}

		// Backtracking re-entry: drop the previous occupant of this slot.
		if plan.assigned != nil {
			res.batch.RemoveRecipeLines(plan.assigned.ID)
			plan.assigned = nil
		}

		res.batch.InstantiateRecipe(rec, chain.FinalProductID, nil)
		chain.Push(rec.ID)

		if err := res.batch.ScaleRecipe(rec, itemID, shortfall); err != nil {
			res.batch.RemoveRecipeLines(rec.ID)
			plan.index++
			continue
		}
		if err := r.priceRecipeLines(ctx, res, rec); err != nil {
			return err
		}
		costing.DistributeCost(res.batch.Consumed, res.batch.Produced)
		plan.assigned = rec

		if err := r.ensureMaterials(ctx, res, chain, rec); err != nil {
			if isResolutionFailure(err) {
				// This candidate cannot be supplied; move to the next.
				res.batch.RemoveRecipeLines(rec.ID)
				plan.assigned = nil
				plan.index++
				continue
			}
			return err
		}

		return nil
	}

	return apperror.NewRecipeExhausted(itemID)
}

// ensureMaterials covers the recipe's material draws, recursing into
// resolveItem for every material the batch leaves short. A material that
// cannot be produced is tolerated at negative stock when configuration
// permits it.
func (r *Resolver) ensureMaterials(ctx context.Context, res *resolution, chain *Chain, rec *recipe.Recipe) error {
	for _, m := range rec.Materials {
		short, err := r.shortfall(ctx, res, m.ItemID, 0)
		if err != nil {
			return err
		}
		if !short.IsPositive() {
			continue
		}
		if err := r.resolveItem(ctx, res, chain, m.ItemID, short); err != nil {
			if isResolutionFailure(err) && r.flags.AllowNegativeAvailability(ctx) {
				logger.Warn(ctx, "material left at negative availability",
					"item_id", m.ItemID.String(),
					"short", short.String(),
				)
				continue
			}
			return err
		}
	}
	return nil
}

// priceRecipeLines sets the cost basis of the recipe's freshly instantiated
// material lines from the catalog, so cost distribution has real inputs.
func (r *Resolver) priceRecipeLines(ctx context.Context, res *resolution, rec *recipe.Recipe) error {
	for _, d := range res.batch.Consumed {
		if d.SourceRecipeID == nil || *d.SourceRecipeID != rec.ID {
			continue
		}
		price, err := r.catalog.Price(ctx, d.ItemID, item.PricePurchase)
		if err != nil {
			return err
		}
		d.UnitInputPrice = price
	}
	return nil
}

func (r *Resolver) ingredientsAllowed(ctx context.Context, rec *recipe.Recipe) bool {
	if r.veto == nil {
		return true
	}
	for _, m := range rec.Materials {
		if !r.veto.AllowIngredient(ctx, m.ItemID) {
			return false
		}
	}
	return true
}

// commitBatch attempts to persist the synthesized batch. An availability
// conflict from the store advances the failing item's recipe index and
// retries the whole commit; running out of candidates aborts the resolution.
func (r *Resolver) commitBatch(ctx context.Context, res *resolution) error {
	for {
		err := r.store.CommitBatch(ctx, res.batch)
		if err == nil {
			return nil
		}

		itemID, conflict := apperror.AvailabilityConflictItem(err)
		if !conflict {
			return err
		}

		logger.Warn(ctx, "availability changed during batch commit, replanning",
			"item_id", itemID.String(),
		)

		plan, ok := res.plans[itemID]
		if !ok {
			// The item was in stock during planning and was drawn
			// concurrently; it may be producible in its own right.
			if perr := r.planConflicted(ctx, res, itemID); perr != nil {
				return perr
			}
			continue
		}

		plan.index++
		if rerr := r.resolveItem(ctx, res, plan.chain, itemID, plan.shortfall); rerr != nil {
			if isResolutionFailure(rerr) {
				return r.insufficient(ctx, res, itemID, plan.shortfall)
			}
			return rerr
		}
	}
}

// planConflicted starts a resolution for an item that never went short during
// planning but conflicted at commit. Whatever the outcome of the production
// attempt, the conflict never escapes as-is: with no candidate left it
// surfaces as insufficient availability.
func (r *Resolver) planConflicted(ctx context.Context, res *resolution, itemID id.ID) error {
	short, err := r.shortfall(ctx, res, itemID, 0)
	if err != nil {
		return err
	}
	if !short.IsPositive() {
		// Our own read disagrees with the store's enforcement; give up
		// rather than loop on an undiagnosable conflict.
		return r.insufficient(ctx, res, itemID, short.Abs())
	}

	chain, ok := res.chains[itemID]
	if !ok {
		chain = NewChain(itemID)
		res.chains[itemID] = chain
	}
	if rerr := r.resolveItem(ctx, res, chain, itemID, short); rerr != nil {
		if isResolutionFailure(rerr) {
			return r.insufficient(ctx, res, itemID, short)
		}
		return rerr
	}
	return nil
}

// reprice re-evaluates the cost basis of every triggering line whose item the
// batch manufactured and recomputes the document totals.
func (r *Resolver) reprice(ctx context.Context, res *resolution) error {
	produced := make(map[id.ID]bool)
	for _, d := range res.batch.Produced {
		produced[d.ItemID] = true
	}

	for _, line := range res.op.Consumed {
		if !produced[line.ItemID] {
			continue
		}
		price, err := r.catalog.Price(ctx, line.ItemID, item.PricePurchase)
		if err != nil {
			return err
		}
		line.UnitInputPrice = price
	}

	res.op.Recalculate()
	return nil
}

// acceptNegative decides whether a failed item resolution may fall through to
// negative stock: tolerated only when configuration permits it, otherwise the
// failure surfaces as insufficient availability.
func (r *Resolver) acceptNegative(ctx context.Context, res *resolution, err error, itemID id.ID, required, short types.Quantity) (bool, error) {
	if !isResolutionFailure(err) {
		return false, nil
	}
	if r.flags.AllowNegativeAvailability(ctx) {
		logger.Warn(ctx, "accepting negative availability",
			"item_id", itemID.String(),
			"short", short.String(),
		)
		return true, nil
	}
	return false, r.insufficient(ctx, res, itemID, required)
}

func (r *Resolver) insufficient(ctx context.Context, res *resolution, itemID id.ID, required types.Quantity) error {
	available, err := r.catalog.Availability(ctx, res.op.LocationID, res.op.ChildLocationID, itemID)
	if err != nil {
		available = 0
	}
	return apperror.NewInsufficientAvailability(itemID, required.Float64(), available.Float64())
}

func isResolutionFailure(err error) bool {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Code == apperror.CodeRecipeExhausted ||
			appErr.Code == apperror.CodeInsufficientAvail
	}
	return false
}
