package resolve

import (
	"fabrica/internal/core/id"
)

// MaxDepth bounds how many substitution levels one production chain may use.
const MaxDepth = 5

// Chain is the per-final-product bookkeeping of one resolution: how deep the
// substitution went and which recipes were already applied. One chain is
// created per top-level short item and shared by every nested call it spawns.
//
// Depth only grows. Backtracking removes a recipe's batch lines but keeps the
// recipe in the list, so a failed candidate is never retried for the same
// final product.
type Chain struct {
	FinalProductID id.ID
	Depth          int

	recipes []id.ID
}

// NewChain starts bookkeeping for a top-level short item.
func NewChain(finalProductID id.ID) *Chain {
	return &Chain{FinalProductID: finalProductID}
}

// Contains reports whether the recipe was already applied in this chain.
func (c *Chain) Contains(recipeID id.ID) bool {
	for _, r := range c.recipes {
		if r == recipeID {
			return true
		}
	}
	return false
}

// Push records a recipe application and deepens the chain.
func (c *Chain) Push(recipeID id.ID) {
	c.recipes = append(c.recipes, recipeID)
	c.Depth++
}

// Exhausted reports whether the chain may not grow further.
func (c *Chain) Exhausted() bool {
	return c.Depth >= MaxDepth
}
