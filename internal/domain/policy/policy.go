// Package policy evaluates CEL expressions deciding which items automatic
// production may target or consume. Expressions see the candidate item and
// return a boolean; an empty expression allows everything.
package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"fabrica/internal/core/id"
	"fabrica/internal/domain/catalogs/item"
	"fabrica/pkg/logger"
)

// Engine implements the resolver's veto hooks over two compiled expressions.
//
// Example target expression:
//
//	item.type in ["product", "semi"] && !item.code.startsWith("EXT-")
type Engine struct {
	items item.Reader

	target     cel.Program
	ingredient cel.Program
}

// New compiles the target and ingredient expressions. Either may be empty,
// which compiles to "always allow".
func New(items item.Reader, targetExpr, ingredientExpr string) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create policy environment: %w", err)
	}

	e := &Engine{items: items}

	if e.target, err = compile(env, targetExpr); err != nil {
		return nil, fmt.Errorf("compile target policy: %w", err)
	}
	if e.ingredient, err = compile(env, ingredientExpr); err != nil {
		return nil, fmt.Errorf("compile ingredient policy: %w", err)
	}
	return e, nil
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	if expr == "" {
		return nil, nil
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}
	return env.Program(ast)
}

// AllowTarget reports whether the item may be auto-produced.
func (e *Engine) AllowTarget(ctx context.Context, itemID id.ID) bool {
	return e.allow(ctx, e.target, itemID)
}

// AllowIngredient reports whether the item may be consumed as a substitute
// ingredient.
func (e *Engine) AllowIngredient(ctx context.Context, itemID id.ID) bool {
	return e.allow(ctx, e.ingredient, itemID)
}

// allow is fail-open: a missing item or evaluation error logs a warning and
// does not block the resolution.
func (e *Engine) allow(ctx context.Context, prg cel.Program, itemID id.ID) bool {
	if prg == nil {
		return true
	}

	it, err := e.items.GetByID(ctx, itemID)
	if err != nil || it == nil {
		logger.Warn(ctx, "policy could not load item, allowing",
			"item_id", itemID.String(),
		)
		return true
	}

	out, _, err := prg.Eval(map[string]any{
		"item": map[string]any{
			"id":        it.ID.String(),
			"code":      it.Code,
			"name":      it.Name,
			"type":      string(it.Type),
			"trackLots": it.TrackLots,
		},
	})
	if err != nil {
		logger.Warn(ctx, "policy evaluation failed, allowing",
			"item_id", itemID.String(),
			"error", err.Error(),
		)
		return true
	}

	allowed, ok := out.Value().(bool)
	return ok && allowed
}
