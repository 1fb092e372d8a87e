package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/core/types"
	"fabrica/internal/domain/catalogs/recipe"
	"fabrica/internal/infrastructure/storage/postgres"
)

const (
	recipesTable     = "cat_recipes"
	recipeLinesTable = "cat_recipe_lines"
)

// Recipe lines live in one table; role tells materials from products.
const (
	roleMaterial = "material"
	roleProduct  = "product"
)

// RecipeRepo implements recipe.Repository.
type RecipeRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewRecipeRepo creates a new recipe repository.
func NewRecipeRepo(txm *postgres.TxManager) *RecipeRepo {
	return &RecipeRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a recipe with its lines.
func (r *RecipeRepo) Create(ctx context.Context, rec *recipe.Recipe) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.builder.Insert(recipesTable).
			Columns("id", "code", "name", "deletion_mark", "version").
			Values(rec.ID, rec.Code, rec.Name, rec.DeletionMark, rec.Version)

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}

		return r.insertLines(ctx, rec)
	})
}

// Update rewrites the recipe header and replaces its lines.
func (r *RecipeRepo) Update(ctx context.Context, rec *recipe.Recipe) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		prevVersion := rec.Version
		rec.Touch()

		q := r.builder.Update(recipesTable).
			Set("code", rec.Code).
			Set("name", rec.Name).
			Set("deletion_mark", rec.DeletionMark).
			Set("version", rec.Version).
			Where(squirrel.Eq{"id": rec.ID, "version": prevVersion})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update recipe: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperror.NewConcurrentModification("recipe", rec.ID.String())
		}

		del := r.builder.Delete(recipeLinesTable).Where(squirrel.Eq{"recipe_id": rec.ID})
		sql, args, err = del.ToSql()
		if err != nil {
			return fmt.Errorf("build delete lines: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("delete recipe lines: %w", err)
		}

		return r.insertLines(ctx, rec)
	})
}

func (r *RecipeRepo) insertLines(ctx context.Context, rec *recipe.Recipe) error {
	if len(rec.Materials)+len(rec.Products) == 0 {
		return nil
	}

	q := r.builder.Insert(recipeLinesTable).
		Columns("line_id", "recipe_id", "role", "line_no", "item_id", "ratio")

	for _, l := range rec.Materials {
		q = q.Values(l.LineID, rec.ID, roleMaterial, l.LineNo, l.ItemID, l.Ratio)
	}
	for _, l := range rec.Products {
		q = q.Values(l.LineID, rec.ID, roleProduct, l.LineNo, l.ItemID, l.Ratio)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert recipe lines: %w", err)
	}
	return nil
}

// GetByID retrieves a recipe with its lines.
func (r *RecipeRepo) GetByID(ctx context.Context, recipeID id.ID) (*recipe.Recipe, error) {
	q := r.builder.Select("id", "code", "name", "deletion_mark", "version").
		From(recipesTable).
		Where(squirrel.Eq{"id": recipeID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec recipe.Recipe
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("recipe", recipeID.String())
		}
		return nil, fmt.Errorf("get recipe: %w", err)
	}

	if err := r.loadLines(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ProducingItem returns recipes producing the item, in code order.
// The order is stable across calls; the resolver's resumable trial index
// depends on it.
func (r *RecipeRepo) ProducingItem(ctx context.Context, itemID id.ID) ([]*recipe.Recipe, error) {
	q := r.builder.Select("r.id", "r.code", "r.name", "r.deletion_mark", "r.version").
		From(recipesTable + " r").
		Join(recipeLinesTable + " l ON l.recipe_id = r.id").
		Where(squirrel.Eq{
			"l.role":          roleProduct,
			"l.item_id":       itemID,
			"r.deletion_mark": false,
		}).
		OrderBy("r.code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var recs []*recipe.Recipe
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &recs, sql, args...); err != nil {
		return nil, fmt.Errorf("select recipes: %w", err)
	}

	for _, rec := range recs {
		if err := r.loadLines(ctx, rec); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

type recipeLineRow struct {
	LineID id.ID          `db:"line_id"`
	Role   string         `db:"role"`
	LineNo int            `db:"line_no"`
	ItemID id.ID          `db:"item_id"`
	Ratio  types.Quantity `db:"ratio"`
}

func (r *RecipeRepo) loadLines(ctx context.Context, rec *recipe.Recipe) error {
	q := r.builder.Select("line_id", "role", "line_no", "item_id", "ratio").
		From(recipeLinesTable).
		Where(squirrel.Eq{"recipe_id": rec.ID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []recipeLineRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select recipe lines: %w", err)
	}

	rec.Materials = rec.Materials[:0]
	rec.Products = rec.Products[:0]
	for _, row := range rows {
		line := recipe.Line{
			LineID: row.LineID,
			LineNo: row.LineNo,
			ItemID: row.ItemID,
			Ratio:  row.Ratio,
		}
		if row.Role == roleProduct {
			rec.Products = append(rec.Products, line)
		} else {
			rec.Materials = append(rec.Materials, line)
		}
	}
	return nil
}

var _ recipe.Repository = (*RecipeRepo)(nil)
