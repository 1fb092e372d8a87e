package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fabrica/internal/core/apperror"
	"fabrica/internal/core/id"
	"fabrica/internal/domain/catalogs/location"
	"fabrica/internal/infrastructure/storage/postgres"
)

const locationsTable = "cat_locations"

var locationColumns = []string{
	"id", "code", "name", "deletion_mark", "version", "parent_id", "address",
}

// LocationRepo implements location.Repository.
type LocationRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txm *postgres.TxManager) *LocationRepo {
	return &LocationRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new location.
func (r *LocationRepo) Create(ctx context.Context, loc *location.Location) error {
	q := r.builder.Insert(locationsTable).
		Columns(locationColumns...).
		Values(loc.ID, loc.Code, loc.Name, loc.DeletionMark, loc.Version, loc.ParentID, loc.Address)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// GetByID retrieves a location by id.
func (r *LocationRepo) GetByID(ctx context.Context, locID id.ID) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"id": locID}, locID)
}

// GetByCode retrieves a location by code.
func (r *LocationRepo) GetByCode(ctx context.Context, code string) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"code": code}, code)
}

func (r *LocationRepo) getOne(ctx context.Context, where squirrel.Eq, key any) (*location.Location, error) {
	q := r.builder.Select(locationColumns...).From(locationsTable).Where(where).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var loc location.Location
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &loc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("location", key)
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &loc, nil
}

// Children returns direct child locations of a parent, in code order.
func (r *LocationRepo) Children(ctx context.Context, parentID id.ID) ([]*location.Location, error) {
	q := r.builder.Select(locationColumns...).From(locationsTable).
		Where(squirrel.Eq{"parent_id": parentID}).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var locs []*location.Location
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &locs, sql, args...); err != nil {
		return nil, fmt.Errorf("select children: %w", err)
	}
	return locs, nil
}

var _ location.Repository = (*LocationRepo)(nil)
