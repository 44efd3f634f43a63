// Package lot_repo provides the PostgreSQL lot ledger.
package lot_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const lotsTable = "inventory_lots"

var lotColumns = postgres.ExtractDBColumns[lot.Lot]()

// LotRepo implements lot.Repository.
type LotRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ lot.Repository = (*LotRepo)(nil)

func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// listQuery selects the FIFO queue of a pair. lock adds FOR UPDATE so
// concurrent sales on the same pair queue behind each other.
func (r *LotRepo) listQuery(tenantID string, productID id.ID, locationID *id.ID, lock bool) (string, []any, error) {
	where := squirrel.Eq{"tenant_id": tenantID, "product_id": productID, "location_id": nil}
	if locationID != nil {
		where["location_id"] = *locationID
	}

	q := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(where).
		OrderBy("created_at", "id")
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	return q.ToSql()
}

// ListOldestFirst implements lot.Repository.
func (r *LotRepo) ListOldestFirst(ctx context.Context, tenantID string, productID id.ID, locationID *id.ID) ([]lot.Lot, error) {
	sql, args, err := r.listQuery(tenantID, productID, locationID, r.txManager.GetTx(ctx) != nil)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lots []lot.Lot
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}
	return lots, nil
}

// decrementSQL only matches while the lot still holds amount.
const decrementSQL = `
	UPDATE inventory_lots
	SET qty_remaining = qty_remaining - $1
	WHERE id = $2 AND tenant_id = $3 AND qty_remaining >= $1`

// Decrement implements lot.Repository.
func (r *LotRepo) Decrement(ctx context.Context, tenantID string, lotID id.ID, amount types.Quantity) error {
	if !amount.IsPositive() {
		return apperror.NewInvalidQuantity(lotID.String(), amount.String())
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, decrementSQL, amount, lotID, tenantID)
	if err != nil {
		return fmt.Errorf("decrement lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewInvalidQuantity(lotID.String(), amount.String())
	}
	return nil
}

// Create implements lot.Repository.
func (r *LotRepo) Create(ctx context.Context, l *lot.Lot) error {
	sql, args, err := r.builder.Insert(lotsTable).
		Columns(lotColumns...).
		Values(postgres.StructValues(l)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewValidation("unknown product or location").
				WithDetail("constraint", postgres.ConstraintName(err))
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// Get implements lot.Repository.
func (r *LotRepo) Get(ctx context.Context, tenantID string, lotID id.ID) (*lot.Lot, error) {
	sql, args, err := r.builder.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"id": lotID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l lot.Lot
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &l, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &l, nil
}
