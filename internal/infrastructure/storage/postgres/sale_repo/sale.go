// Package sale_repo provides the PostgreSQL invoice store.
package sale_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/costing"
	"tillpoint/internal/domain/sale"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable    = "sale_invoices"
	linesTable       = "sale_line_items"
	lineLotsTable    = "sale_line_lots"
	createOnConflict = "ON CONFLICT (tenant_id, invoice_no) DO NOTHING RETURNING id"
)

var (
	invoiceColumns = postgres.ExtractDBColumns[sale.Invoice]()
	lineColumns    = postgres.ExtractDBColumns[sale.LineItem]()
	lineLotColumns = []string{"line_id", "lot_id", "tenant_id", "seq", "quantity", "unit_cost"}
)

// consumptionRow is a sale_line_lots row.
type consumptionRow struct {
	LineID   id.ID          `db:"line_id"`
	LotID    id.ID          `db:"lot_id"`
	Seq      int            `db:"seq"`
	Quantity types.Quantity `db:"quantity"`
	UnitCost types.Money    `db:"unit_cost"`
}

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

var _ sale.Repository = (*SaleRepo)(nil)

func NewSaleRepo(txManager *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindIDByInvoiceNo implements sale.Repository.
func (r *SaleRepo) FindIDByInvoiceNo(ctx context.Context, tenantID, invoiceNo string) (id.ID, error) {
	sql, args, err := r.builder.Select("id").
		From(invoicesTable).
		Where(squirrel.Eq{"tenant_id": tenantID, "invoice_no": invoiceNo}).
		ToSql()
	if err != nil {
		return id.ID{}, fmt.Errorf("build query: %w", err)
	}

	var invoiceID id.ID
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&invoiceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return id.ID{}, apperror.NewNotFound("invoice", invoiceNo)
		}
		return id.ID{}, fmt.Errorf("find invoice: %w", err)
	}
	return invoiceID, nil
}

func (r *SaleRepo) createHeaderQuery(inv *sale.Invoice) (string, []any, error) {
	return r.builder.Insert(invoicesTable).
		Columns(invoiceColumns...).
		Values(postgres.StructValues(inv)...).
		Suffix(createOnConflict).
		ToSql()
}

// CreateHeader implements sale.Repository. A conflicting concurrent insert
// blocks on the unique index until the other transaction ends.
func (r *SaleRepo) CreateHeader(ctx context.Context, inv *sale.Invoice) (bool, error) {
	sql, args, err := r.createHeaderQuery(inv)
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	var insertedID id.ID
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&insertedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert invoice header: %w", err)
	}
	return true, nil
}

// InsertLine implements sale.Repository.
func (r *SaleRepo) InsertLine(ctx context.Context, line *sale.LineItem) error {
	sql, args, err := r.builder.Insert(linesTable).
		Columns(lineColumns...).
		Values(postgres.StructValues(line)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewValidation("unknown product").
				WithDetail("product_id", line.ProductID.String())
		}
		return fmt.Errorf("insert line: %w", err)
	}

	return r.insertConsumptions(ctx, line)
}

func (r *SaleRepo) insertConsumptions(ctx context.Context, line *sale.LineItem) error {
	if len(line.Consumptions) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(line.Consumptions))
		for i, c := range line.Consumptions {
			rows = append(rows, []any{
				line.ID, c.LotID, line.TenantID, i + 1,
				c.Quantity, c.UnitCost,
			})
		}
		inserter := postgres.NewBatchInserter(r.txManager)
		if _, err := inserter.CopyFromSlice(ctx, lineLotsTable, lineLotColumns, rows); err != nil {
			return fmt.Errorf("copy line lots: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(lineLotsTable).Columns(lineLotColumns...)
	for i, c := range line.Consumptions {
		q = q.Values(line.ID, c.LotID, line.TenantID, i+1, c.Quantity, c.UnitCost)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert line lots: %w", err)
	}
	return nil
}

// FinalizeTotals implements sale.Repository.
func (r *SaleRepo) FinalizeTotals(ctx context.Context, inv *sale.Invoice) error {
	sql, args, err := r.builder.Update(invoicesTable).
		Set("total_cost", inv.TotalCost).
		Set("total_profit", inv.TotalProfit).
		Set("status", inv.Status).
		Set("finalized_at", inv.FinalizedAt).
		Where(squirrel.Eq{"id": inv.ID, "tenant_id": inv.TenantID, "status": sale.StatusPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("finalize invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("invoice", inv.ID.String())
	}
	return nil
}

// Get implements sale.Repository.
func (r *SaleRepo) Get(ctx context.Context, tenantID string, invoiceID id.ID) (*sale.Invoice, error) {
	q := r.txManager.GetQuerier(ctx)

	sql, args, err := r.builder.Select(invoiceColumns...).
		From(invoicesTable).
		Where(squirrel.Eq{"id": invoiceID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var inv sale.Invoice
	if err := pgxscan.Get(ctx, q, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("invoice", invoiceID.String())
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	sql, args, err = r.builder.Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID, "tenant_id": tenantID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &inv.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	if len(inv.Lines) == 0 {
		return &inv, nil
	}

	lineIDs := make([]id.ID, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lineIDs = append(lineIDs, l.ID)
	}
	sql, args, err = r.builder.Select("line_id", "lot_id", "seq", "quantity", "unit_cost").
		From(lineLotsTable).
		Where(squirrel.Eq{"line_id": lineIDs, "tenant_id": tenantID}).
		OrderBy("line_id", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []consumptionRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select line lots: %w", err)
	}
	attachConsumptions(&inv, rows)
	return &inv, nil
}

// attachConsumptions distributes rows (ordered by line, seq) onto their lines.
func attachConsumptions(inv *sale.Invoice, rows []consumptionRow) {
	byLine := make(map[id.ID][]costing.Consumption, len(inv.Lines))
	for _, row := range rows {
		byLine[row.LineID] = append(byLine[row.LineID], costing.Consumption{
			LotID:    row.LotID,
			Quantity: row.Quantity,
			UnitCost: row.UnitCost,
		})
	}
	for i := range inv.Lines {
		inv.Lines[i].Consumptions = byLine[inv.Lines[i].ID]
		if inv.Lines[i].Consumptions == nil {
			inv.Lines[i].Consumptions = []costing.Consumption{}
		}
	}
}
