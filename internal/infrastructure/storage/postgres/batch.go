package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BatchInserter bulk-inserts rows with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice inserts rows in the current transaction. Each row holds
// values in columns order; decimal values are converted for the binary
// protocol, so rows may carry quantities and money as they are.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("copy into %s: row has %d values for %d columns", table, len(row), len(columns))
		}
	}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(copyRows(rows)))
}

func copyRows(rows [][]any) [][]any {
	for _, row := range rows {
		for i, v := range row {
			switch d := v.(type) {
			case decimal.Decimal:
				row[i] = Numeric(d)
			case *decimal.Decimal:
				if d != nil {
					row[i] = Numeric(*d)
				}
			}
		}
	}
	return rows
}
