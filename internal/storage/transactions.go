package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/manav03panchal/fintrack/internal/model"
)

// UpsertTransaction inserts tx or replaces every column of the row with the same id.
func (s *Store) UpsertTransaction(ctx context.Context, tx model.Transaction) error {
	return s.write(ctx, "upsert", "transaction", tx.ID,
		`INSERT OR REPLACE INTO transactions (id, description, amount, type, category, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Description, tx.Amount, string(tx.Type), tx.Category, tx.Date)
}

// DeleteTransaction removes the transaction with the given id.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.write(ctx, "delete", "transaction", id,
		"DELETE FROM transactions WHERE id = ?", id)
}

// ListTransactions returns every transaction, newest date first.
// Errors are logged and yield an empty list.
func (s *Store) ListTransactions(ctx context.Context) []model.Transaction {
	db, err := s.Open(ctx)
	if err != nil {
		s.readFailure("list transactions", err)
		return []model.Transaction{}
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, description, amount, type, category, date
		 FROM transactions ORDER BY date DESC, rowid DESC`)
	if err != nil {
		s.readFailure("list transactions", err)
		return []model.Transaction{}
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var (
			tx                        model.Transaction
			desc, typ, category, date sql.NullString
			amount                    any
		)
		if err := rows.Scan(&tx.ID, &desc, &amount, &typ, &category, &date); err != nil {
			s.readFailure("scan transaction", err)
			continue
		}
		tx.Description = desc.String
		tx.Amount = model.CoerceAmount(amount)
		tx.Type = model.TxType(typ.String)
		tx.Category = category.String
		tx.Date = date.String
		tx.ApplyDefaults(time.Time{})
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		s.readFailure("list transactions", err)
	}
	return txs
}

// CountTransactions returns the number of transaction rows. Unlike list
// reads it reports errors, since callers use it to decide on migration.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	return s.count(ctx, "transactions")
}
