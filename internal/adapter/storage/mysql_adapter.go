package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/strafford/commissary/internal/core/domain"
	"github.com/strafford/commissary/internal/port"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var acct domain.Account
	err := m.db.QueryRowContext(ctx, `
		SELECT id, resident_id, balance, is_deleted
		FROM accounts WHERE id = ?`, accountID,
	).Scan(&acct.ID, &acct.ResidentID, &acct.Balance, &acct.IsDeleted)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}

	return &acct, nil
}

func (m *MySQLAdapter) GetItemByUPC(ctx context.Context, upc string) (*domain.Item, error) {
	var item domain.Item
	err := m.db.QueryRowContext(ctx, `
		SELECT id, upc, name, unit_price, quantity, version
		FROM items WHERE upc = ?`, upc,
	).Scan(&item.ID, &item.UPC, &item.Name, &item.UnitPrice, &item.QuantityOnHand, &item.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	return &item, nil
}

// CommitTransaction writes one posting's unit inside a single database
// transaction. The balance update is a compare-and-swap against the
// balance the engine read, and every item decrement is guarded by
// quantity >= requested, so concurrent postings cannot double-spend
// funds or oversell stock.
func (m *MySQLAdapter) CommitTransaction(ctx context.Context, unit domain.TransactionUnit) (*domain.LedgerEntry, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = ?
		WHERE id = ? AND balance = ? AND is_deleted = 0`,
		unit.NewBalance, unit.AccountID, unit.OldBalance,
	)
	if err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, port.ErrConflict
	}

	entry := unit.Entry
	result, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (account_id, resident_id, kind, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.AccountID, entry.ResidentID, entry.Kind, entry.Amount, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	entry.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ledger entry id: %w", err)
	}

	for _, line := range unit.Lines {
		result, err = tx.ExecContext(ctx, `
			UPDATE items
			SET quantity = quantity - ?, version = version + 1
			WHERE id = ? AND quantity >= ?`,
			line.Quantity, line.Item.ID, line.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement item %s: %w", line.Item.UPC, err)
		}
		rows, _ = result.RowsAffected()
		if rows == 0 {
			return nil, port.ErrConflict
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO line_items (ledger_entry_id, item_id, quantity)
			VALUES (?, ?, ?)`,
			entry.ID, line.Item.ID, line.Quantity,
		); err != nil {
			return nil, fmt.Errorf("insert line item: %w", err)
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO inventory_movements (item_id, quantity, direction)
			VALUES (?, ?, ?)`,
			line.Item.ID, line.Quantity, domain.MovementRemove,
		); err != nil {
			return nil, fmt.Errorf("insert inventory movement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &entry, nil
}

func (m *MySQLAdapter) RestockItem(ctx context.Context, upc string, quantity int) (*domain.Item, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET quantity = quantity + ?, version = version + 1
		WHERE upc = ?`,
		quantity, upc,
	)
	if err != nil {
		return nil, fmt.Errorf("restock item: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, &domain.ItemNotFoundError{UPC: upc}
	}

	var item domain.Item
	err = tx.QueryRowContext(ctx, `
		SELECT id, upc, name, unit_price, quantity, version
		FROM items WHERE upc = ?`, upc,
	).Scan(&item.ID, &item.UPC, &item.Name, &item.UnitPrice, &item.QuantityOnHand, &item.Version)
	if err != nil {
		return nil, fmt.Errorf("reread item: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_movements (item_id, quantity, direction)
		VALUES (?, ?, ?)`,
		item.ID, quantity, domain.MovementAdd,
	); err != nil {
		return nil, fmt.Errorf("insert inventory movement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &item, nil
}

func (m *MySQLAdapter) ListEntriesByAccount(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, account_id, resident_id, kind, amount, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ResidentID, &e.Kind, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

func (m *MySQLAdapter) GetEntry(ctx context.Context, entryID int64) (*domain.LedgerEntry, []domain.LineItem, error) {
	var entry domain.LedgerEntry
	err := m.db.QueryRowContext(ctx, `
		SELECT id, account_id, resident_id, kind, amount, created_at
		FROM ledger_entries WHERE id = ?`, entryID,
	).Scan(&entry.ID, &entry.AccountID, &entry.ResidentID, &entry.Kind, &entry.Amount, &entry.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query entry: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, ledger_entry_id, item_id, quantity
		FROM line_items WHERE ledger_entry_id = ?`, entryID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var lines []domain.LineItem
	for rows.Next() {
		var l domain.LineItem
		if err := rows.Scan(&l.ID, &l.LedgerEntryID, &l.ItemID, &l.Quantity); err != nil {
			return nil, nil, fmt.Errorf("scan line item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate line items: %w", err)
	}

	return &entry, lines, nil
}

var _ port.DatabaseRepository = (*MySQLAdapter)(nil)
