// Tastemap - Taste-Cluster Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastemap

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/tastemap/internal/logging"
	"github.com/tomtom215/tastemap/internal/recommend"
)

// maxConflictRetries bounds retries of catalog writes that lose a DuckDB
// optimistic-concurrency race.
const maxConflictRetries = 3

// UpsertItems adds or replaces catalog items in one transaction. An item
// without an embedding has any stored embedding removed.
func (db *DB) UpsertItems(ctx context.Context, items []recommend.Item) error {
	if len(items) == 0 {
		return nil
	}
	literals := make([]string, len(items))
	for i := range items {
		if len(items[i].Embedding) == 0 {
			continue
		}
		lit, err := vectorLiteral(items[i].Embedding)
		if err != nil {
			return fmt.Errorf("item %d: %w", items[i].ID, err)
		}
		literals[i] = lit
	}

	start := time.Now()
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = db.withReconnect(ctx, func() error {
			return db.upsertItemsTx(ctx, items, literals)
		})
		if !isTransactionConflict(err) {
			break
		}
		logging.Debug().Int("attempt", attempt).Err(err).Msg("Catalog upsert conflicted, retrying")
	}
	record("upsert_items", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert items: %w", err)
	}
	return nil
}

func (db *DB) upsertItemsTx(ctx context.Context, items []recommend.Item, literals []string) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	itemStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO items (id, name, category, producer, active, bias, popularity, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer closeQuietly(itemStmt)

	embStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO item_embeddings (item_id, embedding) VALUES (?, CAST(? AS DOUBLE[]))`)
	if err != nil {
		return err
	}
	defer closeQuietly(embStmt)

	now := db.now().UTC()
	for i := range items {
		it := &items[i]
		if _, err = itemStmt.ExecContext(ctx, it.ID, it.Name, it.Category, it.Producer,
			it.Active, it.Bias, it.Popularity, now); err != nil {
			return fmt.Errorf("item %d: %w", it.ID, err)
		}
		if literals[i] == "" {
			err = deleteItemEmbedding(ctx, tx, it.ID)
		} else {
			_, err = embStmt.ExecContext(ctx, it.ID, literals[i])
		}
		if err != nil {
			return fmt.Errorf("item %d embedding: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

func deleteItemEmbedding(ctx context.Context, tx *sql.Tx, itemID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM item_embeddings WHERE item_id = ?`, itemID)
	return err
}

// CountItems returns the number of catalog items and how many carry an embedding.
func (db *DB) CountItems(ctx context.Context) (items, embedded int, err error) {
	err = db.conn.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM items), (SELECT COUNT(*) FROM item_embeddings)`).Scan(&items, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count items: %w", err)
	}
	return items, embedded, nil
}
