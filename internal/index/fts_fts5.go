//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			item_id UNINDEXED,
			doc_id UNINDEXED,
			text,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, itemID, docID, text string) error {
	_, err := tx.Exec(`INSERT INTO items_fts (item_id, doc_id, text) VALUES (?, ?, ?)`,
		itemID, docID, text)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteDoc(tx *sql.Tx, docID string) {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE doc_id = ?`, docID)
}

// Search performs an FTS5 full-text search over item text and returns
// matching items with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.doc_id,
		       d.title,
		       f.item_id,
		       i.group_title,
		       snippet(items_fts, 2, '<b>', '</b>', '...', 32)
		FROM items_fts f
		JOIN documents d ON d.id = f.doc_id
		JOIN items i ON i.doc_id = f.doc_id AND i.id = f.item_id
		WHERE items_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.DocTitle, &r.ItemID, &r.GroupTitle, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
