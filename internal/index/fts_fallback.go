//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on items.text.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	// Text is already stored in the items table; nothing extra to do.
	return nil
}

func ftsDeleteDoc(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT i.doc_id, d.title, i.id, i.group_title, substr(i.text, 1, 200)
		FROM items i
		JOIN documents d ON d.id = i.doc_id
		WHERE i.text LIKE ?
		ORDER BY d.updated_at DESC, i.position
		LIMIT ?
	`, like, limit)
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
