package index

import (
	"fmt"
	"time"

	"github.com/mjelva/tavle/internal/models"
)

// DocRow represents a row in the documents table.
type DocRow struct {
	ID        string
	Title     string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one item-level search hit.
type SearchResult struct {
	DocID      string `json:"docId"`
	DocTitle   string `json:"docTitle"`
	ItemID     string `json:"itemId"`
	GroupTitle string `json:"groupTitle"`
	Snippet    string `json:"snippet"`
}

// UpsertDocument replaces a document row and all its item rows within a
// transaction. Item rows keep group order so search hits can point back
// into the tree.
func (db *DB) UpsertDocument(doc *models.Document, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO documents (id, title, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, checksum, updated)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// Replace items: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM items WHERE doc_id = ?`, doc.ID)
	ftsDeleteDoc(tx, doc.ID)

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, doc_id, group_id, group_title, type, text, completed, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare item insert: %w", err)
	}
	defer stmt.Close()

	for gi := range doc.Groups {
		g := &doc.Groups[gi]
		for pos, it := range g.Items {
			if _, err := stmt.Exec(it.ID, doc.ID, g.ID, g.Title, string(it.Type), it.Text, it.Completed, pos); err != nil {
				return fmt.Errorf("index: insert item: %w", err)
			}
			if err := ftsUpsert(tx, it.ID, doc.ID, it.Text); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document and all its item rows.
func (db *DB) DeleteDocument(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteDoc(tx, id)
	_, _ = tx.Exec(`DELETE FROM items WHERE doc_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM documents WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string
// if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListDocuments returns paginated document rows plus the total count.
// sort is one of "updated" (default, newest first) or "title".
func (db *DB) ListDocuments(limit, offset int, sort string) ([]DocRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	order := "updated_at DESC"
	if sort == "title" {
		order = "title COLLATE NOCASE ASC"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, checksum, updated_at
		FROM documents
		ORDER BY `+order+`
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocRow
	for rows.Next() {
		var r DocRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns every indexed document id with its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
