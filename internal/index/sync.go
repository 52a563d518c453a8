package index

import (
	"encoding/json"
	"log/slog"

	"github.com/mjelva/tavle/internal/checksum"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/storage"
)

// Sync walks the data directory and brings the index up to date:
//   - new/changed document files are decoded and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}

		data, err := store.Read(storage.DocPath(m.ID))
		if err != nil {
			logger.Warn("sync: read failed", slog.String("doc_id", m.ID), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.ID, data); err != nil {
			logger.Warn("sync: index failed", slog.String("doc_id", m.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("doc_id", m.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteDocument(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("doc_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("doc_id", id))
			}
		}
	}

	return nil
}

// indexFile decodes a document file and upserts it into the DB. The
// path-derived id wins over any embedded one: the file location is the
// document's identity, and a renamed file must not resurrect its old id.
func indexFile(db *DB, id string, data []byte) error {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if id != "" {
		doc.ID = id
	}
	return db.UpsertDocument(&doc, checksum.Sum(data))
}
