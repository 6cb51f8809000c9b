package history

import (
	"bytes"
	"log/slog"

	"github.com/starford/fitrunner/internal/checksum"
	"github.com/starford/fitrunner/internal/storage"
)

// Sync walks the history directory and brings the index up to date:
//   - new/changed record files are upserted from their file name
//   - records removed from disk are deleted from the index
func Sync(db Index, store storage.Provider, logger *slog.Logger) error {
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
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.Delete(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile upserts the record named rel. Counts and timestamp come from
// the file name; the body only contributes its page count and checksum.
func indexFile(db Index, rel string, data []byte) (Record, error) {
	r, err := ParseRecordFile(rel)
	if err != nil {
		return Record{}, err
	}
	r.PageCount = bytes.Count(data, []byte("<result>"))
	r.Checksum = checksum.Sum(data)
	return r, db.Upsert(r)
}
