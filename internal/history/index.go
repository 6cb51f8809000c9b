package history

import (
	"time"

	"github.com/starford/fitrunner/internal/models"
)

// Record is one persisted run snapshot. Records are created once and never
// mutated.
type Record struct {
	Path      models.PagePath `json:"path"`
	Timestamp time.Time       `json:"timestamp"`
	Summary   models.Summary  `json:"summary"`
	// PageCount is the number of documents the record covers.
	PageCount int `json:"page_count"`
	// File is the record's path relative to the history directory.
	File     string `json:"file"`
	Checksum string `json:"checksum,omitempty"`
}

// ResultDate is the record's timestamp as used in resultDate parameters.
func (r Record) ResultDate() string {
	return r.Timestamp.Format(models.ResultDateFormat)
}

// PageSummary describes the history of one page.
type PageSummary struct {
	Path    models.PagePath `json:"path"`
	Records int             `json:"records"`
	Latest  string          `json:"latest"`
}

// Index defines the history lookups. Consumers depend on this interface
// rather than *DB.
type Index interface {
	Upsert(r Record) error
	Delete(file string) error
	List(p models.PagePath, limit int) ([]Record, error)
	Get(p models.PagePath, resultDate string) (*Record, error)
	Pages() ([]PageSummary, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ Index = (*DB)(nil)
