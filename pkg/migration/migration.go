// Package migration runs ordered, batch-tracked schema migrations over gorm.
//
//	func init() {
//	    migration.Register("20260301000000_create_kv_records_table", &CreateKVRecords{})
//	}
//
// Run from the CLI:
//
//	lister migrate             // run all pending
//	lister migrate:rollback    // rollback last batch
//	lister migrate:status
package migration

import (
	"fmt"
	"sort"
	"time"

	"github.com/shashiranjanraj/lister/pkg/logger"
	"gorm.io/gorm"
)

// Migration is the interface every migration must implement.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// Entry pairs a migration with its timestamp-prefixed name.
type Entry struct {
	Name      string
	Migration Migration
}

// Status describes one entry for migrate:status.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "lister_migrations" }

var registry []Entry

// Register adds a migration to the global registry. Call it from an init()
// in each migration file.
func Register(name string, m Migration) {
	registry = append(registry, Entry{Name: name, Migration: m})
}

// Registered returns a copy of the global registry sorted by name.
func Registered() []Entry {
	out := append([]Entry(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Runner executes and tracks migrations.
type Runner struct {
	db      *gorm.DB
	entries []Entry
}

// New creates a Runner over the global registry.
func New(db *gorm.DB) *Runner {
	return NewWith(db, Registered())
}

// NewWith creates a Runner over an explicit list of entries.
func NewWith(db *gorm.DB, entries []Entry) *Runner {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Runner{db: db, entries: sorted}
}

func (r *Runner) ensureTable() error {
	if err := r.db.AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	return nil
}

func (r *Runner) ran() (map[string]record, error) {
	var rows []record
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("migration: load history: %w", err)
	}
	out := make(map[string]record, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// Run executes all pending migrations in a single batch and returns the
// names it applied.
func (r *Runner) Run() ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	done, err := r.ran()
	if err != nil {
		return nil, err
	}

	batch := r.lastBatch() + 1
	var applied []string
	for _, e := range r.entries {
		if _, ok := done[e.Name]; ok {
			continue
		}
		logger.Info("migration: running", "name", e.Name, "batch", batch)

		if err := e.Migration.Up(r.db); err != nil {
			return applied, fmt.Errorf("migration: %s up: %w", e.Name, err)
		}
		if err := r.db.Create(&record{Name: e.Name, Batch: batch}).Error; err != nil {
			return applied, fmt.Errorf("migration: record %s: %w", e.Name, err)
		}
		applied = append(applied, e.Name)
	}

	if len(applied) > 0 {
		logger.Info("migration: done", "ran", len(applied), "batch", batch)
	}
	return applied, nil
}

// Rollback reverses every migration of the most recent batch, newest first.
func (r *Runner) Rollback() ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	last := r.lastBatch()
	if last == 0 {
		return nil, nil
	}

	var rows []record
	if err := r.db.Where("batch = ?", last).Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("migration: load batch %d: %w", last, err)
	}

	byName := make(map[string]Migration, len(r.entries))
	for _, e := range r.entries {
		byName[e.Name] = e.Migration
	}

	var reverted []string
	for _, row := range rows {
		m, ok := byName[row.Name]
		if !ok {
			return reverted, fmt.Errorf("migration: cannot rollback %s: not registered", row.Name)
		}
		logger.Info("migration: rolling back", "name", row.Name)

		if err := m.Down(r.db); err != nil {
			return reverted, fmt.Errorf("migration: %s down: %w", row.Name, err)
		}
		if err := r.db.Delete(&row).Error; err != nil {
			return reverted, fmt.Errorf("migration: forget %s: %w", row.Name, err)
		}
		reverted = append(reverted, row.Name)
	}
	return reverted, nil
}

// Status reports every known migration and whether it has run.
func (r *Runner) Status() ([]Status, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}
	done, err := r.ran()
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		row, ok := done[e.Name]
		out = append(out, Status{Name: e.Name, Ran: ok, Batch: row.Batch})
	}
	return out, nil
}

func (r *Runner) lastBatch() int {
	var max struct{ Max int }
	r.db.Model(&record{}).Select("COALESCE(MAX(batch), 0) as max").Scan(&max)
	return max.Max
}
