// Package migration runs and tracks schema migrations.
//
// Migrations register themselves from database/migrations:
//
//	func init() {
//	    migration.Register("20260101000002_create_product_sizes_table", &CreateProductSizesTable{})
//	}
//
// and are driven from the CLI:
//
//	storefront migrate             // run all pending
//	storefront migrate:rollback    // roll back the last batch
//	storefront migrate:status
package migration

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// Migration is the interface every migration must implement.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "storefront_migrations" }

// ------------------- Registry -------------------

type registeredMigration struct {
	name string
	m    Migration
}

var (
	registryMu sync.RWMutex
	registry   []registeredMigration
)

// Register adds a migration. name is timestamp-prefixed and decides the run
// order; registering the same name twice panics.
func Register(name string, m Migration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, reg := range registry {
		if reg.name == name {
			panic(fmt.Sprintf("migration: %q registered twice", name))
		}
	}
	registry = append(registry, registeredMigration{name: name, m: m})
}

func sorted() []registeredMigration {
	registryMu.RLock()
	out := append([]registeredMigration(nil), registry...)
	registryMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ------------------- Runner -------------------

// Runner executes and tracks migrations, printing progress to out.
type Runner struct {
	db  *gorm.DB
	out io.Writer
}

func New(db *gorm.DB, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, out: out}
}

// EnsureTable creates the tracking table if it does not exist.
func (r *Runner) EnsureTable() error {
	return r.db.AutoMigrate(&migrationRecord{})
}

func (r *Runner) ran() (map[string]migrationRecord, error) {
	var rows []migrationRecord
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]migrationRecord, len(rows))
	for _, rec := range rows {
		out[rec.Name] = rec
	}
	return out, nil
}

// Run executes all pending migrations as one batch and returns how many ran.
func (r *Runner) Run() (int, error) {
	if err := r.EnsureTable(); err != nil {
		return 0, fmt.Errorf("migration: ensure table: %w", err)
	}

	done, err := r.ran()
	if err != nil {
		return 0, fmt.Errorf("migration: fetch ran: %w", err)
	}

	var pending []registeredMigration
	for _, reg := range sorted() {
		if _, ok := done[reg.name]; !ok {
			pending = append(pending, reg)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return 0, nil
	}

	batch := r.nextBatch()
	for i, reg := range pending {
		fmt.Fprintf(r.out, "  ▶ Migrating: %s\n", reg.name)

		if err := reg.m.Up(r.db); err != nil {
			return i, fmt.Errorf("migration: %s up: %w", reg.name, err)
		}
		if err := r.db.Create(&migrationRecord{Name: reg.name, Batch: batch}).Error; err != nil {
			return i, fmt.Errorf("migration: record %s: %w", reg.name, err)
		}

		fmt.Fprintf(r.out, "  ✅ Migrated:  %s\n", reg.name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return len(pending), nil
}

// Rollback reverses all migrations from the most recent batch.
func (r *Runner) Rollback() (int, error) {
	if err := r.EnsureTable(); err != nil {
		return 0, fmt.Errorf("migration: ensure table: %w", err)
	}

	last := r.nextBatch() - 1
	if last == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return 0, nil
	}

	var records []migrationRecord
	if err := r.db.Where("batch = ?", last).Order("name desc").Find(&records).Error; err != nil {
		return 0, err
	}

	regMap := make(map[string]Migration)
	for _, reg := range sorted() {
		regMap[reg.name] = reg.m
	}

	for i, rec := range records {
		m, ok := regMap[rec.Name]
		if !ok {
			return i, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}

		fmt.Fprintf(r.out, "  ◀ Rolling back: %s\n", rec.Name)
		if err := m.Down(r.db); err != nil {
			return i, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		if err := r.db.Delete(&rec).Error; err != nil {
			return i, err
		}
		fmt.Fprintf(r.out, "  ✅ Rolled back:  %s\n", rec.Name)
	}

	logger.Info("migration: rolled back", "count", len(records), "batch", last)
	return len(records), nil
}

// StatusRow is one line of Status output. Batch is 0 for pending migrations.
type StatusRow struct {
	Name  string
	Ran   bool
	Batch int
}

// Status lists every registered migration and prints a table to out.
func (r *Runner) Status() ([]StatusRow, error) {
	if err := r.EnsureTable(); err != nil {
		return nil, err
	}
	done, err := r.ran()
	if err != nil {
		return nil, err
	}

	var rows []StatusRow
	fmt.Fprintf(r.out, "%-60s  %-8s  %s\n", "Migration", "Status", "Batch")
	for _, reg := range sorted() {
		row := StatusRow{Name: reg.name}
		if rec, ok := done[reg.name]; ok {
			row.Ran, row.Batch = true, rec.Batch
			fmt.Fprintf(r.out, "%-60s  %-8s  %d\n", reg.name, "Ran", rec.Batch)
		} else {
			fmt.Fprintf(r.out, "%-60s  %-8s  -\n", reg.name, "Pending")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Runner) nextBatch() int {
	var maxBatch struct{ Max int }
	r.db.Model(&migrationRecord{}).Select("COALESCE(MAX(batch), 0) as max").Scan(&maxBatch)
	return maxBatch.Max + 1
}
