package migrations

import (
	"github.com/shashiranjanraj/storefront/pkg/migration"
	"github.com/shashiranjanraj/storefront/pkg/queue"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260103000000_create_failed_jobs_table", &CreateFailedJobsTable{})
}

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (m *CreateFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("failed_jobs")
}
