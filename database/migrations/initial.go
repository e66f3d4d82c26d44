package migrations

import (
	"github.com/shashiranjanraj/lister/pkg/kv"
	"github.com/shashiranjanraj/lister/pkg/migration"
	"github.com/shashiranjanraj/lister/pkg/queue"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260301000000_create_kv_records_table", &CreateKVRecordsTable{})
	migration.Register("20260301000001_create_failed_jobs_table", &CreateFailedJobsTable{})
}

// -------- 0001: kv_records --------

type CreateKVRecordsTable struct{}

func (m *CreateKVRecordsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&kv.Record{})
}

func (m *CreateKVRecordsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&kv.Record{})
}

// -------- 0002: failed jobs --------

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Up(db *gorm.DB) error {
	return queue.FailedJobsTable(db, true)
}

func (m *CreateFailedJobsTable) Down(db *gorm.DB) error {
	return queue.FailedJobsTable(db, false)
}
