package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/lister/pkg/logger"
)

// FailedJobRecord is a row of the failed-jobs table.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"not null"`
}

func (FailedJobRecord) TableName() string { return "lister_failed_jobs" }

func (m *Manager) persistFailed(ctx context.Context, job Job, typeName string, lastErr error, attempts int) {
	now := time.Now().UTC()

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: typeName, Job: job, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	m.mu.Unlock()

	if m.db == nil {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error": "could not marshal: %v"}`, err))
	}
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}

	record := FailedJobRecord{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    msg,
		Attempts: attempts,
		FailedAt: now,
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Error("queue: could not persist failed job", "type", typeName, "error", err)
	}
}

// StoredFailures lists the most recent persisted failures, newest first.
func (m *Manager) StoredFailures(ctx context.Context, limit int) ([]FailedJobRecord, error) {
	if m.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var out []FailedJobRecord
	err := m.db.WithContext(ctx).Order("failed_at desc, id desc").Limit(limit).Find(&out).Error
	return out, err
}

// Retry re-dispatches a persisted failure and removes its row.
func (m *Manager) Retry(ctx context.Context, id uint) error {
	if m.db == nil {
		return fmt.Errorf("queue: no failed-job store configured")
	}
	var rec FailedJobRecord
	if err := m.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return fmt.Errorf("queue: failed job %d: %w", id, err)
	}

	env, err := json.Marshal(envelope{Type: rec.JobType, Payload: json.RawMessage(rec.Payload)})
	if err != nil {
		return err
	}
	if err := m.driver.Push(ctx, env); err != nil {
		return err
	}
	return m.db.WithContext(ctx).Delete(&FailedJobRecord{}, rec.ID).Error
}

// FailedJobsTable creates or drops the failed-jobs table.
func FailedJobsTable(db *gorm.DB, create bool) error {
	if create {
		return db.AutoMigrate(&FailedJobRecord{})
	}
	return db.Migrator().DropTable(&FailedJobRecord{})
}
