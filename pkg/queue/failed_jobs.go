package queue

import (
	"context"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// FailedJobRecord is a row in failed_jobs. The table is created by the
// schema migrations.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobType  string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"not null"`
}

func (FailedJobRecord) TableName() string { return "failed_jobs" }

var failedJobDB atomic.Pointer[gorm.DB]

// UseDB persists failed jobs to db in addition to the in-memory list.
// Pass nil to stop persisting.
func UseDB(db *gorm.DB) { failedJobDB.Store(db) }

func (m *Manager) persistFailed(ctx context.Context, typeName string, payload []byte, lastErr error, attempts int) {
	now := time.Now()
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}

	m.mu.Lock()
	m.failed = append(m.failed, FailedJob{
		Type: typeName, Payload: payload, Err: lastErr, FailedAt: now, Attempts: attempts,
	})
	m.mu.Unlock()

	db := failedJobDB.Load()
	if db == nil {
		return
	}

	record := FailedJobRecord{
		JobType:  typeName,
		Payload:  string(payload),
		Error:    msg,
		Attempts: attempts,
		FailedAt: now,
	}
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&record).Error; err != nil {
		logger.Error("queue: persist failed job", "type", typeName, "error", err)
	}
}
