package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type EventStatus string

const (
	EventStatusPending EventStatus = "pending"
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONB: invalid type")
	}
	return json.Unmarshal(bytes, j)
}

// ==================== ENTITIES ====================

// TimelineEvent is the durable audit record of a task lifecycle step.
// The task log itself is never persisted here; only start/termination
// markers with enough metadata to reconstruct an activity feed.
type TimelineEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Type    string      `gorm:"size:100;not null;index" json:"type"`
	Status  EventStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Message string      `gorm:"type:text" json:"message"`
	Meta    JSONB       `gorm:"type:jsonb" json:"meta"`
	TaskID  string      `gorm:"size:64;index" json:"task_id,omitempty"`
}
