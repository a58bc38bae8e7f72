package domain

import (
	"time"

	"gorm.io/gorm"
)

type EventStatus string

const (
	EventStatusPending EventStatus = "pending"
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// Wizard and job timeline event types
const (
	EventTypeWizardStarted   = "WIZARD_STARTED"
	EventTypeServiceAdded    = "SERVICE_ADDED"
	EventTypeServiceRemoved  = "SERVICE_REMOVED"
	EventTypeServiceConflict = "SERVICE_CONFLICT"
	EventTypeCommandSubmit   = "COMMAND_SUBMITTED"
	EventTypeJobFinished     = "JOB_FINISHED"
	EventTypeJobRetried      = "JOB_RETRIED"
)

const (
	ResourceTypeWizard = "wizard"
	ResourceTypeJob    = "job"
)

type TimelineEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Type         string      `gorm:"size:100;not null;index" json:"type"`
	Status       EventStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Message      string      `gorm:"type:text" json:"message"`
	Meta         JSONB       `gorm:"type:jsonb" json:"meta"`
	ResourceID   string      `gorm:"size:64;index" json:"resource_id,omitempty"`
	ResourceType string      `gorm:"size:100;index" json:"resource_type"`
}
