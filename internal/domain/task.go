package domain

import (
	"time"

	"gorm.io/gorm"
)

// JobState is the server-side state reported by the manager's job API.
type JobState string

const (
	JobStatePending    JobState = "Pending"
	JobStateProcessing JobState = "Processing"
	JobStateSuccessful JobState = "Successful"
	JobStateFailed     JobState = "Failed"
	JobStateCanceled   JobState = "Canceled"
)

// JobStatus is the console-side progress status of a tracked job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// JobDetails is the job payload returned by the job API.
type JobDetails struct {
	ID    uint     `json:"id"`
	Name  string   `json:"name"`
	State JobState `json:"state"`
	Raw   JSONB    `json:"raw,omitempty"`
}

// JobProgressEntry is the live progress of one submitted job.
type JobProgressEntry struct {
	JobID     uint        `json:"job_id"`
	ClusterID uint        `json:"cluster_id"`
	Name      string      `json:"name"`
	Percent   int         `json:"percent"`
	Status    JobStatus   `json:"status"`
	Payload   *JobDetails `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// JobRecord is the persisted history of a tracked job.
type JobRecord struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	JobID     uint      `gorm:"not null;uniqueIndex" json:"job_id"`
	ClusterID uint      `gorm:"not null;index" json:"cluster_id"`
	Name      string    `gorm:"size:255" json:"name"`
	Status    JobStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Percent   int       `gorm:"default:0" json:"percent"`
	State     JobState  `gorm:"size:20" json:"state"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	Retries   int       `gorm:"default:0" json:"retries"`
}
