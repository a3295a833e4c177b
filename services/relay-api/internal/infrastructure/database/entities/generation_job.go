package entities

import (
	"time"

	"gorm.io/datatypes"
)

// JobParams is the request payload stored with a job.
type JobParams struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	InputMediaID string `json:"input_media_id,omitempty"`
}

// GenerationJob is the persisted job record. It doubles as the work queue.
type GenerationJob struct {
	ID            string                        `gorm:"primaryKey;size:64"`
	UserID        string                        `gorm:"size:128;not null"`
	Kind          string                        `gorm:"size:32;not null"`
	Status        string                        `gorm:"size:16;not null"`
	Params        datatypes.JSONType[JobParams] `gorm:"type:jsonb"`
	ResultMediaID string                        `gorm:"size:64"`
	ErrorMessage  string                        `gorm:"type:text"`
	Attempts      int                           `gorm:"not null"`
	AvailableAt   time.Time
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name.
func (GenerationJob) TableName() string { return "generation_jobs" }
