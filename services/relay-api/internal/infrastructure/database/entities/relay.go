package entities

import "time"

// RelaySession is the persisted chain header.
type RelaySession struct {
	ID           string `gorm:"primaryKey;size:64"`
	OriginatorID string `gorm:"size:128;not null"`
	Title        string `gorm:"type:text"`
	MaxSteps     int    `gorm:"not null"`
	StepCount    int    `gorm:"not null"`
	Status       string `gorm:"size:16;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the table name.
func (RelaySession) TableName() string { return "relay_sessions" }

// RelayStep is a published panel. (session_id, step_number) is unique.
type RelayStep struct {
	ID          string `gorm:"primaryKey;size:64"`
	SessionID   string `gorm:"size:64;not null;uniqueIndex:relay_steps_session_step_uidx,priority:1"`
	StepNumber  int    `gorm:"not null;uniqueIndex:relay_steps_session_step_uidx,priority:2"`
	AuthorID    string `gorm:"size:128;not null"`
	MediaID     string `gorm:"size:64;not null"`
	PromptText  string `gorm:"type:text;not null"`
	Title       string `gorm:"type:text"`
	PublishedAt time.Time
}

// TableName overrides the table name.
func (RelayStep) TableName() string { return "relay_steps" }

// RelayDraft is an unpublished candidate.
type RelayDraft struct {
	ID           string `gorm:"primaryKey;size:64"`
	SessionID    string `gorm:"size:64;not null;index:relay_drafts_session_author_idx,priority:1"`
	AuthorID     string `gorm:"size:128;not null;index:relay_drafts_session_author_idx,priority:2"`
	BasedOnStep  int    `gorm:"column:based_on_step;not null"`
	JobID        string `gorm:"size:64;not null"`
	UserPrompt   string `gorm:"type:text;not null"`
	SystemPrompt string `gorm:"type:text"`
	CreatedAt    time.Time
}

// TableName overrides the table name.
func (RelayDraft) TableName() string { return "relay_drafts" }
