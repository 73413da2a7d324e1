package models

import (
	"encoding/json"
	"time"
)

// Domain models matching the database schema in db/migrations/*/0001_init.sql

// User is a chat user known to the bot. ID is the Telegram user id.
type User struct {
	ID           int64  `json:"id" db:"id"`
	FirstName    string `json:"first_name" db:"first_name"`
	LastName     string `json:"last_name,omitempty" db:"last_name"`
	Username     string `json:"username,omitempty" db:"username"`
	LanguageCode string `json:"language_code,omitempty" db:"language_code"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
}

// Staff is an HR account allowed to use the admin API.
type Staff struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	Updated      int64  `json:"updated" db:"updated"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
}

// Session is the per-user conversation pointer. Flags caches branch answers
// that are already stored on the draft.
type Session struct {
	UserID  int64           `json:"user_id" db:"user_id"`
	Step    string          `json:"step" db:"step"`
	DraftID int64           `json:"draft_id,omitempty" db:"draft_id"`
	Lang    string          `json:"lang,omitempty" db:"lang"`
	Flags   map[string]bool `json:"flags,omitempty" db:"flags"`
	Updated int64           `json:"updated" db:"updated"`
}

// Flag reports a branch flag and whether it has been recorded.
func (s *Session) Flag(name string) (bool, bool) {
	if s == nil || s.Flags == nil {
		return false, false
	}
	v, ok := s.Flags[name]
	return v, ok
}

// SetFlag records a branch flag.
func (s *Session) SetFlag(name string, v bool) {
	if s.Flags == nil {
		s.Flags = make(map[string]bool)
	}
	s.Flags[name] = v
}

// Template is a versioned prompt template used for screening.
type Template struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty" db:"schema_version"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}

// Schema is a versioned JSON schema for model output.
type Schema struct {
	ID          int64  `json:"id" db:"id"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

// Job statuses
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobRetry   = "retry"
	JobDone    = "done"
	JobFailed  = "failed"
)

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
