package repository

import (
	"context"
	"errors"

	"github.com/garnizeh/hrbot/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return (nil, nil) when the row does not exist.

// ErrNotEditable is returned when a step commit targets an application that
// is missing or no longer a draft.
var ErrNotEditable = errors.New("application is not an editable draft")

// DraftStore is the persistence contract the wizard depends on.
type DraftStore interface {
	// GetOrCreateDraft returns the user's draft, creating it if absent.
	// created is true only for the call that inserted the row.
	GetOrCreateDraft(ctx context.Context, userID int64) (*models.Application, bool, error)
	Get(ctx context.Context, id int64) (*models.Application, error)
	// UpdateFields writes a partial update to a draft. It reports false when
	// no draft with that id exists.
	UpdateFields(ctx context.Context, id int64, fields models.FieldSet) (bool, error)
	// SetStatus moves id from one status to another and reports false when
	// the current status is not from.
	SetStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type SessionStore interface {
	LoadSession(ctx context.Context, userID int64) (*models.Session, error)
	SaveSession(ctx context.Context, s *models.Session) error
}

// StepCommitter persists a field update and the advanced session atomically.
// It returns ErrNotEditable when draftID is not a draft.
type StepCommitter interface {
	CommitStep(ctx context.Context, draftID int64, fields models.FieldSet, s *models.Session) error
	// DiscardDraft deletes draftID and saves s in one transaction.
	DiscardDraft(ctx context.Context, draftID int64, s *models.Session) error
	// RestartDraft replaces draftID with a fresh draft for s.UserID and saves
	// s pointing at the new draft, in one transaction.
	RestartDraft(ctx context.Context, draftID int64, s *models.Session) (*models.Application, error)
}

type UserRepo interface {
	// UpsertUser inserts or refreshes the profile and reports whether the
	// user was new.
	UpsertUser(ctx context.Context, u *models.User) (bool, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	SetLanguage(ctx context.Context, id int64, lang string) error
}

// ApplicationRepo is the HR-facing read and review side.
type ApplicationRepo interface {
	ListByStatus(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
	SetHRNotes(ctx context.Context, id int64, notes string) error
}

type StaffRepo interface {
	CreateStaff(ctx context.Context, s *models.Staff) (int64, error)
	GetStaffByID(ctx context.Context, id int64) (*models.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error)
}

// JobQueue is the durable queue consumed by the worker pool.
type JobQueue interface {
	Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error)
	// FetchNext claims the next ready job and marks it running. It returns
	// nil, nil when nothing is ready.
	FetchNext(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string) (int64, error)
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
}

// Store groups every contract a backend provides.
type Store interface {
	DraftStore
	SessionStore
	StepCommitter
	UserRepo
	ApplicationRepo
	StaffRepo
	JobQueue
	TemplateRepo
	SchemaRepo
	Ping(ctx context.Context) error
	Close() error
}
