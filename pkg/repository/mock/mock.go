package mock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// Store is an in-memory repository.Store for tests. The *Err fields inject
// failures into the matching method.
type Store struct {
	mu sync.Mutex

	apps     map[int64]*models.Application
	sessions map[int64]models.Session
	users    map[int64]*models.User
	staff    map[int64]*models.Staff
	jobs     []*models.BackgroundJob
	dead     []*models.BackgroundJob
	tmpls    map[string]*models.Template
	schemas  map[string]*models.Schema
	nextID   int64

	CreateErr    error
	GetErr       error
	UpdateErr    error
	CommitErr    error
	SetStatusErr error
	DeleteErr    error
	SessionErr   error
	EnqueueErr   error
	StaffErr     error

	Commits int
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		apps:     make(map[int64]*models.Application),
		sessions: make(map[int64]models.Session),
		users:    make(map[int64]*models.User),
		staff:    make(map[int64]*models.Staff),
		tmpls:    make(map[string]*models.Template),
		schemas:  make(map[string]*models.Schema),
	}
}

func (m *Store) id() int64 {
	m.nextID++
	return m.nextID
}

func now() int64 { return time.Now().UTC().UnixMilli() }

func clone(a *models.Application) *models.Application {
	c := *a
	return &c
}

func (m *Store) GetOrCreateDraft(ctx context.Context, userID int64) (*models.Application, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, false, m.CreateErr
	}
	for _, a := range m.apps {
		if a.UserID == userID && a.Status == models.StatusDraft {
			return clone(a), false, nil
		}
	}
	ts := now()
	a := &models.Application{ID: m.id(), UserID: userID, Status: models.StatusDraft, Created: ts, Updated: ts}
	m.apps[a.ID] = a
	return clone(a), true, nil
}

func (m *Store) Get(ctx context.Context, id int64) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	a, ok := m.apps[id]
	if !ok {
		return nil, nil
	}
	return clone(a), nil
}

func (m *Store) update(id int64, fields models.FieldSet) (bool, error) {
	if err := fields.Validate(); err != nil {
		return false, err
	}
	a, ok := m.apps[id]
	if !ok || a.Status != models.StatusDraft {
		return false, nil
	}
	a.Apply(fields)
	a.Updated = now()
	return true, nil
}

func (m *Store) UpdateFields(ctx context.Context, id int64, fields models.FieldSet) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return false, m.UpdateErr
	}
	return m.update(id, fields)
}

func (m *Store) SetStatus(ctx context.Context, id int64, from, to models.ApplicationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetStatusErr != nil {
		return false, m.SetStatusErr
	}
	a, ok := m.apps[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.Updated = now()
	if to == models.StatusPending {
		ts := a.Updated
		a.Submitted = &ts
	}
	return true, nil
}

func (m *Store) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return false, m.DeleteErr
	}
	if _, ok := m.apps[id]; !ok {
		return false, nil
	}
	delete(m.apps, id)
	return true, nil
}

func (m *Store) LoadSession(ctx context.Context, userID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (m *Store) SaveSession(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SessionErr != nil {
		return m.SessionErr
	}
	c := copySession(*s)
	c.Updated = now()
	m.sessions[s.UserID] = *c
	return nil
}

func copySession(s models.Session) *models.Session {
	c := s
	if s.Flags != nil {
		c.Flags = make(map[string]bool, len(s.Flags))
		for k, v := range s.Flags {
			c.Flags[k] = v
		}
	}
	return &c
}

// DiscardDraft fails on DeleteErr or SessionErr without changing anything.
func (m *Store) DiscardDraft(ctx context.Context, draftID int64, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := errors.Join(m.DeleteErr, m.SessionErr); err != nil {
		return err
	}
	a, ok := m.apps[draftID]
	if !ok || a.Status != models.StatusDraft {
		return repository.ErrNotEditable
	}
	delete(m.apps, draftID)
	ss := copySession(*s)
	ss.Updated = now()
	m.sessions[s.UserID] = *ss
	return nil
}

// RestartDraft fails on DeleteErr, CreateErr or SessionErr without changing
// anything.
func (m *Store) RestartDraft(ctx context.Context, draftID int64, s *models.Session) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := errors.Join(m.DeleteErr, m.CreateErr, m.SessionErr); err != nil {
		return nil, err
	}
	old, ok := m.apps[draftID]
	if !ok || old.Status != models.StatusDraft {
		return nil, repository.ErrNotEditable
	}
	delete(m.apps, draftID)
	ts := now()
	a := &models.Application{ID: m.id(), UserID: s.UserID, Status: models.StatusDraft, Created: ts, Updated: ts}
	m.apps[a.ID] = a
	s.DraftID = a.ID
	ss := copySession(*s)
	ss.Updated = ts
	m.sessions[s.UserID] = *ss
	return clone(a), nil
}

func (m *Store) CommitStep(ctx context.Context, draftID int64, fields models.FieldSet, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	if len(fields) > 0 {
		a, ok := m.apps[draftID]
		if !ok || a.Status != models.StatusDraft {
			return repository.ErrNotEditable
		}
		if err := fields.Validate(); err != nil {
			return err
		}
		// apply on a copy so a failed session write leaves the row untouched
		c := clone(a)
		c.Apply(fields)
		c.Updated = now()
		m.apps[draftID] = c
	}
	ss := copySession(*s)
	ss.Updated = now()
	m.sessions[s.UserID] = *ss
	m.Commits++
	return nil
}

func (m *Store) UpsertUser(ctx context.Context, u *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.users[u.ID]
	if ok {
		ex.FirstName, ex.LastName, ex.Username = u.FirstName, u.LastName, u.Username
		ex.Updated = now()
		return false, nil
	}
	c := *u
	c.Created, c.Updated = now(), now()
	m.users[u.ID] = &c
	return true, nil
}

func (m *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *Store) SetLanguage(ctx context.Context, id int64, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	u.LanguageCode = lang
	return nil
}

func (m *Store) ListByStatus(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Application
	for _, a := range m.apps {
		if status == "" || a.Status == status {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.ApplicationStatus]int64)
	for _, a := range m.apps {
		out[a.Status]++
	}
	return out, nil
}

func (m *Store) SetHRNotes(ctx context.Context, id int64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return fmt.Errorf("application %d not found", id)
	}
	a.HRNotes = &notes
	return nil
}

func (m *Store) CreateStaff(ctx context.Context, s *models.Staff) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StaffErr != nil {
		return 0, m.StaffErr
	}
	for _, ex := range m.staff {
		if ex.Email == s.Email {
			return 0, fmt.Errorf("staff %s already exists", s.Email)
		}
	}
	c := *s
	c.ID = m.id()
	m.staff[c.ID] = &c
	return c.ID, nil
}

func (m *Store) GetStaffByID(ctx context.Context, id int64) (*models.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (m *Store) GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.Email == email {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Store) Enqueue(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return 0, m.EnqueueErr
	}
	c := *j
	c.ID = m.id()
	c.Status = models.JobQueued
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	m.jobs = append(m.jobs, &c)
	return c.ID, nil
}

func (m *Store) FetchNext(ctx context.Context) (*models.BackgroundJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := time.Now()
	for _, j := range m.jobs {
		if j.Status != models.JobQueued && j.Status != models.JobRetry {
			continue
		}
		if j.NextTryAt != nil && j.NextTryAt.After(t) {
			continue
		}
		j.Status = models.JobRunning
		c := *j
		return &c, nil
	}
	return nil, nil
}

func (m *Store) UpdateJob(ctx context.Context, j *models.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ex := range m.jobs {
		if ex.ID == j.ID {
			c := *j
			m.jobs[i] = &c
			return nil
		}
	}
	return fmt.Errorf("job %d not found", j.ID)
}

func (m *Store) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, ex := range m.jobs {
		if ex.ID == j.ID {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			c := *j
			m.dead = append(m.dead, &c)
			return nil
		}
	}
	return fmt.Errorf("job %d not found", j.ID)
}

// Jobs returns a snapshot of queued jobs.
func (m *Store) Jobs() []models.BackgroundJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BackgroundJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	return out
}

// DeadLetters returns a snapshot of dead-lettered jobs.
func (m *Store) DeadLetters() []models.BackgroundJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BackgroundJob, 0, len(m.dead))
	for _, j := range m.dead {
		out = append(out, *j)
	}
	return out
}

func (m *Store) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &models.Template{ID: m.id(), Name: name, Version: version, TemplateTxt: templateText, SchemaVer: schemaVersion}
	m.tmpls[name+"@"+version] = t
	return t.ID, nil
}

func (m *Store) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tmpls[name+"@"+version]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (m *Store) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.Schema{ID: m.id(), Version: version, Description: description, SchemaJSON: schemaJSON}
	m.schemas[version] = s
	return s.ID, nil
}

func (m *Store) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Schema, 0, len(m.schemas))
	for _, s := range m.schemas {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Store) Ping(ctx context.Context) error { return nil }

func (m *Store) Close() error { return nil }
