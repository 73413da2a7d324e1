package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dbfs "github.com/garnizeh/hrbot/db"
	dbpkg "github.com/garnizeh/hrbot/internal/db"
	sqlite "github.com/garnizeh/hrbot/internal/repository/sqlite"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository"
)

func setupRepo(t *testing.T) *sqlite.SQLiteRepo {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SQLiteDir, dbfs.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("migrate: %v", err)
	}
	repo := sqlite.New(d, nil)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func addUser(t *testing.T, repo *sqlite.SQLiteRepo, id int64) {
	t.Helper()
	if _, err := repo.UpsertUser(context.Background(), &models.User{ID: id, FirstName: "Ali"}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
}

func TestGetOrCreateDraft(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 1)

	a, created, err := repo.GetOrCreateDraft(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreateDraft: %v", err)
	}
	if !created || a.Status != models.StatusDraft || a.UserID != 1 {
		t.Fatalf("unexpected first draft %+v created=%v", a, created)
	}

	b, created, err := repo.GetOrCreateDraft(ctx, 1)
	if err != nil {
		t.Fatalf("second GetOrCreateDraft: %v", err)
	}
	if created || b.ID != a.ID {
		t.Fatalf("expected the same draft, got id %d created=%v", b.ID, created)
	}
}

func TestGetOrCreateDraft_Concurrent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 2)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[int64]bool{}
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, c, err := repo.GetOrCreateDraft(ctx, 2)
			if err != nil {
				t.Errorf("GetOrCreateDraft: %v", err)
				return
			}
			mu.Lock()
			ids[a.ID] = true
			if c {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 1 || created != 1 {
		t.Fatalf("expected one draft created once, got ids=%v created=%d", ids, created)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := setupRepo(t)
	a, err := repo.Get(context.Background(), 999)
	if err != nil || a != nil {
		t.Fatalf("expected nil, nil got %v, %v", a, err)
	}
}

func TestUpdateFields_RoundTrip(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 3)
	a, _, err := repo.GetOrCreateDraft(ctx, 3)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}

	birth := time.Date(1998, 3, 15, 0, 0, 0, 0, time.UTC)
	ok, err := repo.UpdateFields(ctx, a.ID, models.FieldSet{
		models.FieldFirstName:       "Ali",
		models.FieldBirthDate:       birth,
		models.FieldGender:          models.GenderMale,
		models.FieldIsStudent:       false,
		models.FieldEducationLevel:  models.LevelBachelor,
		models.FieldRussianLevel:    models.ProficiencyFluent,
		models.FieldHasExperience:   true,
		models.FieldExperienceYears: 3,
		models.FieldPhotoPath:       "media/photo/3_x.jpg",
	})
	if err != nil || !ok {
		t.Fatalf("UpdateFields = %v, %v", ok, err)
	}

	got, err := repo.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got.FirstName != "Ali" || !got.BirthDate.Equal(birth) || *got.Gender != models.GenderMale {
		t.Fatalf("personal fields not stored: %+v", got)
	}
	if *got.IsStudent || !*got.HasExperience || *got.ExperienceYears != 3 {
		t.Fatalf("bool/int fields not stored: %+v", got)
	}
	if *got.EducationLevel != models.LevelBachelor || *got.RussianLevel != models.ProficiencyFluent {
		t.Fatalf("enum fields not stored: %+v", got)
	}
	if got.Email != nil || got.EnglishLevel != nil {
		t.Fatalf("unset fields should be nil")
	}

	// clearing
	if ok, err := repo.UpdateFields(ctx, a.ID, models.FieldSet{models.FieldExperienceYears: nil}); err != nil || !ok {
		t.Fatalf("clear = %v, %v", ok, err)
	}
	got, _ = repo.Get(ctx, a.ID)
	if got.ExperienceYears != nil {
		t.Fatalf("experience_years not cleared")
	}

	// unknown fields are rejected before SQL
	if _, err := repo.UpdateFields(ctx, a.ID, models.FieldSet{"status; DROP TABLE applications": "x"}); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestUpdateFields_OnlyDrafts(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 4)
	a, _, _ := repo.GetOrCreateDraft(ctx, 4)
	if ok, err := repo.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending); err != nil || !ok {
		t.Fatalf("SetStatus = %v, %v", ok, err)
	}
	ok, err := repo.UpdateFields(ctx, a.ID, models.FieldSet{models.FieldFirstName: "Late"})
	if err != nil || ok {
		t.Fatalf("expected no update on a submitted application, got %v, %v", ok, err)
	}
}

func TestCommitStep(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 5)
	a, _, _ := repo.GetOrCreateDraft(ctx, 5)

	sess := &models.Session{UserID: 5, Step: "russian_level", DraftID: a.ID, Lang: "ru"}
	sess.SetFlag("is_student", false)
	if err := repo.CommitStep(ctx, a.ID, models.FieldSet{models.FieldIsStudent: false, models.FieldEducationPlace: nil}, sess); err != nil {
		t.Fatalf("CommitStep: %v", err)
	}

	got, err := repo.LoadSession(ctx, 5)
	if err != nil || got == nil {
		t.Fatalf("LoadSession = %v, %v", got, err)
	}
	if got.Step != "russian_level" || got.DraftID != a.ID || got.Lang != "ru" {
		t.Fatalf("unexpected session %+v", got)
	}
	if v, ok := got.Flag("is_student"); !ok || v {
		t.Fatalf("flag not persisted: %v %v", v, ok)
	}
	app, _ := repo.Get(ctx, a.ID)
	if app.IsStudent == nil || *app.IsStudent {
		t.Fatalf("is_student not persisted")
	}

	// a submitted application refuses the commit and the session stays put
	if _, err := repo.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	next := &models.Session{UserID: 5, Step: "russian_voice", DraftID: a.ID}
	err = repo.CommitStep(ctx, a.ID, models.FieldSet{models.FieldRussianLevel: models.ProficiencyBasic}, next)
	if !errors.Is(err, repository.ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	got, _ = repo.LoadSession(ctx, 5)
	if got.Step != "russian_level" {
		t.Fatalf("session advanced despite failed commit: %s", got.Step)
	}
}

func TestRestartDraft(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 8)
	old, _, _ := repo.GetOrCreateDraft(ctx, 8)
	if _, err := repo.UpdateFields(ctx, old.ID, models.FieldSet{models.FieldFirstName: "Ali"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	sess := &models.Session{UserID: 8, Step: "first_name", Lang: "uz"}
	fresh, err := repo.RestartDraft(ctx, old.ID, sess)
	if err != nil {
		t.Fatalf("RestartDraft: %v", err)
	}
	if fresh.ID == old.ID || fresh.FirstName != nil || fresh.Status != models.StatusDraft {
		t.Fatalf("unexpected fresh draft %+v", fresh)
	}
	if sess.DraftID != fresh.ID {
		t.Fatalf("session draft id = %d, want %d", sess.DraftID, fresh.ID)
	}
	if gone, _ := repo.Get(ctx, old.ID); gone != nil {
		t.Fatalf("old draft still present")
	}
	got, _ := repo.LoadSession(ctx, 8)
	if got.Step != "first_name" || got.DraftID != fresh.ID {
		t.Fatalf("unexpected session %+v", got)
	}

	// a draft that was submitted in the meantime is left alone
	if _, err := repo.SetStatus(ctx, fresh.ID, models.StatusDraft, models.StatusPending); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	_, err = repo.RestartDraft(ctx, fresh.ID, &models.Session{UserID: 8, Step: "first_name"})
	if !errors.Is(err, repository.ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if kept, _ := repo.Get(ctx, fresh.ID); kept == nil || kept.Status != models.StatusPending {
		t.Fatalf("submitted application touched: %+v", kept)
	}
	list, _ := repo.ListByStatus(ctx, models.StatusDraft, 0, 0)
	if len(list) != 0 {
		t.Fatalf("rolled back restart left %d drafts", len(list))
	}
}

func TestDiscardDraft(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 9)
	a, _, _ := repo.GetOrCreateDraft(ctx, 9)
	if err := repo.SaveSession(ctx, &models.Session{UserID: 9, Step: "confirmation", DraftID: a.ID}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	if err := repo.DiscardDraft(ctx, a.ID+100, &models.Session{UserID: 9, Step: "menu"}); !errors.Is(err, repository.ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if got, _ := repo.LoadSession(ctx, 9); got.Step != "confirmation" {
		t.Fatalf("session moved on a failed discard: %s", got.Step)
	}

	if err := repo.DiscardDraft(ctx, a.ID, &models.Session{UserID: 9, Step: "menu"}); err != nil {
		t.Fatalf("DiscardDraft: %v", err)
	}
	if gone, _ := repo.Get(ctx, a.ID); gone != nil {
		t.Fatalf("draft still present")
	}
	if got, _ := repo.LoadSession(ctx, 9); got.Step != "menu" || got.DraftID != 0 {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestSetStatus(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 6)
	a, _, _ := repo.GetOrCreateDraft(ctx, 6)

	ok, err := repo.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending)
	if err != nil || !ok {
		t.Fatalf("first SetStatus = %v, %v", ok, err)
	}
	ok, err = repo.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending)
	if err != nil || ok {
		t.Fatalf("second SetStatus should not transition, got %v, %v", ok, err)
	}
	got, _ := repo.Get(ctx, a.ID)
	if got.Status != models.StatusPending || got.Submitted == nil {
		t.Fatalf("unexpected %+v", got)
	}
	submitted := *got.Submitted

	if ok, _ := repo.SetStatus(ctx, a.ID, models.StatusPending, models.StatusUnderReview); !ok {
		t.Fatalf("review transition failed")
	}
	got, _ = repo.Get(ctx, a.ID)
	if *got.Submitted != submitted {
		t.Fatalf("submitted timestamp changed on review")
	}

	// a new draft is allowed once the old one is submitted
	b, created, err := repo.GetOrCreateDraft(ctx, 6)
	if err != nil || !created || b.ID == a.ID {
		t.Fatalf("expected a fresh draft, got %v created=%v err=%v", b, created, err)
	}
}

func TestDelete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	addUser(t, repo, 7)
	a, _, _ := repo.GetOrCreateDraft(ctx, 7)
	if ok, err := repo.Delete(ctx, a.ID); err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if ok, err := repo.Delete(ctx, a.ID); err != nil || ok {
		t.Fatalf("second Delete = %v, %v", ok, err)
	}
}

func TestListAndCount(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	for id := int64(10); id < 15; id++ {
		addUser(t, repo, id)
		a, _, _ := repo.GetOrCreateDraft(ctx, id)
		if id%2 == 0 {
			repo.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending)
		}
	}

	pending, err := repo.ListByStatus(ctx, models.StatusPending, 2, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 2 || pending[0].UserID != 10 || pending[1].UserID != 12 {
		t.Fatalf("unexpected page %+v", pending)
	}
	rest, _ := repo.ListByStatus(ctx, models.StatusPending, 2, 2)
	if len(rest) != 1 || rest[0].UserID != 14 {
		t.Fatalf("unexpected second page %+v", rest)
	}
	all, _ := repo.ListByStatus(ctx, "", 0, 0)
	if len(all) != 5 {
		t.Fatalf("expected 5 applications, got %d", len(all))
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[models.StatusPending] != 3 || counts[models.StatusDraft] != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}

	if err := repo.SetHRNotes(ctx, pending[0].ID, "score 7"); err != nil {
		t.Fatalf("SetHRNotes: %v", err)
	}
	got, _ := repo.Get(ctx, pending[0].ID)
	if got.HRNotes == nil || *got.HRNotes != "score 7" {
		t.Fatalf("hr notes not stored")
	}
	if err := repo.SetHRNotes(ctx, 9999, "x"); err == nil {
		t.Fatalf("expected error for missing application")
	}
}

func TestUsers(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	created, err := repo.UpsertUser(ctx, &models.User{ID: 20, FirstName: "Ali", LanguageCode: "uz"})
	if err != nil || !created {
		t.Fatalf("first upsert = %v, %v", created, err)
	}
	if err := repo.SetLanguage(ctx, 20, "ru"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	created, err = repo.UpsertUser(ctx, &models.User{ID: 20, FirstName: "Alisher", LanguageCode: "en"})
	if err != nil || created {
		t.Fatalf("second upsert = %v, %v", created, err)
	}
	u, err := repo.GetUser(ctx, 20)
	if err != nil || u == nil {
		t.Fatalf("GetUser = %v, %v", u, err)
	}
	if u.FirstName != "Alisher" || u.LanguageCode != "ru" {
		t.Fatalf("unexpected user %+v", u)
	}
	if err := repo.SetLanguage(ctx, 21, "ru"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
	if u, err := repo.GetUser(ctx, 21); err != nil || u != nil {
		t.Fatalf("expected nil, nil for unknown user")
	}
}

func TestStaff(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if _, err := repo.CreateStaff(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil staff")
	}
	if got, err := repo.GetStaffByEmail(ctx, "hr@example.com"); err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing staff")
	}

	id, err := repo.CreateStaff(ctx, &models.Staff{Name: "Dilnoza", Email: "hr@example.com", PasswordHash: "hash"})
	if err != nil || id == 0 {
		t.Fatalf("CreateStaff = %d, %v", id, err)
	}
	got, err := repo.GetStaffByID(ctx, id)
	if err != nil || got == nil || got.Email != "hr@example.com" || got.PasswordHash != "hash" {
		t.Fatalf("GetStaffByID = %+v, %v", got, err)
	}
	if _, err := repo.CreateStaff(ctx, &models.Staff{Name: "Dup", Email: "hr@example.com"}); err == nil {
		t.Fatalf("expected unique email violation")
	}
}

func TestJobs(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if j, err := repo.FetchNext(ctx); err != nil || j != nil {
		t.Fatalf("expected empty queue, got %v, %v", j, err)
	}

	low, _ := repo.Enqueue(ctx, &models.BackgroundJob{Type: "b", Payload: []byte(`{}`), Priority: 100})
	high, err := repo.Enqueue(ctx, &models.BackgroundJob{Type: "a", Payload: []byte(`{"id":1}`), Priority: 10})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	j, err := repo.FetchNext(ctx)
	if err != nil || j == nil {
		t.Fatalf("FetchNext = %v, %v", j, err)
	}
	if j.ID != high || j.Status != models.JobRunning || string(j.Payload) != `{"id":1}` || j.MaxAttempts != 5 {
		t.Fatalf("unexpected job %+v", j)
	}

	// the claimed job is not handed out twice
	k, _ := repo.FetchNext(ctx)
	if k == nil || k.ID != low {
		t.Fatalf("expected low priority job next, got %+v", k)
	}
	if n, _ := repo.FetchNext(ctx); n != nil {
		t.Fatalf("expected queue drained, got %+v", n)
	}

	// retry in the future stays hidden
	later := time.Now().Add(time.Hour)
	j.Status, j.Attempts, j.NextTryAt, j.LastError = models.JobRetry, 1, &later, "boom"
	if err := repo.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if n, _ := repo.FetchNext(ctx); n != nil {
		t.Fatalf("future retry was fetched: %+v", n)
	}

	if err := repo.MoveToDeadLetter(ctx, j); err != nil {
		t.Fatalf("MoveToDeadLetter: %v", err)
	}
	n, err := repo.CountDeadLetters(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountDeadLetters = %d, %v", n, err)
	}
}

func TestTemplatesAndSchemas(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	// seeded by the migration
	tmpl, err := repo.GetTemplate(ctx, "screening", "v1")
	if err != nil || tmpl == nil {
		t.Fatalf("seeded template missing: %v", err)
	}
	if tmpl.SchemaVer == nil || *tmpl.SchemaVer != "v1" {
		t.Fatalf("seeded template schema version %v", tmpl.SchemaVer)
	}

	if _, err := repo.CreateTemplate(ctx, "screening", "v2", "Rate {{.ID}}", nil); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	v2, err := repo.GetTemplate(ctx, "screening", "v2")
	if err != nil || v2 == nil || v2.TemplateTxt != "Rate {{.ID}}" || v2.SchemaVer != nil {
		t.Fatalf("GetTemplate v2 = %+v, %v", v2, err)
	}
	if missing, err := repo.GetTemplate(ctx, "nope", "v1"); err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing template")
	}

	if _, err := repo.CreateSchema(ctx, "v2", "test", `{"type":"object"}`); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	schemas, err := repo.ListSchemas(ctx)
	if err != nil || len(schemas) != 2 || schemas[0].Version != "v1" {
		t.Fatalf("ListSchemas = %+v, %v", schemas, err)
	}
}
