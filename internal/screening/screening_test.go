package screening_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbfs "github.com/garnizeh/hrbot/db"
	"github.com/garnizeh/hrbot/internal/jobs"
	"github.com/garnizeh/hrbot/internal/screening"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/ollama"
	"github.com/garnizeh/hrbot/pkg/repository/mock"
)

type fakeGen struct {
	out    string
	err    error
	prompt string
	calls  int
}

func (f *fakeGen) GenerateJSON(ctx context.Context, model, prompt string) (ollama.GenerateResult, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return ollama.GenerateResult{}, f.err
	}
	return ollama.GenerateResult{Text: f.out}, nil
}

const goodReply = "Sure:\n```json\n{\"score\": 8, \"recommendation\": \"interview\", \"summary\": \"Strong retail background.\", \"strengths\": [\"fluent Russian\"], \"concerns\": [\"no resume\"]}\n```"

func seededStore(t *testing.T) *mock.Store {
	t.Helper()
	ctx := context.Background()
	store := mock.NewStore()
	schema, err := dbfs.SeedFiles.ReadFile("seed/screening_schema_v1.json")
	require.NoError(t, err)
	tpl, err := dbfs.SeedFiles.ReadFile("seed/template_screening_v1.txt")
	require.NoError(t, err)
	_, err = store.CreateSchema(ctx, "v1", "screening", string(schema))
	require.NoError(t, err)
	v1 := "v1"
	_, err = store.CreateTemplate(ctx, "screening", "v1", string(tpl), &v1)
	require.NoError(t, err)
	return store
}

func submitted(t *testing.T, store *mock.Store) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := store.UpsertUser(ctx, &models.User{ID: 5})
	require.NoError(t, err)
	a, _, err := store.GetOrCreateDraft(ctx, 5)
	require.NoError(t, err)
	_, err = store.UpdateFields(ctx, a.ID, models.FieldSet{
		models.FieldFirstName:       "Secret",
		models.FieldPhone:           "+998901234567",
		models.FieldBirthDate:       time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC),
		models.FieldIsStudent:       false,
		models.FieldRussianLevel:    models.ProficiencyFluent,
		models.FieldHasExperience:   true,
		models.FieldExperienceYears: 4,
		models.FieldLastPosition:    "Cashier",
		models.FieldLastWorkplace:   "Korzinka",
	})
	require.NoError(t, err)
	ok, err := store.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)
	return a.ID
}

func newScreener(t *testing.T, gen screening.Generator, store *mock.Store) *screening.Screener {
	t.Helper()
	s, err := screening.New(context.Background(), gen, store, screening.Config{Model: "llama3.1:8b"}, nil)
	require.NoError(t, err)
	return s
}

func TestScreenStoresNote(t *testing.T) {
	store := seededStore(t)
	id := submitted(t, store)
	gen := &fakeGen{out: goodReply}
	s := newScreener(t, gen, store)

	res, err := s.Screen(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Score)
	assert.Equal(t, "interview", res.Recommendation)

	assert.Contains(t, gen.prompt, "4 years, last as Cashier at Korzinka")
	assert.Contains(t, gen.prompt, "Russian: fluent")
	assert.NotContains(t, gen.prompt, "Secret", "names stay out of the prompt")
	assert.NotContains(t, gen.prompt, "+998")

	app, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, app.HRNotes)
	assert.True(t, strings.HasPrefix(*app.HRNotes, "AI screening (llama3.1:8b)"))
	assert.Contains(t, *app.HRNotes, "Score: 8/10, recommendation: interview")
	assert.Contains(t, *app.HRNotes, "Concerns: no resume")
}

func TestScreenRejectsOffSchemaOutput(t *testing.T) {
	store := seededStore(t)
	id := submitted(t, store)
	tests := []struct {
		name string
		out  string
	}{
		{"prose only", "I think this candidate is fine."},
		{"score out of range", `{"score": 42, "recommendation": "interview", "summary": "x"}`},
		{"unknown recommendation", `{"score": 5, "recommendation": "hire now", "summary": "x"}`},
		{"extra field", `{"score": 5, "recommendation": "maybe", "summary": "x", "salary": 100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScreener(t, &fakeGen{out: tt.out}, store)
			_, err := s.Screen(context.Background(), id)
			require.Error(t, err)
			assert.False(t, errors.Is(err, jobs.ErrPermanent), "invalid output should be retried")
		})
	}
	app, _ := store.Get(context.Background(), id)
	assert.Nil(t, app.HRNotes)
}

func TestScreenPermanentFailures(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	gen := &fakeGen{out: goodReply}
	s := newScreener(t, gen, store)

	_, err := s.Screen(ctx, 999)
	assert.ErrorIs(t, err, jobs.ErrPermanent)

	_, err = store.UpsertUser(ctx, &models.User{ID: 6})
	require.NoError(t, err)
	draft, _, err := store.GetOrCreateDraft(ctx, 6)
	require.NoError(t, err)
	_, err = s.Screen(ctx, draft.ID)
	assert.ErrorIs(t, err, jobs.ErrPermanent)
	assert.Zero(t, gen.calls)

	missing, err := screening.New(ctx, gen, store, screening.Config{Version: "v9"}, nil)
	require.NoError(t, err)
	_, err = missing.Screen(ctx, submitted(t, store))
	assert.ErrorIs(t, err, jobs.ErrPermanent)
}

func TestHandleJob(t *testing.T) {
	store := seededStore(t)
	id := submitted(t, store)
	s := newScreener(t, &fakeGen{err: errors.New("connection refused")}, store)

	_, err := jobs.Enqueue(context.Background(), store, jobs.TypeScreening, jobs.ApplicationPayload{ApplicationID: id}, 0, 1)
	require.NoError(t, err)
	j := store.Jobs()[0]
	err = s.Handle(context.Background(), &j)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseResult(t *testing.T) {
	r, err := screening.ParseResult(goodReply)
	require.NoError(t, err)
	assert.Equal(t, []string{"fluent Russian"}, r.Strengths)
	assert.Equal(t, goodReply, r.Raw)

	_, err = screening.ParseResult("   ")
	assert.Error(t, err)
	_, err = screening.ParseResult("{broken")
	assert.Error(t, err)
}

func TestPromptDataStudent(t *testing.T) {
	yes := true
	place := "TSUE"
	lvl := models.LevelIncompleteHigher
	d := screening.NewPromptData(&models.Application{ID: 3, IsStudent: &yes, EducationPlace: &place, EducationLevel: &lvl}, time.Now())
	assert.Equal(t, "yes", d.Student)
	assert.Equal(t, "TSUE", d.EducationPlace)
	assert.Equal(t, "incomplete higher", d.EducationLevel)
	assert.Equal(t, "not given", d.Age)
	assert.False(t, d.HasExperience)
	assert.Equal(t, "no", d.HasResume)
}
