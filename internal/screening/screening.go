// Package screening asks a local model for a first assessment of a
// submitted application and stores it in the HR notes.
package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/garnizeh/hrbot/internal/jobs"
	"github.com/garnizeh/hrbot/internal/metrics"
	"github.com/garnizeh/hrbot/internal/validate"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/ollama"
	"github.com/garnizeh/hrbot/pkg/repository"
)

// Result is the structured reply expected from the model.
type Result struct {
	Score          int      `json:"score"`
	Recommendation string   `json:"recommendation"`
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths,omitempty"`
	Concerns       []string `json:"concerns,omitempty"`

	// Raw captures the original model output for auditing/logging.
	Raw string `json:"-"`
}

// Generator is the part of *ollama.Client the screener uses.
type Generator interface {
	GenerateJSON(ctx context.Context, model, prompt string) (ollama.GenerateResult, error)
}

// Store is the persistence the screener needs.
type Store interface {
	Get(ctx context.Context, id int64) (*models.Application, error)
	SetHRNotes(ctx context.Context, id int64, notes string) error
	repository.TemplateRepo
	repository.SchemaRepo
}

type Config struct {
	Model string `yaml:"model"`
	// Template and Version select the prompt_templates row.
	Template string        `yaml:"template"`
	Version  string        `yaml:"version"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Screener struct {
	gen    Generator
	store  Store
	loader *Loader
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(ctx context.Context, gen Generator, store Store, cfg Config, logger *slog.Logger) (*Screener, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Template == "" {
		cfg.Template = "screening"
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	loader, err := NewLoader(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}
	return &Screener{gen: gen, store: store, loader: loader, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Register adds the screening job handler to p.
func (s *Screener) Register(p *jobs.WorkerPool) {
	p.Register(jobs.TypeScreening, s.Handle)
}

// ReloadSchemas refreshes the compiled output schemas from the store.
func (s *Screener) ReloadSchemas(ctx context.Context) error {
	return s.loader.Reload(ctx)
}

// Handle runs a screening job.
func (s *Screener) Handle(ctx context.Context, j *models.BackgroundJob) error {
	var p jobs.ApplicationPayload
	if err := jobs.Decode(j, &p); err != nil {
		return err
	}
	_, err := s.Screen(ctx, p.ApplicationID)
	return err
}

// Screen assesses one submitted application and writes the note.
func (s *Screener) Screen(ctx context.Context, appID int64) (*Result, error) {
	app, err := s.store.Get(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("load application %d: %w", appID, err)
	}
	if app == nil {
		return nil, fmt.Errorf("%w: application %d not found", jobs.ErrPermanent, appID)
	}
	if app.Status == models.StatusDraft {
		return nil, fmt.Errorf("%w: application %d is still a draft", jobs.ErrPermanent, appID)
	}

	tpl, err := s.store.GetTemplate(ctx, s.cfg.Template, s.cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if tpl == nil || tpl.TemplateTxt == "" {
		return nil, fmt.Errorf("%w: template %s:%s not found", jobs.ErrPermanent, s.cfg.Template, s.cfg.Version)
	}

	prompt, err := ollama.RenderTemplate(tpl.TemplateTxt, NewPromptData(app, s.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: render template: %v", jobs.ErrPermanent, err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	out, err := s.gen.GenerateJSON(ctxReq, s.cfg.Model, prompt)
	if err != nil {
		metrics.Error("screening", "generate")
		return nil, fmt.Errorf("generate: %w", err)
	}

	schemaVer := tpl.Version
	if tpl.SchemaVer != nil && *tpl.SchemaVer != "" {
		schemaVer = *tpl.SchemaVer
	}
	res, err := s.validate(ctx, schemaVer, out.Text)
	if err != nil {
		// the job retries with a fresh generation
		s.logger.Warn("screening output rejected", slog.Int64("application_id", appID), slog.String("raw", out.Text), slog.Any("err", err))
		metrics.Error("screening", "invalid_output")
		return nil, err
	}

	if err := s.store.SetHRNotes(ctx, appID, res.Note(s.cfg.Model, s.now())); err != nil {
		return nil, fmt.Errorf("store notes: %w", err)
	}
	s.logger.Info("application screened", slog.Int64("application_id", appID), slog.Int("score", res.Score), slog.String("recommendation", res.Recommendation))
	return res, nil
}

func (s *Screener) validate(ctx context.Context, version, out string) (*Result, error) {
	schema, ok := s.loader.GetSchema(version)
	if !ok {
		if err := s.loader.Reload(ctx); err != nil {
			return nil, err
		}
		if schema, ok = s.loader.GetSchema(version); !ok {
			return nil, fmt.Errorf("%w: no schema found for version %s", jobs.ErrPermanent, version)
		}
	}

	j := extractJSON(out)
	if j == "" {
		return nil, errors.New("no JSON object found in response")
	}
	verrs, err := schema.ValidateBytes(ctx, []byte(j))
	if err != nil {
		return nil, fmt.Errorf("schema validate error: %w", err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, v.PropertyPath+": "+v.Message)
		}
		return nil, fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; "))
	}
	return ParseResult(out)
}

// ParseResult extracts a JSON object from arbitrary model output and unmarshals it.
func ParseResult(s string) (*Result, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty response")
	}
	j := extractJSON(s)
	if j == "" {
		return nil, errors.New("no JSON object found in response")
	}
	var r Result
	if err := json.Unmarshal([]byte(j), &r); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	r.Raw = s
	return &r, nil
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
// Models often wrap JSON in prose or markdown fences.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

// Note formats r for the hr_notes column.
func (r *Result) Note(model string, at time.Time) string {
	var sb strings.Builder
	sb.WriteString("AI screening")
	if model != "" {
		sb.WriteString(" (" + model + ")")
	}
	sb.WriteString(" " + at.Format("2006-01-02 15:04") + "\n")
	sb.WriteString("Score: " + strconv.Itoa(r.Score) + "/10, recommendation: " + r.Recommendation + "\n")
	sb.WriteString(r.Summary)
	if len(r.Strengths) > 0 {
		sb.WriteString("\nStrengths: " + strings.Join(r.Strengths, "; "))
	}
	if len(r.Concerns) > 0 {
		sb.WriteString("\nConcerns: " + strings.Join(r.Concerns, "; "))
	}
	return sb.String()
}

// PromptData is the template input. Contact details, names and files stay
// out of the prompt.
type PromptData struct {
	ID              int64
	Age             string
	Gender          string
	Student         string
	EducationPlace  string
	EducationLevel  string
	RussianLevel    string
	EnglishLevel    string
	HasExperience   bool
	ExperienceYears int
	LastWorkplace   string
	LastPosition    string
	HasResume       string
	HowFound        string
	Notes           string
}

func NewPromptData(a *models.Application, now time.Time) PromptData {
	str := func(p *string) string {
		if p == nil || *p == "" {
			return "not given"
		}
		return *p
	}
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	d := PromptData{
		ID:             a.ID,
		Age:            "not given",
		Gender:         "not given",
		Student:        "not given",
		EducationPlace: "",
		EducationLevel: "not given",
		RussianLevel:   "not given",
		EnglishLevel:   "not given",
		LastWorkplace:  str(a.LastWorkplace),
		LastPosition:   str(a.LastPosition),
		HasResume:      yesNo(a.ResumePath != nil && *a.ResumePath != ""),
		HowFound:       str(a.HowFound),
		Notes:          str(a.AdditionalNotes),
	}
	if a.BirthDate != nil {
		d.Age = strconv.Itoa(validate.Age(*a.BirthDate, now))
	}
	if a.Gender != nil {
		d.Gender = string(*a.Gender)
	}
	if a.IsStudent != nil {
		d.Student = yesNo(*a.IsStudent)
		if *a.IsStudent && a.EducationPlace != nil {
			d.EducationPlace = *a.EducationPlace
		}
	}
	if a.EducationLevel != nil {
		d.EducationLevel = strings.ReplaceAll(string(*a.EducationLevel), "_", " ")
	}
	if a.RussianLevel != nil {
		d.RussianLevel = string(*a.RussianLevel)
	}
	if a.EnglishLevel != nil {
		d.EnglishLevel = string(*a.EnglishLevel)
	}
	if a.HasExperience != nil && *a.HasExperience {
		d.HasExperience = true
		if a.ExperienceYears != nil {
			d.ExperienceYears = *a.ExperienceYears
		}
	}
	return d
}
