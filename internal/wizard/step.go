package wizard

import (
	"time"

	"github.com/garnizeh/hrbot/internal/validate"
	"github.com/garnizeh/hrbot/pkg/models"
)

// Step identifies a point in the conversation.
type Step string

// Control steps.
const (
	StepLanguageSelect Step = "language_select"
	StepMenu           Step = "menu"
	StepSettings       Step = "settings"
)

// Form steps in forward order.
const (
	StepFirstName       Step = "first_name"
	StepLastName        Step = "last_name"
	StepBirthDate       Step = "birth_date"
	StepGender          Step = "gender"
	StepAddress         Step = "address"
	StepPhone           Step = "phone"
	StepEmail           Step = "email"
	StepIsStudent       Step = "is_student"
	StepEducationPlace  Step = "education_place"
	StepEducationLevel  Step = "education_level"
	StepRussianLevel    Step = "russian_level"
	StepRussianVoice    Step = "russian_voice"
	StepEnglishLevel    Step = "english_level"
	StepEnglishVoice    Step = "english_voice"
	StepHasExperience   Step = "has_experience"
	StepExperienceYears Step = "experience_years"
	StepLastWorkplace   Step = "last_workplace"
	StepLastPosition    Step = "last_position"
	StepPhoto           Step = "photo"
	StepResume          Step = "resume"
	StepHowFound        Step = "how_found"
	StepAdditionalNotes Step = "additional_notes"
	StepConfirmation    Step = "confirmation"
)

// Branch flags kept on the session.
const (
	FlagIsStudent     = "is_student"
	FlagHasExperience = "has_experience"
)

type shape int

const (
	shapeText shape = iota
	shapeChoice
	shapeBool
	shapePhone
	shapePhoto
	shapeVoice
	shapeDocument
)

func (s shape) attachment() bool {
	return s == shapePhoto || s == shapeVoice || s == shapeDocument
}

// choice maps a button key onto the stored value.
type choice struct {
	key   string
	value any
}

type parser func(text string, now time.Time) (any, bool)

// stepDef declares everything the engine needs to handle one form step.
type stepDef struct {
	field    models.Field
	shape    shape
	optional bool
	parse    parser
	choices  []choice
	next     Step
	prev     Step

	// boolean steps branch on the answer and record it under flag
	flag         string
	ifTrue       Step
	ifFalse      Step
	clearOnFalse []models.Field
}

// fork resolves BACK for a step reachable from two predecessors.
type fork struct {
	flag    string
	ifTrue  Step
	ifFalse Step
}

var forks = map[Step]fork{
	StepRussianLevel: {flag: FlagIsStudent, ifTrue: StepEducationLevel, ifFalse: StepIsStudent},
	StepPhoto:        {flag: FlagHasExperience, ifTrue: StepLastPosition, ifFalse: StepHasExperience},
}

func text(fn func(string) (string, bool)) parser {
	return func(s string, _ time.Time) (any, bool) {
		v, ok := fn(s)
		return v, ok
	}
}

func bounded(min, max int) parser {
	return func(s string, _ time.Time) (any, bool) {
		v, ok := validate.Text(s, min, max)
		return v, ok
	}
}

var (
	genderChoices = []choice{
		{"buttons.male", models.GenderMale},
		{"buttons.female", models.GenderFemale},
	}
	levelChoices       = enumChoices("levels.", models.Levels)
	proficiencyChoices = enumChoices("proficiency.", models.Proficiencies)
)

func enumChoices[T ~string](prefix string, vals []T) []choice {
	out := make([]choice, 0, len(vals))
	for _, v := range vals {
		out = append(out, choice{prefix + string(v), v})
	}
	return out
}

var steps = map[Step]*stepDef{
	StepFirstName: {field: models.FieldFirstName, parse: text(validate.Name), next: StepLastName, prev: StepMenu},
	StepLastName:  {field: models.FieldLastName, parse: text(validate.Name), next: StepBirthDate, prev: StepFirstName},
	StepBirthDate: {
		field: models.FieldBirthDate,
		parse: func(s string, now time.Time) (any, bool) {
			d, ok := validate.BirthDate(s, now)
			return d, ok
		},
		next: StepGender, prev: StepLastName,
	},
	StepGender:  {field: models.FieldGender, shape: shapeChoice, choices: genderChoices, next: StepAddress, prev: StepBirthDate},
	StepAddress: {field: models.FieldAddress, parse: text(validate.Address), next: StepPhone, prev: StepGender},
	StepPhone:   {field: models.FieldPhone, shape: shapePhone, parse: text(validate.Phone), next: StepEmail, prev: StepAddress},
	StepEmail:   {field: models.FieldEmail, optional: true, parse: text(validate.Email), next: StepIsStudent, prev: StepPhone},
	StepIsStudent: {
		field: models.FieldIsStudent, shape: shapeBool, prev: StepEmail,
		flag: FlagIsStudent, ifTrue: StepEducationPlace, ifFalse: StepRussianLevel,
		clearOnFalse: []models.Field{models.FieldEducationPlace, models.FieldEducationLevel},
	},
	StepEducationPlace: {field: models.FieldEducationPlace, parse: bounded(validate.TextMin, validate.TextMax), next: StepEducationLevel, prev: StepIsStudent},
	StepEducationLevel: {field: models.FieldEducationLevel, shape: shapeChoice, choices: levelChoices, next: StepRussianLevel, prev: StepEducationPlace},
	StepRussianLevel:   {field: models.FieldRussianLevel, shape: shapeChoice, choices: proficiencyChoices, next: StepRussianVoice},
	StepRussianVoice:   {field: models.FieldRussianVoicePath, shape: shapeVoice, optional: true, next: StepEnglishLevel, prev: StepRussianLevel},
	StepEnglishLevel:   {field: models.FieldEnglishLevel, shape: shapeChoice, choices: proficiencyChoices, next: StepEnglishVoice, prev: StepRussianVoice},
	StepEnglishVoice:   {field: models.FieldEnglishVoicePath, shape: shapeVoice, optional: true, next: StepHasExperience, prev: StepEnglishLevel},
	StepHasExperience: {
		field: models.FieldHasExperience, shape: shapeBool, prev: StepEnglishVoice,
		flag: FlagHasExperience, ifTrue: StepExperienceYears, ifFalse: StepPhoto,
		clearOnFalse: []models.Field{models.FieldExperienceYears, models.FieldLastWorkplace, models.FieldLastPosition},
	},
	StepExperienceYears: {
		field: models.FieldExperienceYears,
		parse: func(s string, _ time.Time) (any, bool) {
			n, ok := validate.ExperienceYears(s)
			return n, ok
		},
		next: StepLastWorkplace, prev: StepHasExperience,
	},
	StepLastWorkplace: {field: models.FieldLastWorkplace, parse: bounded(validate.TextMin, validate.TextMax), next: StepLastPosition, prev: StepExperienceYears},
	StepLastPosition:  {field: models.FieldLastPosition, parse: bounded(validate.TextMin, validate.PositionMax), next: StepPhoto, prev: StepLastWorkplace},
	StepPhoto:         {field: models.FieldPhotoPath, shape: shapePhoto, next: StepResume},
	StepResume:        {field: models.FieldResumePath, shape: shapeDocument, optional: true, next: StepHowFound, prev: StepPhoto},
	StepHowFound:      {field: models.FieldHowFound, optional: true, parse: bounded(validate.TextMin, validate.TextMax), next: StepAdditionalNotes, prev: StepResume},
	StepAdditionalNotes: {
		field: models.FieldAdditionalNotes, optional: true,
		parse: func(s string, _ time.Time) (any, bool) {
			n := validate.Truncate(s, validate.NotesMax)
			return n, n != ""
		},
		next: StepConfirmation, prev: StepHowFound,
	},
}

// IsFormStep reports whether s collects a draft field.
func IsFormStep(s Step) bool {
	_, ok := steps[s]
	return ok
}

// previous returns the BACK target for s given the recorded branch flags.
// known is false when s is a fork and its flag has not been recorded.
func previous(s Step, sess *models.Session) (prev Step, known bool) {
	if f, ok := forks[s]; ok {
		v, recorded := sess.Flag(f.flag)
		if !recorded {
			return "", false
		}
		if v {
			return f.ifTrue, true
		}
		return f.ifFalse, true
	}
	if d, ok := steps[s]; ok {
		return d.prev, true
	}
	return StepMenu, true
}

// forkFromDraft reads a fork flag from the persisted draft.
func forkFromDraft(s Step, a *models.Application) Step {
	f := forks[s]
	var v *bool
	switch f.flag {
	case FlagIsStudent:
		v = a.IsStudent
	case FlagHasExperience:
		v = a.HasExperience
	}
	if v != nil && *v {
		return f.ifTrue
	}
	return f.ifFalse
}
