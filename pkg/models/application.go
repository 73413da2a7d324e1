package models

import (
	"fmt"
	"time"
)

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	StatusDraft              ApplicationStatus = "draft"
	StatusPending            ApplicationStatus = "pending"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusAccepted           ApplicationStatus = "accepted"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// Statuses lists every status in lifecycle order.
var Statuses = []ApplicationStatus{
	StatusDraft, StatusPending, StatusUnderReview, StatusInterviewScheduled,
	StatusAccepted, StatusRejected, StatusWithdrawn,
}

func (s ApplicationStatus) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further review transition is possible.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusWithdrawn
}

// reviewTransitions holds the forward moves HR may make after submission.
var reviewTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusPending:            {StatusUnderReview, StatusInterviewScheduled, StatusAccepted, StatusRejected, StatusWithdrawn},
	StatusUnderReview:        {StatusInterviewScheduled, StatusAccepted, StatusRejected, StatusWithdrawn},
	StatusInterviewScheduled: {StatusAccepted, StatusRejected, StatusWithdrawn},
}

// CanReview reports whether HR may move an application from one status to another.
func CanReview(from, to ApplicationStatus) bool {
	for _, s := range reviewTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Level is an education level.
type Level string

const (
	LevelSecondary            Level = "secondary"
	LevelSpecializedSecondary Level = "specialized_secondary"
	LevelIncompleteHigher     Level = "incomplete_higher"
	LevelBachelor             Level = "bachelor"
	LevelMaster               Level = "master"
)

var Levels = []Level{LevelSecondary, LevelSpecializedSecondary, LevelIncompleteHigher, LevelBachelor, LevelMaster}

// Proficiency is a spoken language level.
type Proficiency string

const (
	ProficiencyNone         Proficiency = "none"
	ProficiencyBasic        Proficiency = "basic"
	ProficiencyIntermediate Proficiency = "intermediate"
	ProficiencyAdvanced     Proficiency = "advanced"
	ProficiencyFluent       Proficiency = "fluent"
)

var Proficiencies = []Proficiency{ProficiencyNone, ProficiencyBasic, ProficiencyIntermediate, ProficiencyAdvanced, ProficiencyFluent}

// DateLayout is the storage layout for birth dates.
const DateLayout = "2006-01-02"

// Application is one intake form, either in progress (draft) or submitted.
type Application struct {
	ID     int64             `json:"id" db:"id"`
	UserID int64             `json:"user_id" db:"user_id"`
	Status ApplicationStatus `json:"status" db:"status"`

	FirstName *string    `json:"first_name,omitempty" db:"first_name"`
	LastName  *string    `json:"last_name,omitempty" db:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Gender    *Gender    `json:"gender,omitempty" db:"gender"`

	Address *string `json:"address,omitempty" db:"address"`
	Phone   *string `json:"phone,omitempty" db:"phone"`
	Email   *string `json:"email,omitempty" db:"email"`

	IsStudent      *bool   `json:"is_student,omitempty" db:"is_student"`
	EducationPlace *string `json:"education_place,omitempty" db:"education_place"`
	EducationLevel *Level  `json:"education_level,omitempty" db:"education_level"`

	RussianLevel     *Proficiency `json:"russian_level,omitempty" db:"russian_level"`
	RussianVoicePath *string      `json:"russian_voice_path,omitempty" db:"russian_voice_path"`
	EnglishLevel     *Proficiency `json:"english_level,omitempty" db:"english_level"`
	EnglishVoicePath *string      `json:"english_voice_path,omitempty" db:"english_voice_path"`

	HasExperience   *bool   `json:"has_experience,omitempty" db:"has_experience"`
	ExperienceYears *int    `json:"experience_years,omitempty" db:"experience_years"`
	LastWorkplace   *string `json:"last_workplace,omitempty" db:"last_workplace"`
	LastPosition    *string `json:"last_position,omitempty" db:"last_position"`

	PhotoPath  *string `json:"photo_path,omitempty" db:"photo_path"`
	ResumePath *string `json:"resume_path,omitempty" db:"resume_path"`

	HowFound        *string `json:"how_found,omitempty" db:"how_found"`
	AdditionalNotes *string `json:"additional_notes,omitempty" db:"additional_notes"`
	HRNotes         *string `json:"hr_notes,omitempty" db:"hr_notes"`

	Created   int64  `json:"created" db:"created"`
	Updated   int64  `json:"updated" db:"updated"`
	Submitted *int64 `json:"submitted,omitempty" db:"submitted"`
}

// MediaPaths returns every stored attachment path on the application.
func (a *Application) MediaPaths() []string {
	var out []string
	for _, p := range []*string{a.PhotoPath, a.ResumePath, a.RussianVoicePath, a.EnglishVoicePath} {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return out
}

// Field names a writable application column. The value doubles as the
// column name, so only declared fields ever reach SQL.
type Field string

const (
	FieldFirstName        Field = "first_name"
	FieldLastName         Field = "last_name"
	FieldBirthDate        Field = "birth_date"
	FieldGender           Field = "gender"
	FieldAddress          Field = "address"
	FieldPhone            Field = "phone"
	FieldEmail            Field = "email"
	FieldIsStudent        Field = "is_student"
	FieldEducationPlace   Field = "education_place"
	FieldEducationLevel   Field = "education_level"
	FieldRussianLevel     Field = "russian_level"
	FieldRussianVoicePath Field = "russian_voice_path"
	FieldEnglishLevel     Field = "english_level"
	FieldEnglishVoicePath Field = "english_voice_path"
	FieldHasExperience    Field = "has_experience"
	FieldExperienceYears  Field = "experience_years"
	FieldLastWorkplace    Field = "last_workplace"
	FieldLastPosition     Field = "last_position"
	FieldPhotoPath        Field = "photo_path"
	FieldResumePath       Field = "resume_path"
	FieldHowFound         Field = "how_found"
	FieldAdditionalNotes  Field = "additional_notes"
)

var writable = map[Field]bool{
	FieldFirstName: true, FieldLastName: true, FieldBirthDate: true, FieldGender: true,
	FieldAddress: true, FieldPhone: true, FieldEmail: true,
	FieldIsStudent: true, FieldEducationPlace: true, FieldEducationLevel: true,
	FieldRussianLevel: true, FieldRussianVoicePath: true, FieldEnglishLevel: true, FieldEnglishVoicePath: true,
	FieldHasExperience: true, FieldExperienceYears: true, FieldLastWorkplace: true, FieldLastPosition: true,
	FieldPhotoPath: true, FieldResumePath: true, FieldHowFound: true, FieldAdditionalNotes: true,
}

func (f Field) Valid() bool { return writable[f] }

// FieldSet is a partial update. A nil value clears the column.
type FieldSet map[Field]any

// Validate checks field names and value types.
func (fs FieldSet) Validate() error {
	for f, v := range fs {
		if !f.Valid() {
			return fmt.Errorf("unknown field %q", f)
		}
		if v == nil {
			continue
		}
		ok := false
		switch f {
		case FieldBirthDate:
			_, ok = v.(time.Time)
		case FieldGender:
			_, ok = v.(Gender)
		case FieldIsStudent, FieldHasExperience:
			_, ok = v.(bool)
		case FieldEducationLevel:
			_, ok = v.(Level)
		case FieldRussianLevel, FieldEnglishLevel:
			_, ok = v.(Proficiency)
		case FieldExperienceYears:
			_, ok = v.(int)
		default:
			_, ok = v.(string)
		}
		if !ok {
			return fmt.Errorf("field %q: unexpected value type %T", f, v)
		}
	}
	return nil
}

// Apply copies the set onto a, e.g. for in-memory stores. Call Validate first.
func (a *Application) Apply(fs FieldSet) {
	str := func(v any) *string {
		if v == nil {
			return nil
		}
		s := v.(string)
		return &s
	}
	for f, v := range fs {
		switch f {
		case FieldFirstName:
			a.FirstName = str(v)
		case FieldLastName:
			a.LastName = str(v)
		case FieldBirthDate:
			a.BirthDate = nil
			if v != nil {
				t := v.(time.Time)
				a.BirthDate = &t
			}
		case FieldGender:
			a.Gender = nil
			if v != nil {
				g := v.(Gender)
				a.Gender = &g
			}
		case FieldAddress:
			a.Address = str(v)
		case FieldPhone:
			a.Phone = str(v)
		case FieldEmail:
			a.Email = str(v)
		case FieldIsStudent:
			a.IsStudent = nil
			if v != nil {
				b := v.(bool)
				a.IsStudent = &b
			}
		case FieldEducationPlace:
			a.EducationPlace = str(v)
		case FieldEducationLevel:
			a.EducationLevel = nil
			if v != nil {
				l := v.(Level)
				a.EducationLevel = &l
			}
		case FieldRussianLevel:
			a.RussianLevel = nil
			if v != nil {
				p := v.(Proficiency)
				a.RussianLevel = &p
			}
		case FieldRussianVoicePath:
			a.RussianVoicePath = str(v)
		case FieldEnglishLevel:
			a.EnglishLevel = nil
			if v != nil {
				p := v.(Proficiency)
				a.EnglishLevel = &p
			}
		case FieldEnglishVoicePath:
			a.EnglishVoicePath = str(v)
		case FieldHasExperience:
			a.HasExperience = nil
			if v != nil {
				b := v.(bool)
				a.HasExperience = &b
			}
		case FieldExperienceYears:
			a.ExperienceYears = nil
			if v != nil {
				n := v.(int)
				a.ExperienceYears = &n
			}
		case FieldLastWorkplace:
			a.LastWorkplace = str(v)
		case FieldLastPosition:
			a.LastPosition = str(v)
		case FieldPhotoPath:
			a.PhotoPath = str(v)
		case FieldResumePath:
			a.ResumePath = str(v)
		case FieldHowFound:
			a.HowFound = str(v)
		case FieldAdditionalNotes:
			a.AdditionalNotes = str(v)
		}
	}
}

// SQLValue converts a field value into a plain driver value. Dates become
// DateLayout strings when asText is set.
func SQLValue(v any, asText bool) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Gender:
		return string(x)
	case Level:
		return string(x)
	case Proficiency:
		return string(x)
	case time.Time:
		if asText {
			return x.Format(DateLayout)
		}
		return x
	default:
		return v
	}
}
