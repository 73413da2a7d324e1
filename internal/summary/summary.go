// Package summary renders an application as localized HTML text.
package summary

import (
	"html"
	"strconv"
	"strings"

	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/pkg/models"
)

// Sentinel is shown for any unset field.
const Sentinel = "—"

const dateLayout = "02.01.2006"

// Sections is the fixed render order, as keys under application.confirmation.
var Sections = []string{"header", "personal", "contact", "education", "languages", "experience", "additional", "footer"}

// Render builds the review text for a, including header and footer.
func Render(b *i18n.Bundle, lang string, a *models.Application) string {
	return render(b, lang, a, Sections)
}

// Body renders every section except header and footer, for HR messages.
func Body(b *i18n.Bundle, lang string, a *models.Application) string {
	return render(b, lang, a, Sections[1:len(Sections)-1])
}

func render(b *i18n.Bundle, lang string, a *models.Application, sections []string) string {
	kv := Values(b, lang, a)
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, b.T(lang, "application.confirmation."+s, kv...))
	}
	return strings.Join(parts, "\n\n")
}

// Values returns placeholder pairs for the confirmation templates. User text
// is HTML-escaped.
func Values(b *i18n.Bundle, lang string, a *models.Application) []string {
	str := func(p *string) string {
		if p == nil || *p == "" {
			return Sentinel
		}
		return html.EscapeString(*p)
	}
	yesNo := func(p *bool) string {
		switch {
		case p == nil:
			return Sentinel
		case *p:
			return b.T(lang, "common.yes")
		default:
			return b.T(lang, "common.no")
		}
	}
	attached := func(p *string) string {
		if p == nil || *p == "" {
			return Sentinel
		}
		return b.T(lang, "common.attached")
	}

	birth := Sentinel
	if a.BirthDate != nil {
		birth = a.BirthDate.Format(dateLayout)
	}
	gender := Sentinel
	if a.Gender != nil {
		gender = b.T(lang, "common."+string(*a.Gender))
	}
	edu := Sentinel
	if a.EducationLevel != nil {
		edu = b.T(lang, "levels."+string(*a.EducationLevel))
	}
	prof := func(p *models.Proficiency) string {
		if p == nil {
			return Sentinel
		}
		return b.T(lang, "proficiency."+string(*p))
	}
	years := Sentinel
	if a.ExperienceYears != nil {
		years = strconv.Itoa(*a.ExperienceYears)
	}

	return []string{
		"first_name", str(a.FirstName),
		"last_name", str(a.LastName),
		"birth_date", birth,
		"gender", gender,
		"address", str(a.Address),
		"phone", str(a.Phone),
		"email", str(a.Email),
		"is_student", yesNo(a.IsStudent),
		"education_place", str(a.EducationPlace),
		"education_level", edu,
		"russian_level", prof(a.RussianLevel),
		"english_level", prof(a.EnglishLevel),
		"has_experience", yesNo(a.HasExperience),
		"experience_years", years,
		"last_workplace", str(a.LastWorkplace),
		"last_position", str(a.LastPosition),
		"photo", attached(a.PhotoPath),
		"resume", attached(a.ResumePath),
		"how_found", str(a.HowFound),
		"additional_notes", str(a.AdditionalNotes),
	}
}
