// Package validate checks and normalizes raw wizard input. Every function
// returns the normalized value and true on success, or the original input
// and false on failure.
package validate

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	NameMin, NameMax       = 2, 50
	AddressMin, AddressMax = 5, 255
	TextMin, TextMax       = 2, 255
	PositionMax            = 100
	MinAge, MaxAge         = 16, 70
	ExperienceMax          = 25
	NotesMax               = 500
)

var (
	phoneRe     = regexp.MustCompile(`^\+998[0-9]{9}$`)
	emailRe     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	birthDateRe = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})[./](\d{4})$`)
	phoneStrip  = strings.NewReplacer(" ", "", "\t", "", "-", "", "(", "", ")", "")
)

var documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

// Text accepts trimmed input whose rune count lies in [min, max].
func Text(s string, min, max int) (string, bool) {
	t := strings.TrimSpace(s)
	n := utf8.RuneCountInString(t)
	if n < min || n > max {
		return s, false
	}
	return t, true
}

func Name(s string) (string, bool) { return Text(s, NameMin, NameMax) }

func Address(s string) (string, bool) { return Text(s, AddressMin, AddressMax) }

// Phone normalizes to +998XXXXXXXXX.
func Phone(s string) (string, bool) {
	p := phoneStrip.Replace(strings.TrimSpace(s))
	if !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	if !phoneRe.MatchString(p) {
		return s, false
	}
	return p, true
}

// ContactPhone takes a number shared through the client's contact button.
// It is trusted as is apart from the leading plus.
func ContactPhone(s string) string {
	p := strings.TrimSpace(s)
	if !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	return p
}

func Email(s string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(s))
	if !emailRe.MatchString(e) {
		return s, false
	}
	return e, true
}

// BirthDate parses D.M.YYYY or D/M/YYYY and requires an age in
// [MinAge, MaxAge] as of now.
func BirthDate(s string, now time.Time) (time.Time, bool) {
	m := birthDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so 31.02 comes back as a March date
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return time.Time{}, false
	}

	age := Age(d, now)
	if age < MinAge || age > MaxAge {
		return time.Time{}, false
	}
	return d, true
}

// Age returns full years between birth and now.
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

func IntRange(s string, min, max int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < min || n > max {
		return 0, false
	}
	return n, true
}

func ExperienceYears(s string) (int, bool) { return IntRange(s, 0, ExperienceMax) }

// DocumentName accepts an empty name or one ending in a resume extension.
func DocumentName(name string) bool {
	if name == "" {
		return true
	}
	return documentExts[strings.ToLower(path.Ext(name))]
}

// Truncate caps s at n runes.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
