package models

import (
	"testing"
	"time"
)

func TestFieldSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		fields  FieldSet
		wantErr bool
	}{
		{"strings", FieldSet{FieldFirstName: "Ali", FieldPhotoPath: "media/photo/1.jpg"}, false},
		{"typed values", FieldSet{FieldBirthDate: time.Now(), FieldGender: GenderFemale, FieldEducationLevel: LevelMaster, FieldRussianLevel: ProficiencyBasic}, false},
		{"clear", FieldSet{FieldEmail: nil, FieldIsStudent: nil}, false},
		{"unknown field", FieldSet{"status": "pending"}, true},
		{"raw string for enum", FieldSet{FieldGender: "male"}, true},
		{"string for int", FieldSet{FieldExperienceYears: "3"}, true},
		{"level for proficiency", FieldSet{FieldEnglishLevel: LevelBachelor}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fields.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApply(t *testing.T) {
	a := &Application{}
	a.Apply(FieldSet{FieldFirstName: "Ali", FieldExperienceYears: 4, FieldHasExperience: true})
	if a.FirstName == nil || *a.FirstName != "Ali" {
		t.Fatalf("first name not applied: %v", a.FirstName)
	}
	if *a.ExperienceYears != 4 || !*a.HasExperience {
		t.Fatalf("experience not applied")
	}
	a.Apply(FieldSet{FieldFirstName: nil, FieldExperienceYears: nil})
	if a.FirstName != nil || a.ExperienceYears != nil {
		t.Fatalf("fields not cleared")
	}
}

func TestCanReview(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		want     bool
	}{
		{StatusPending, StatusUnderReview, true},
		{StatusPending, StatusAccepted, true},
		{StatusUnderReview, StatusInterviewScheduled, true},
		{StatusInterviewScheduled, StatusRejected, true},
		{StatusDraft, StatusPending, false},
		{StatusAccepted, StatusRejected, false},
		{StatusUnderReview, StatusPending, false},
		{StatusRejected, StatusWithdrawn, false},
	}
	for _, tt := range tests {
		if got := CanReview(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanReview(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMediaPaths(t *testing.T) {
	p, v, empty := "photo.jpg", "voice.ogg", ""
	a := &Application{PhotoPath: &p, EnglishVoicePath: &v, ResumePath: &empty}
	got := a.MediaPaths()
	if len(got) != 2 || got[0] != p || got[1] != v {
		t.Fatalf("MediaPaths() = %v", got)
	}
}

func TestSQLValue(t *testing.T) {
	d := time.Date(1998, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := SQLValue(d, true); got != "1998-03-15" {
		t.Fatalf("date as text = %v", got)
	}
	if got := SQLValue(d, false); got != d {
		t.Fatalf("date as time = %v", got)
	}
	if got := SQLValue(LevelBachelor, false); got != "bachelor" {
		t.Fatalf("level = %v", got)
	}
	if got := SQLValue(nil, true); got != nil {
		t.Fatalf("nil = %v", got)
	}
}

func TestSessionFlags(t *testing.T) {
	var s Session
	if _, ok := s.Flag("is_student"); ok {
		t.Fatalf("flag recorded on empty session")
	}
	s.SetFlag("is_student", false)
	v, ok := s.Flag("is_student")
	if !ok || v {
		t.Fatalf("Flag() = %v, %v", v, ok)
	}
}
