package summary_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/hrbot/internal/i18n"
	"github.com/garnizeh/hrbot/internal/summary"
	"github.com/garnizeh/hrbot/locales"
	"github.com/garnizeh/hrbot/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestRender_OrderAndSentinel(t *testing.T) {
	b, err := i18n.Load(context.Background(), locales.FS, "uz")
	require.NoError(t, err)

	a := &models.Application{
		FirstName:    ptr("Ali"),
		LastName:     ptr("<Valiyev>"),
		BirthDate:    ptr(time.Date(2000, 3, 7, 0, 0, 0, 0, time.UTC)),
		Gender:       ptr(models.GenderMale),
		IsStudent:    ptr(false),
		RussianLevel: ptr(models.ProficiencyFluent),
		PhotoPath:    ptr("media/photo/1_x.jpg"),
	}
	out := summary.Render(b, "en", a)

	assert.Contains(t, out, "Name: Ali &lt;Valiyev&gt;")
	assert.Contains(t, out, "Date of birth: 07.03.2000")
	assert.Contains(t, out, "Gender: Male")
	assert.Contains(t, out, "Email: —")
	assert.Contains(t, out, "Student: No")
	assert.Contains(t, out, "Russian: Fluent")
	assert.Contains(t, out, "English: —")
	assert.Contains(t, out, "Photo: attached")
	assert.Contains(t, out, "Resume: —")

	// sections appear in declared order
	prev := -1
	for _, s := range summary.Sections {
		i := strings.Index(out, b.T("en", "application.confirmation."+s, summary.Values(b, "en", a)...))
		require.GreaterOrEqual(t, i, 0, s)
		assert.Greater(t, i, prev, s)
		prev = i
	}
}

func TestBody_SkipsHeaderAndFooter(t *testing.T) {
	b, err := i18n.Load(context.Background(), locales.FS, "uz")
	require.NoError(t, err)
	out := summary.Body(b, "en", &models.Application{})
	assert.NotContains(t, out, "Please review")
	assert.NotContains(t, out, "Is everything correct?")
	assert.Contains(t, out, "Phone: —")
}
