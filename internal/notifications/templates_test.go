package notifications

import (
	"testing"

	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Render_ShouldReplaceKnownAndBlankMissingVariables(t *testing.T) {
	rendered, err := Render(ApplicationStatusUpdate, map[string]string{
		"title":  "Go developer",
		"status": "reviewing",
	})
	require.NoError(t, err)

	assert.Equal(t, "Your application status has been updated", rendered.Subject)
	assert.Contains(t, rendered.Body, "<strong>Go developer</strong> is now <strong>reviewing</strong>")
	assert.Contains(t, rendered.Body, "<p>Hello ,</p>")
	assert.NotContains(t, rendered.Body, "{")
}

func Test_Render_ShouldNotInterpretValues(t *testing.T) {
	rendered, err := Render(AdminApplicationStatus, map[string]string{"entity_id": "{status}", "status": "accepted"})
	require.NoError(t, err)

	assert.Equal(t, "Application #{status} was accepted", rendered.Subject)
}

func Test_Render_WhenTemplateUnknown_ShouldFail(t *testing.T) {
	_, err := Render("birthday_greeting", nil)
	assert.True(t, errors.Is(err, ErrUnknownTemplate))
}

func Test_TemplatesFor(t *testing.T) {
	tests := []struct {
		kind     models.Kind
		to       models.Status
		expected []TemplateKey
	}{
		{models.KindApplication, models.ApplicationReviewing, []TemplateKey{ApplicationStatusUpdate}},
		{models.KindApplication, models.ApplicationAccepted, []TemplateKey{ApplicationStatusUpdate, AdminApplicationStatus}},
		{models.KindApplication, models.ApplicationWithdrawn, []TemplateKey{EmployerApplicationWithdrawn}},
		{models.KindJob, models.JobExpired, []TemplateKey{JobExpired}},
		{models.KindJob, models.JobDraft, nil},
		{models.KindEmployer, models.AccountSuspended, []TemplateKey{AccountSuspended}},
		{models.KindCandidate, models.AccountActive, []TemplateKey{AccountActivated}},
		{models.KindCandidate, models.AccountPending, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"_"+string(tt.to), func(t *testing.T) {
			keys := TemplatesFor(events.TransitionEvent{Kind: tt.kind, To: tt.to})
			if tt.expected == nil {
				assert.Empty(t, keys)
				return
			}
			assert.Equal(t, tt.expected, keys)
		})
	}
}

func Test_TemplatesFor_ShouldReturnCopy(t *testing.T) {
	event := events.TransitionEvent{Kind: models.KindApplication, To: models.ApplicationAccepted}
	keys := TemplatesFor(event)
	keys[0] = "tampered"

	assert.Equal(t, ApplicationStatusUpdate, TemplatesFor(event)[0])
}

func Test_Templates_ShouldAllBeRenderable(t *testing.T) {
	for key, tpl := range templates {
		rendered, err := Render(key, nil)
		assert.NoError(t, err, key)
		assert.NotEmpty(t, tpl.category, key)
		assert.NotContains(t, rendered.Subject+rendered.Body, "{", key)
		assert.NotContains(t, rendered.Subject+rendered.Body, "}", key)
	}
}
