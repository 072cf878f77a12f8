package notifications

import (
	"github.com/maxaizer/jobboard-core/internal/domain/events"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"
)

type TemplateKey string

const (
	ApplicationStatusUpdate      TemplateKey = "application_status_update"
	AdminApplicationStatus       TemplateKey = "admin_application_status"
	EmployerApplicationWithdrawn TemplateKey = "employer_application_withdrawn"
	AdminNewApplication          TemplateKey = "admin_new_application"
	JobPublished                 TemplateKey = "job_published"
	JobArchived                  TemplateKey = "job_archived"
	JobExpired                   TemplateKey = "job_expired"
	AccountApproved              TemplateKey = "account_approved"
	AccountActivated             TemplateKey = "account_activated"
	AccountSuspended             TemplateKey = "account_suspended"
	AccountDeactivated           TemplateKey = "account_deactivated"
)

var ErrUnknownTemplate = errors.New("unknown template")

type audience int

const (
	audienceCandidate audience = iota
	audienceOwner
	audienceAdmin
)

type template struct {
	subject  string
	body     string
	category string
	audience audience
}

var templates = map[TemplateKey]template{
	ApplicationStatusUpdate: {
		subject:  "Your application status has been updated",
		body:     "<p>Hello {recipient_name},</p><p>Your application for <strong>{title}</strong> is now <strong>{status}</strong>.</p><p>{site_name}</p>",
		category: "candidate_application_status",
		audience: audienceCandidate,
	},
	AdminApplicationStatus: {
		subject:  "Application #{entity_id} was {status}",
		body:     "<p>Application #{entity_id} for <strong>{title}</strong> moved from {previous_status} to {status}.</p>",
		category: "admin_application_status",
		audience: audienceAdmin,
	},
	EmployerApplicationWithdrawn: {
		subject:  "An application for {title} was withdrawn",
		body:     "<p>Hello {recipient_name},</p><p>Application #{entity_id} for <strong>{title}</strong> was withdrawn by the candidate.</p>",
		category: "employer_application_withdrawn",
		audience: audienceOwner,
	},
	AdminNewApplication: {
		subject:  "New application for {title}",
		body:     "<p>{candidate_name} applied for <strong>{title}</strong> at {company}.</p>",
		category: "admin_new_application",
		audience: audienceAdmin,
	},
	JobPublished: {
		subject:  "Your job {title} is live",
		body:     "<p>Hello {recipient_name},</p><p>Your job <strong>{title}</strong> has been published on {site_name}.</p>",
		category: "employer_job_status",
		audience: audienceOwner,
	},
	JobArchived: {
		subject:  "Your job {title} was archived",
		body:     "<p>Hello {recipient_name},</p><p>Your job <strong>{title}</strong> has been archived.</p>",
		category: "employer_job_status",
		audience: audienceOwner,
	},
	JobExpired: {
		subject:  "Your job {title} has expired",
		body:     "<p>Hello {recipient_name},</p><p>Your job <strong>{title}</strong> reached its expiry date and is no longer listed.</p>",
		category: "employer_job_status",
		audience: audienceOwner,
	},
	AccountApproved: {
		subject:  "Your {entity_kind} account was approved",
		body:     "<p>Hello {recipient_name},</p><p>Your account on {site_name} has been approved.</p>",
		category: "account_status",
		audience: audienceOwner,
	},
	AccountActivated: {
		subject:  "Your {entity_kind} account is active",
		body:     "<p>Hello {recipient_name},</p><p>Your account on {site_name} is now active.</p>",
		category: "account_status",
		audience: audienceOwner,
	},
	AccountSuspended: {
		subject:  "Your {entity_kind} account was suspended",
		body:     "<p>Hello {recipient_name},</p><p>Your account on {site_name} has been suspended. {reason}</p>",
		category: "account_status",
		audience: audienceOwner,
	},
	AccountDeactivated: {
		subject:  "Your {entity_kind} account was deactivated",
		body:     "<p>Hello {recipient_name},</p><p>Your account on {site_name} has been deactivated.</p>",
		category: "account_status",
		audience: audienceOwner,
	},
}

type transitionKey struct {
	kind models.Kind
	to   models.Status
}

var accountTemplates = map[models.Status][]TemplateKey{
	models.AccountApproved:  {AccountApproved},
	models.AccountActive:    {AccountActivated},
	models.AccountSuspended: {AccountSuspended},
	models.AccountInactive:  {AccountDeactivated},
}

var transitionTemplates = func() map[transitionKey][]TemplateKey {
	table := map[transitionKey][]TemplateKey{
		{models.KindApplication, models.ApplicationReviewing}: {ApplicationStatusUpdate},
		{models.KindApplication, models.ApplicationInterview}: {ApplicationStatusUpdate},
		{models.KindApplication, models.ApplicationAccepted}:  {ApplicationStatusUpdate, AdminApplicationStatus},
		{models.KindApplication, models.ApplicationRejected}:  {ApplicationStatusUpdate},
		{models.KindApplication, models.ApplicationWithdrawn}: {EmployerApplicationWithdrawn},
		{models.KindJob, models.JobPublished}:                 {JobPublished},
		{models.KindJob, models.JobArchived}:                  {JobArchived},
		{models.KindJob, models.JobExpired}:                   {JobExpired},
	}
	for status, keys := range accountTemplates {
		table[transitionKey{models.KindCandidate, status}] = keys
		table[transitionKey{models.KindEmployer, status}] = keys
	}
	return table
}()

// TemplatesFor returns the templates fired by event, possibly none.
func TemplatesFor(event events.TransitionEvent) []TemplateKey {
	keys := transitionTemplates[transitionKey{event.Kind, event.To}]
	return append([]TemplateKey(nil), keys...)
}

type Rendered struct {
	Subject string
	Body    string
}

// Render substitutes {name} placeholders; names missing from vars become
// empty strings.
func Render(key TemplateKey, vars map[string]string) (Rendered, error) {
	tpl, ok := templates[key]
	if !ok {
		return Rendered{}, errors.Wrapf(ErrUnknownTemplate, "%q", string(key))
	}
	values := make(map[string]interface{}, len(vars))
	for name, value := range vars {
		values[name] = value
	}
	return Rendered{
		Subject: fasttemplate.ExecuteString(tpl.subject, "{", "}", values),
		Body:    fasttemplate.ExecuteString(tpl.body, "{", "}", values),
	}, nil
}
