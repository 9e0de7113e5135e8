package dora

import "strings"

// Keyword vocabularies behind the production predicate. Substring match,
// case-insensitive.
var (
	productionEnvTerms      = []string{"prod", "production", "live"}
	productionWorkflowTerms = []string{"deploy", "prod", "release"}
)

// Classification is the typed projection of a deployment payload used for
// production classification. It is extracted once at ingestion time and
// stored on the deployment row, so the event-time and metrics-time call
// sites evaluate exactly the same inputs.
type Classification struct {
	Environment  string
	WorkflowName string
}

// IsProduction reports whether the projection describes a production
// deployment: the environment label mentions a production term, or the
// embedded workflow name mentions a deploy/release term. Both fields empty
// means false.
func IsProduction(c Classification) bool {
	env := strings.ToLower(c.Environment)
	for _, term := range productionEnvTerms {
		if env != "" && strings.Contains(env, term) {
			return true
		}
	}

	workflow := strings.ToLower(c.WorkflowName)
	for _, term := range productionWorkflowTerms {
		if workflow != "" && strings.Contains(workflow, term) {
			return true
		}
	}

	return false
}

// Incident label vocabulary. A label containing any of these terms marks the
// issue as a real incident; "sev" also covers sev1/sev2-style labels.
var incidentLabelTerms = []string{"incident", "outage", "failure", "sev"}

// IsIncidentLabel reports whether any of the issue labels matches the
// incident vocabulary.
func IsIncidentLabel(labels []string) bool {
	for _, label := range labels {
		lower := strings.ToLower(label)
		for _, term := range incidentLabelTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}
