/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package capability

import (
	"fmt"
	"strings"
	"text/template"
)

// PlanSystemPrompt is the system prompt shared by all live plan-generation
// providers.
const PlanSystemPrompt = `You are a careful software change planner. Given a change request,
a bounded repository context, and optionally the classified failures from the
previous attempt, produce a change plan as JSON conforming to the provided
schema. Reference only files present in the context or explicitly declared as
new. Every checklist item must name one of the required verification checks.
Respond with a single JSON object and nothing else.`

// ClassifySystemPrompt is the system prompt shared by all live
// failure-classification providers.
const ClassifySystemPrompt = `You classify CI check failures into a fixed taxonomy. Respond with a
JSON string containing exactly one of: test_failure, lint_failure,
type_failure, secret_leak, policy_violation, flaky_infra, apply_conflict.`

var planTemplate = template.Must(template.New("plan").Parse(`Change request:
{{ .Issue }}

Plan version requested: {{ .Version }}
Generation seed: {{ .Seed }}

Repository context (JSON):
{{ printf "%s" .ContextJSON }}
{{- if .ResponseSchema }}

Response schema (JSON Schema):
{{ printf "%s" .ResponseSchema }}
{{- end }}
{{- if .PriorFailures }}

Failures from the previous attempt:
{{- range .PriorFailures }}
- check {{ .CheckName }} ({{ .Class }}): {{ .Evidence }}
{{- end }}

Revise the plan to repair these failures.
{{- end }}
`))

// PlanPrompt renders the user prompt for a plan request.
func PlanPrompt(req PlanRequest) (string, error) {
	var b strings.Builder
	if err := planTemplate.Execute(&b, req); err != nil {
		return "", fmt.Errorf("building plan prompt: %w", err)
	}
	return b.String(), nil
}

// ClassifyPrompt renders the user prompt for a classification request.
func ClassifyPrompt(checkName, evidence string) string {
	return fmt.Sprintf("Check name: %s\n\nFailure evidence:\n%s\n", checkName, evidence)
}
