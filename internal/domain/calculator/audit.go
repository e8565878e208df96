package calculator

import (
	"fmt"
	"slices"
	"strings"
)

// Severity grades an audit finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// AuditFinding is one catalog quality observation. Findings never block
// registration or execution.
type AuditFinding struct {
	ID       string   `json:"id"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Check    string   `json:"check"`
	Message  string   `json:"message"`
}

// Audit inspects descriptors for metadata gaps and slug variants of the same
// calculator. Findings are ordered by id, then check name.
func Audit(descriptors []Descriptor) []AuditFinding {
	var findings []AuditFinding
	add := func(f AuditFinding) { findings = append(findings, f) }

	variants := make(map[string][]string)
	for _, d := range descriptors {
		key := strings.ReplaceAll(d.ID, "_", "-")
		variants[key] = append(variants[key], d.ID)

		if d.Description == "" {
			add(AuditFinding{ID: d.ID, Severity: SeverityInfo, Check: "description", Message: "no description"})
		}
		if len(d.Tags) == 0 {
			add(AuditFinding{ID: d.ID, Severity: SeverityInfo, Check: "tags", Message: "no tags, calculator is only reachable by id, title or category"})
		}
		if len(d.InputSchema) == 0 {
			add(AuditFinding{ID: d.ID, Severity: SeverityInfo, Check: "inputs", Message: "takes no inputs"})
		}
		for _, f := range d.InputSchema {
			if f.Label == "" || f.Label == f.Name {
				add(AuditFinding{ID: d.ID, Field: f.Name, Severity: SeverityInfo, Check: "label", Message: "field has no display label"})
			}
			if f.Type == TypeNumber {
				if f.Unit == "" {
					add(AuditFinding{ID: d.ID, Field: f.Name, Severity: SeverityInfo, Check: "unit", Message: "numeric field has no unit"})
				}
				if f.Constraints == nil || (f.Constraints.Min == nil && f.Constraints.Max == nil) {
					add(AuditFinding{ID: d.ID, Field: f.Name, Severity: SeverityWarning, Check: "bounds", Message: "numeric field is unbounded"})
				}
			}
		}
	}

	for _, ids := range variants {
		if len(ids) < 2 {
			continue
		}
		slices.Sort(ids)
		for _, id := range ids {
			others := slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
			add(AuditFinding{
				ID:       id,
				Severity: SeverityWarning,
				Check:    "slug-variant",
				Message:  fmt.Sprintf("registered alongside slug variant %s", strings.Join(others, ", ")),
			})
		}
	}

	slices.SortStableFunc(findings, func(a, b AuditFinding) int {
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		if c := strings.Compare(a.Check, b.Check); c != 0 {
			return c
		}
		return strings.Compare(a.Field, b.Field)
	})
	return findings
}
