package repair

import (
	"fmt"
	"strings"
)

// Report collects what validation found and what repair did
type Report struct {
	IssuesFound    []string `json:"issues_found"`
	RepairsApplied []string `json:"repairs_applied"`
	Warnings       []string `json:"warnings"`
	Success        bool     `json:"success"`
}

func newReport() *Report {
	return &Report{
		IssuesFound:    []string{},
		RepairsApplied: []string{},
		Warnings:       []string{},
		Success:        true,
	}
}

func (r *Report) issue(format string, args ...any) {
	r.IssuesFound = append(r.IssuesFound, fmt.Sprintf(format, args...))
}

func (r *Report) repaired(format string, args ...any) {
	r.RepairsApplied = append(r.RepairsApplied, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) hasIssue(substr string) bool {
	for _, i := range r.IssuesFound {
		if strings.Contains(strings.ToLower(i), substr) {
			return true
		}
	}
	return false
}

// String renders the report as a text block
func (r *Report) String() string {
	var sb strings.Builder
	sb.WriteString("=== Mesh Repair Report ===")

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n\n%s (%d):", title, len(items))
		for _, item := range items {
			sb.WriteString("\n  - ")
			sb.WriteString(item)
		}
	}
	section("Issues Found", r.IssuesFound)
	section("Repairs Applied", r.RepairsApplied)
	section("Warnings", r.Warnings)

	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "\n\nStatus: %s", status)
	return sb.String()
}
