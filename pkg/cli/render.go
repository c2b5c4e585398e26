package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ekaya-inc/ekaya-intake/pkg/logging"
	"github.com/ekaya-inc/ekaya-intake/pkg/models"
)

var (
	colorError   = lipgloss.Color("#f7768e")
	colorWarning = lipgloss.Color("#e0af68")
	colorInfo    = lipgloss.Color("#7aa2f7")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorMuted   = lipgloss.Color("#565f89")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorInfo)
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)

	severityStyles = map[models.Severity]lipgloss.Style{
		models.SeverityError:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
		models.SeverityWarning: lipgloss.NewStyle().Foreground(colorWarning),
		models.SeverityInfo:    lipgloss.NewStyle().Foreground(colorInfo),
	}
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// textWriter collects the first write error so the renderers can print
// line after line without checking each one.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) line(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format+"\n", args...)
}

func renderClassifications(w io.Writer, results []classification) error {
	out := &textWriter{w: w}
	for i, r := range results {
		if i > 0 {
			out.line("")
		}
		out.line("%s  %s %s",
			titleStyle.Render(r.Name),
			headingStyle.Render(string(r.Classification.EntityType)),
			mutedStyle.Render(fmt.Sprintf("(confidence %.2f)", r.Classification.Confidence)))

		for _, a := range r.Mapping.Assignments {
			if a.Matched {
				out.line("  %s -> %s %s", a.Raw, a.Canonical, mutedStyle.Render(fmt.Sprintf("(%.2f)", a.Score)))
			} else {
				out.line("  %s %s", a.Raw, mutedStyle.Render("(unmapped)"))
			}
		}
		for _, s := range r.Suggestions {
			out.line("  - %s", s)
		}

		headers := make([]string, 0, len(r.Corrections))
		for h := range r.Corrections {
			headers = append(headers, h)
		}
		sort.Strings(headers)
		for _, h := range headers {
			out.line("  Header '%s' may be: %s", h, strings.Join(r.Corrections[h], ", "))
		}
	}
	return out.err
}

func renderReport(w io.Writer, report *models.Report) error {
	out := &textWriter{w: w}
	out.line("%s %s", titleStyle.Render("Intake run"), mutedStyle.Render(report.RunID.String()))

	for _, t := range report.Tables {
		out.line("")
		label := string(t.Classification.EntityType)
		if t.Overridden {
			label += " (override)"
		}
		out.line("%s  %s %s",
			titleStyle.Render(t.Name),
			headingStyle.Render(label),
			mutedStyle.Render(fmt.Sprintf("%d rows, confidence %.2f", t.RowCount, t.Classification.Confidence)))
		for _, s := range t.Suggestions {
			out.line("  - %s", s)
		}
		renderIssues(out, t.Result)
	}

	out.line("")
	out.line("%s", titleStyle.Render("Cross-file"))
	renderIssues(out, report.CrossFile)

	if len(report.FixSuggestions) > 0 {
		out.line("")
		out.line("%s", titleStyle.Render("Suggested fixes"))
		for _, f := range report.FixSuggestions {
			out.line("  %s row %d, %s: %q -> %q %s",
				f.Table, f.Row+1, f.Column,
				logging.TruncateValue(f.Before.Text()),
				logging.TruncateValue(f.After.Text()),
				mutedStyle.Render(fmt.Sprintf("(%s, %.0f%%)", f.Description, f.Confidence*100)))
		}
	}

	s := report.Combined.Summary
	out.line("")
	out.line("%s %d issues: %s, %s, %s",
		headingStyle.Render("Summary:"),
		s.TotalIssues,
		severityStyles[models.SeverityError].Render(fmt.Sprintf("%d errors", s.ErrorCount)),
		severityStyles[models.SeverityWarning].Render(fmt.Sprintf("%d warnings", s.WarningCount)),
		severityStyles[models.SeverityInfo].Render(fmt.Sprintf("%d info", s.InfoCount)))
	return out.err
}

func renderIssues(out *textWriter, result models.ValidationResult) {
	issues := result.All()
	if len(issues) == 0 {
		out.line("  %s", okStyle.Render("no issues"))
		return
	}
	for _, issue := range issues {
		style := severityStyles[issue.Severity]
		where := ""
		if issue.Location != nil {
			where = mutedStyle.Render(fmt.Sprintf(" [%s row %d, %s]", issue.Location.Table, issue.Location.Row+1, issue.Location.Column))
		}
		out.line("  %s %s: %s%s",
			style.Render(strings.ToUpper(string(issue.Severity))),
			issue.Type, issue.Message, where)
	}
}
