package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"MarketETL/internal/model"
)

// FormatRunSummary formats an orchestrated run into a Telegram message.
func FormatRunSummary(r model.RunReport) string {
	var b strings.Builder

	status := "✅ succeeded"
	if !r.Ok() {
		status = fmt.Sprintf("❌ failed at <b>%s</b> (exit %d)", html.EscapeString(r.FailedStage), r.ExitCode)
	}
	b.WriteString(fmt.Sprintf("📊 <b>MarketETL run</b> | %s\n\n", r.Started.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Status: %s\n", status))
	b.WriteString(fmt.Sprintf("Elapsed: %s\n", r.Elapsed.Round(time.Second)))
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: <code>%s</code>\n", html.EscapeString(r.RunID)))
	}

	if len(r.Stages) > 0 {
		b.WriteString("\n<b>Stages:</b>\n")
		for _, s := range r.Stages {
			mark := "✓"
			if s.ExitCode != 0 {
				mark = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s (%s)\n", mark, html.EscapeString(s.Name), s.Elapsed.Round(time.Millisecond)))
		}
	}

	if r.Ok() && len(r.Outputs) > 0 {
		b.WriteString("\n<b>Outputs:</b>\n")
		for _, o := range r.Outputs {
			b.WriteString(fmt.Sprintf("  %s\n", html.EscapeString(o)))
		}
	}
	return b.String()
}
