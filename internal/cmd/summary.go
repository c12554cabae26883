package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vnykmshr/rateguard/pkg/batch"
)

const detailWidth = 60

// renderSummary renders one row per record and a totals footer.
func renderSummary(report batch.Report, target string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle("Run %s (%s)", report.RunID, report.Model)
	t.AppendHeader(table.Row{"ID", "Status", "Duration", "Detail"})

	ids := make([]string, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := report.Results[id]
		status, detail := "ok", firstLine(r.Response)
		if r.Err != nil {
			status, detail = "failed", r.Err.Error()
		}
		t.AppendRow(table.Row{id, status, r.Duration.Round(time.Millisecond), truncate(detail, detailWidth)})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d/%d ok", report.Succeeded(), len(report.Results)),
		report.Elapsed.Round(time.Millisecond),
		target,
	})
	return t.Render() + "\n"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
