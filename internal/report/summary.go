// Package report prints run summaries for the terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/IliaW/program-scraper/internal/model"
	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteSummary renders how many summaries and records the run produced and how complete each tracked
// field is, followed by the failures if there were any.
func WriteSummary(out io.Writer, batch *model.ScrapeBatch, files []string) {
	stats := batch.Stats()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("run " + batch.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"keywords", len(batch.Keywords)},
		{"mechanism", batch.Mechanism},
		{"duration", batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond).String()},
		{"summaries", stats.Summaries},
		{"records", stats.Records},
		{"failures", stats.Failures},
		{"program_type found", completeness(stats.WithProgramType, stats.Records)},
		{"tuition_cost found", completeness(stats.WithTuitionCost, stats.Records)},
	})
	for _, f := range files {
		t.AppendRow(table.Row{"file", f})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(batch.Failures) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(out)
	ft.AppendHeader(table.Row{"Phase", "#", "Target", "Reason"})
	for _, f := range batch.Failures {
		ft.AppendRow(table.Row{f.Phase, f.Index, f.Target, f.Reason})
	}
	ft.SetStyle(table.StyleRounded)
	ft.Render()
}

func completeness(n, total int) string {
	if total == 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", n, total, float64(n)*100/float64(total))
}
