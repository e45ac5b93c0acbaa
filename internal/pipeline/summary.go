package pipeline

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guregu/null/v6"

	"MarketETL/internal/model"
	"MarketETL/internal/report"
)

// PrintFetchSummary writes the human-readable outcome of a fetch stage.
func PrintFetchSummary(w io.Writer, res FetchResult) {
	fmt.Fprintf(w, "Fetched %s rows for %d symbols (%s to %s) -> %s\n",
		humanize.Comma(int64(res.Records)), len(res.Tally.Succeeded),
		res.Start.Format(model.DateLayout), res.End.Format(model.DateLayout), res.Path)
	if res.Rejected > 0 {
		fmt.Fprintf(w, "Rejected %s malformed rows\n", humanize.Comma(int64(res.Rejected)))
	}
	if failed := res.Tally.FailedSymbols(); len(failed) > 0 {
		fmt.Fprintf(w, "Failed symbols (%d): %s\n", len(failed), strings.Join(failed, ", "))
		for _, s := range failed {
			fmt.Fprintf(w, "  %s: %s\n", s, res.Tally.Failed[s])
		}
	}
}

// PrintLoadSummary writes the human-readable outcome of a load stage.
func PrintLoadSummary(w io.Writer, res LoadResult, target string) {
	fmt.Fprintf(w, "Upserted %s rows into %s (%s duplicates collapsed, %s rejected)\n",
		humanize.Comma(int64(res.Upserted)), target,
		humanize.Comma(int64(res.Duplicates)), humanize.Comma(int64(len(res.Rejected))))
}

// PrintAnalyzeSummary writes the summary and volatility tables.
func PrintAnalyzeSummary(w io.Writer, res AnalyzeResult, window int) {
	fmt.Fprintf(w, "Analyzed %s price rows\n\n", humanize.Comma(int64(res.Prices)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(report.SummaryHeader, "\t"))
	for _, r := range res.Summary {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", r.Symbol, r.Obs,
			fmtNull(r.MeanDailyReturn, "%.6f"), fmtNull(r.StdDailyReturn, "%.6f"),
			humanize.CommafWithDigits(r.AvgVolume, 0))
	}
	tw.Flush()
	fmt.Fprintln(w)

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "symbol\t%s\n", report.VolatilityColumn(window))
	for _, r := range res.Volatility {
		fmt.Fprintf(tw, "%s\t%s\n", r.Symbol, fmtNull(r.AnnVol, "%.4f"))
	}
	tw.Flush()

	fmt.Fprintln(w)
	for _, a := range res.Artifacts {
		fmt.Fprintf(w, "Wrote %s\n", a)
	}
}

// PrintRunSummary writes the orchestrator's final report.
func PrintRunSummary(w io.Writer, r model.RunReport) {
	if !r.Ok() {
		fmt.Fprintf(w, "Pipeline failed at stage %q (exit %d) after %s\n", r.FailedStage, r.ExitCode, r.Elapsed.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "Pipeline finished in %s (started %s)\n", r.Elapsed.Round(time.Millisecond), humanize.Time(r.Started))
	for _, o := range r.Outputs {
		fmt.Fprintf(w, "  %s\n", o)
	}
}

func fmtNull(v null.Float, format string) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf(format, v.Float64)
}
