// Package report renders a poll cycle as the plain-text fleet table and
// delivers it to the configured sinks.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

const separator = "______________________________________________________"

// Options controls rendering.
type Options struct {
	// Color highlights flagged rigs and issues. It is ignored when the
	// output is not a terminal.
	Color bool
}

// Render writes the full report: summary line, table, outlier section,
// runway and issues.
func Render(w io.Writer, r *state.Report, opts Options) error {
	p := &printer{w: w, opts: opts}

	p.printf("\n%s\n", SummaryLine(r))
	if p.err == nil {
		p.err = RenderTable(w, r.Rows)
	}
	p.printf("\n")
	p.outliers(r.Outliers)
	p.runway(r)
	p.issues(r.Issues)
	p.advice(r)
	return p.err
}

// SummaryLine formats the fleet aggregates on one line. Running DPH is the
// running spend of the whole inventory, including instances whose log could
// not be read, so it matches the runway basis.
func SummaryLine(r *state.Report) string {
	s := r.Summary
	difficulty := fleet.Unavailable
	if v, ok := s.MeanDifficulty.Get(); ok {
		difficulty = humanize.Comma(int64(v))
	}
	return fmt.Sprintf("Timestamp: %s, Difficulty: %s, Total Hash: %s h/s, Total DPH: %s$, Running DPH: %s$, Avg_$/Block: %s$, Total Blocks/h: %s",
		r.Timestamp.Format(time.DateTime),
		difficulty,
		optional(s.TotalHashRate, "#,###.##"),
		optional(s.TotalHourlySpend, "#,###.####"),
		optional(r.InventorySpend, "#,###.####"),
		optional(s.MeanCostPerBlock, "#,###.####"),
		optional(s.TotalBlocksPerHour, "#,###.##"),
	)
}

// RenderTable writes the fleet table with aligned columns.
func RenderTable(w io.Writer, rows []fleet.InstanceMetrics) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	header := fleet.Columns()
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	rule := make([]string, len(header))
	for i, h := range header {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t")+"\t")

	for _, row := range rows {
		cells := row.Cells()
		texts := make([]string, len(cells))
		for i, c := range cells {
			texts[i] = c.Text
		}
		fmt.Fprintln(tw, strings.Join(texts, "\t")+"\t")
	}
	return tw.Flush()
}

type printer struct {
	w    io.Writer
	opts Options
	err  error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) colored(attr color.Attribute, s string) string {
	if !p.opts.Color {
		return s
	}
	return color.New(attr).Sprint(s)
}

func (p *printer) outliers(o fleet.OutlierReport) {
	var insufficient []string
	for _, class := range o.ClassNames() {
		stats := o.Classes[class]
		mean, ok := stats.Mean.Get()
		if !ok {
			insufficient = append(insufficient, fmt.Sprintf("**%s:** Not enough data to measure performance stats.", class))
			continue
		}

		p.printf("**%s Performance Stats:**\n", class)
		p.printf("- Average hash rate: %.2f H/s, Standard deviation: %.2f H/s\n", mean, stats.StdDev.OrElse(0))

		flagged := o.FlaggedIn(class)
		if len(flagged) == 0 {
			p.printf("- All instances are performing within expected range.\n\n")
			continue
		}
		p.printf("- Note: Some instances are below the average hash rate:\n")
		for _, f := range flagged {
			line := fmt.Sprintf("  - Instance ID %s: %.2fH/s, %.2f%% below average, Variance: %.2f Z-Score",
				f.InstanceID, f.HashPerGPU, f.PercentBelowMean(mean), f.ZScore)
			p.printf("%s\n", p.colored(color.FgRed, line))
		}
		p.printf("\n")
	}

	if len(insufficient) > 0 {
		p.printf("%s\n", separator)
		for _, msg := range insufficient {
			p.printf("%s\n", msg)
		}
		p.printf("\n")
	}
}

func (p *printer) runway(r *state.Report) {
	proj := r.Projection
	if proj == nil {
		if !r.Balance.IsSet() {
			return
		}
		p.printf("Balance: $%s, runway: %s\n", humanize.FormatFloat("#,###.##", r.Balance.OrElse(0)), fleet.Unavailable)
		return
	}

	balance := humanize.FormatFloat("#,###.##", proj.BalanceUSD)
	if proj.LastsIndefinitely {
		p.printf("Balance $%s will last indefinitely at the current spend\n", balance)
		return
	}
	p.printf("Balance $%s lasts %s at $%s/h (fee x%.2f, ~$%s/month)\n",
		balance,
		proj.Runway,
		humanize.FormatFloat("#,###.####", proj.HourlySpendUSD),
		proj.FeeMultiplier,
		humanize.FormatFloat("#,###.##", proj.MonthlySpendUSD),
	)
}

func (p *printer) issues(issues []fleet.Issue) {
	if len(issues) == 0 {
		return
	}
	p.printf("\nIssues (%d):\n", len(issues))
	for _, is := range issues {
		id := is.InstanceID
		if id == "" {
			id = "fleet"
		}
		p.printf("%s\n", p.colored(color.FgYellow, fmt.Sprintf("  - %s [%s] %s", id, is.Kind, is.Detail)))
	}
}

func (p *printer) advice(r *state.Report) {
	if r.Advice == nil {
		return
	}
	p.printf("\nAdvisor: %s\n", r.Advice.Summary)
	for _, a := range r.Advice.Actions {
		p.printf("  - %s\n", a)
	}
}

func optional(o fleet.Optional[float64], format string) string {
	v, ok := o.Get()
	if !ok {
		return fleet.Unavailable
	}
	return humanize.FormatFloat(format, v)
}
