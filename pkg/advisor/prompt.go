package advisor

import (
	"fmt"
	"strings"

	"github.com/koptimizer/rigwatch/pkg/fleet"
)

const advisorSystemPrompt = `You are an operations assistant for a fleet of rented GPU machines mining XENBlocks.

You receive per-hardware-class hash rate statistics and the rigs whose per-GPU hash rate sits far below their class mean.

Key principles:
1. Rented machines cost money every hour. A rig producing little is worth destroying and re-renting.
2. A low rig may be throttled, misconfigured or still warming up. Short runtimes deserve patience.
3. Compare against the class, never across classes.
4. Be brief. Operators read this in a terminal.

Respond in the following JSON format:
{
    "summary": "one or two sentences on the state of the flagged rigs",
    "actions": ["concrete action for a specific instance id", "..."]
}`

func buildPrompt(req Request, maxOutliers int) string {
	var b strings.Builder

	b.WriteString("## Fleet Outlier Review\n\n")

	b.WriteString("### Fleet\n")
	b.WriteString(fmt.Sprintf("- Instances reporting: %d\n", req.Summary.Instances))
	b.WriteString(fmt.Sprintf("- Total hash rate: %s\n", optional(req.Summary.TotalHashRate, "%.2f")))
	b.WriteString(fmt.Sprintf("- Running spend: %s USD/h\n", optional(req.Summary.RunningHourlySpend, "%.4f")))
	b.WriteString(fmt.Sprintf("- Average cost per block: %s USD\n", optional(req.Summary.MeanCostPerBlock, "%.4f")))
	b.WriteString("\n")

	flaggedClasses := make(map[string]bool)
	for _, o := range req.Outliers {
		flaggedClasses[o.Class] = true
	}
	b.WriteString("### Hardware Classes\n")
	for class, stats := range req.Classes {
		if !flaggedClasses[class] {
			continue
		}
		b.WriteString(fmt.Sprintf("- %s: samples=%d, mean=%s h/s per GPU, stddev=%s\n",
			class, stats.Samples, optional(stats.Mean, "%.2f"), optional(stats.StdDev, "%.2f")))
	}
	b.WriteString("\n")

	rows := make(map[string]fleet.InstanceMetrics, len(req.Rows))
	for _, r := range req.Rows {
		rows[r.ID] = r
	}

	b.WriteString("### Flagged Rigs\n")
	for i, o := range req.Outliers {
		if i >= maxOutliers {
			b.WriteString(fmt.Sprintf("- ... and %d more\n", len(req.Outliers)-maxOutliers))
			break
		}
		line := fmt.Sprintf("- %s (%s): %.2f h/s per GPU, z=%.2f", o.InstanceID, o.Class, o.HashPerGPU, o.ZScore)
		if r, ok := rows[o.InstanceID]; ok {
			line += fmt.Sprintf(", runtime=%.2fh, cost=%s USD/h", r.RuntimeHours, optional(r.HourlyCost, "%.4f"))
			if label, ok := r.Label.Get(); ok {
				line += fmt.Sprintf(", label=%q", label)
			}
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Which of these rigs should be restarted, investigated or destroyed?\n")

	return b.String()
}

func optional(o fleet.Optional[float64], format string) string {
	v, ok := o.Get()
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf(format, v)
}
