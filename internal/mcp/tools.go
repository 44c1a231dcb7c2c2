package mcp

var noArgs = InputSchema{Type: "object", Properties: map[string]Property{}}

// AllTools returns the tools exposed by the MCP server.
func AllTools() []Tool {
	return []Tool{
		// ── Fleet ──
		{
			Name:        "get_fleet_summary",
			Description: "Fleet totals from the latest poll cycle: instance count, total hash rate, total and running spend per hour, mean difficulty, mean cost per block and blocks per hour.",
			InputSchema: noArgs,
		},
		{
			Name:        "list_instances",
			Description: "List the per-instance metrics table. Rows are sorted by the configured column unless sort/order are given.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"sort": {
						Type:        "string",
						Description: "Column header (e.g. \"USD/Block\", \"GPU h/s\") or zero-based column index.",
					},
					"order": {
						Type:        "string",
						Description: "Sort direction.",
						Enum:        []string{"asc", "desc"},
					},
				},
			},
		},
		{
			Name:        "get_instance",
			Description: "Get derived metrics for a single instance, plus any issue recorded for it in the latest cycle.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"id": {Type: "string", Description: "Provider instance ID."},
				},
				Required: []string{"id"},
			},
		},
		{
			Name:        "list_outliers",
			Description: "Instances whose per-GPU hash rate is more than the configured number of standard deviations below their hardware class mean.",
			InputSchema: noArgs,
		},
		{
			Name:        "list_hardware_classes",
			Description: "Per hardware class mean and standard deviation of per-GPU hash rate.",
			InputSchema: noArgs,
		},
		{
			Name:        "get_runway",
			Description: "Account balance and how long it lasts at the current running spend.",
			InputSchema: noArgs,
		},
		{
			Name:        "list_issues",
			Description: "Per-instance problems from the latest cycle (fetch, parse, missing-field, breaker-open, balance).",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"kind": {
						Type:        "string",
						Description: "Only return issues of this kind.",
						Enum:        []string{"fetch", "parse", "missing-field", "breaker-open", "balance"},
					},
				},
			},
		},
		{
			Name:        "get_cycle_history",
			Description: "Recent poll cycles with their instance, outlier and issue counts.",
			InputSchema: noArgs,
		},
		{
			Name:        "list_tripped_breakers",
			Description: "Instances whose log fetch is being skipped after repeated failures.",
			InputSchema: noArgs,
		},
		{
			Name:        "refresh_fleet",
			Description: "Queue an immediate poll cycle. Returns at once; read the summary again after the cycle completes.",
			InputSchema: noArgs,
		},

		// ── Config ──
		{
			Name:        "get_config",
			Description: "Current monitor configuration with credentials redacted.",
			InputSchema: noArgs,
		},
	}
}
