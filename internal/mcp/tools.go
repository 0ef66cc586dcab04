package mcp

import "github.com/mark3labs/mcp-go/mcp"

var fetchToolDef = mcp.NewTool("capsule_fetch",
	mcp.WithDescription("Open the time capsule for a year. Runs one acquisition cycle (context, cached asset or generation) and archives the result. Failures fall back to deterministic mock data unless surface_errors is configured."),
	mcp.WithNumber("year",
		mcp.Required(),
		mcp.Description("Year between -500 and 2100; negative years are BCE"),
	),
	mcp.WithBoolean("record",
		mcp.Description("Archive the committed capsule (default true)"),
	),
)

var archiveToolDef = mcp.NewTool("capsule_archive",
	mcp.WithDescription("List archived capsules, newest first."),
	mcp.WithNumber("year", mcp.Description("Only capsules for this year")),
	mcp.WithString("source",
		mcp.Description("Only capsules from this context source"),
		mcp.Enum("history", "daily", "fossil"),
	),
	mcp.WithBoolean("fallback", mcp.Description("Only mock (true) or only real (false) capsules")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip")),
)

var entryToolDef = mcp.NewTool("capsule_entry",
	mcp.WithDescription("Fetch one archived capsule by id, payload included."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Archive entry ULID")),
)

var latestToolDef = mcp.NewTool("capsule_latest",
	mcp.WithDescription("Get the most recently archived capsule, optionally for one year."),
	mcp.WithNumber("year", mcp.Description("Only capsules for this year")),
	mcp.WithString("source",
		mcp.Description("Only capsules from this context source"),
		mcp.Enum("history", "daily", "fossil"),
	),
	mcp.WithBoolean("include_data", mcp.Description("Include the full capsule payload")),
)

var purgeToolDef = mcp.NewTool("capsule_purge",
	mcp.WithDescription("Permanently delete archived capsules."),
	mcp.WithNumber("year", mcp.Description("Only capsules for this year")),
	mcp.WithNumber("older_than_days", mcp.Description("Only capsules archived more than N days ago")),
)

var exportToolDef = mcp.NewTool("capsule_export",
	mcp.WithDescription("Export archived capsules to a JSONL file, oldest first."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file (default: ~/.vestige/exports/archive-<timestamp>.jsonl)")),
	mcp.WithNumber("year", mcp.Description("Only capsules for this year")),
)

var filterListToolDef = mcp.NewTool("filter_list",
	mcp.WithDescription("List the style filters with their category, cost and render mode."),
)

var filterPlanToolDef = mcp.NewTool("filter_plan",
	mcp.WithDescription("Compute the post-processing effect stack a client should run for a filter, system state and device."),
	mcp.WithString("filter", mcp.Required(), mcp.Description("Filter id, e.g. blueprint")),
	mcp.WithString("state", mcp.Description("System state (default IDLE)")),
	mcp.WithBoolean("mobile", mcp.Description("Client is a mobile device")),
	mcp.WithNumber("gpu_tier", mcp.Description("GPU tier 1-3 (default 2)")),
)
