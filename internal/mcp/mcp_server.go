// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/exprora/core"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the Exprora MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(engine *core.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Exprora Experiment Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{engine: engine}

	// --- 1. Tool: compute_significance ---
	s.AddTool(mcp.NewTool("compute_significance",
		mcp.WithDescription("Run a two-proportion z-test of a variant against a control from raw counts."),
		mcp.WithNumber("control_conversions", mcp.Description("Converting visitors in the control."), mcp.Required()),
		mcp.WithNumber("control_visitors", mcp.Description("Visitors in the control."), mcp.Required()),
		mcp.WithNumber("variant_conversions", mcp.Description("Converting visitors in the variant."), mcp.Required()),
		mcp.WithNumber("variant_visitors", mcp.Description("Visitors in the variant."), mcp.Required()),
	), h.handleComputeSignificance)

	// --- 2. Tool: compute_lift ---
	s.AddTool(mcp.NewTool("compute_lift",
		mcp.WithDescription("Compute absolute and relative lift between two conversion rates in the same unit."),
		mcp.WithNumber("control_rate", mcp.Description("Control conversion rate."), mcp.Required()),
		mcp.WithNumber("variant_rate", mcp.Description("Variant conversion rate."), mcp.Required()),
	), h.handleComputeLift)

	// --- 3. Tool: required_sample_size ---
	s.AddTool(mcp.NewTool("required_sample_size",
		mcp.WithDescription("Estimate visitors needed per variant to detect an absolute change from a baseline rate (both as proportions)."),
		mcp.WithNumber("baseline_rate", mcp.Description("Baseline conversion proportion, e.g. 0.05."), mcp.Required()),
		mcp.WithNumber("minimum_detectable_effect", mcp.Description("Absolute change to detect, e.g. 0.02."), mcp.Required()),
		mcp.WithNumber("power", mcp.Description("Statistical power. Defaults to 0.8.")),
		mcp.WithNumber("alpha", mcp.Description("Significance level. Defaults to 0.05.")),
	), h.handleRequiredSampleSize)

	// --- 4. Tool: get_experiment_results ---
	s.AddTool(mcp.NewTool("get_experiment_results",
		mcp.WithDescription("Get per-variant results with significance and lift for one experiment."),
		mcp.WithString("api_key", mcp.Description("API key of the account that owns the experiment."), mcp.Required()),
		mcp.WithNumber("experiment_id", mcp.Description("Experiment identifier."), mcp.Required()),
		mcp.WithString("start_date", mcp.Description("Lower bound for events (RFC3339, YYYY-MM-DD or relative like '7 days ago').")),
		mcp.WithString("end_date", mcp.Description("Upper bound for events.")),
	), h.handleGetExperimentResults)

	// --- 5. Tool: list_running_experiments ---
	s.AddTool(mcp.NewTool("list_running_experiments",
		mcp.WithDescription("List the experiments currently running for an account, with their variants."),
		mcp.WithString("api_key", mcp.Description("API key of the account."), mcp.Required()),
	), h.handleListRunningExperiments)

	return s
}

// StartMCPServer serves the MCP tools over stdio.
func StartMCPServer(_ context.Context, engine *core.Engine, version string) error {
	s := NewMCPServer(engine, version)
	return server.ServeStdio(s)
}
