package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/exprora/core"
	"github.com/huangsam/exprora/core/stats"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	engine *core.Engine
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData))
}

// count reads a non-negative whole number argument.
func count(request mcp.CallToolRequest, name string) (int64, error) {
	v, err := request.RequireFloat(name)
	if err != nil {
		return 0, err
	}
	if v < 0 || v != float64(int64(v)) {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return int64(v), nil
}

func (h *toolHandler) handleComputeSignificance(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var counts [4]int64
	for i, name := range []string{"control_conversions", "control_visitors", "variant_conversions", "variant_visitors"} {
		n, err := count(request, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		counts[i] = n
	}
	return jsonResult(stats.Compare(counts[0], counts[1], counts[2], counts[3])), nil
}

func (h *toolHandler) handleComputeLift(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	controlRate, err := request.RequireFloat("control_rate")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	variantRate, err := request.RequireFloat("variant_rate")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	return jsonResult(stats.Lift(controlRate, variantRate)), nil
}

func (h *toolHandler) handleRequiredSampleSize(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	baseline, err := request.RequireFloat("baseline_rate")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	mde, err := request.RequireFloat("minimum_detectable_effect")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if baseline < 0 || baseline > 1 {
		return mcp.NewToolResultError("baseline_rate must be a proportion between 0 and 1"), nil
	}
	power := request.GetFloat("power", stats.DefaultPower)
	alpha := request.GetFloat("alpha", stats.DefaultAlpha)
	return jsonResult(stats.EstimateSampleSize(baseline, mde, power, alpha)), nil
}

// account resolves the api_key argument to an account ID.
func (h *toolHandler) account(ctx context.Context, request mcp.CallToolRequest) (int64, error) {
	key, err := request.RequireString("api_key")
	if err != nil || key == "" {
		return 0, errors.New("api_key is required")
	}
	acct, err := h.engine.Store().GetAccountByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return 0, errors.New("invalid API key")
		}
		return 0, err
	}
	return acct.ID, nil
}

func (h *toolHandler) handleGetExperimentResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID, err := h.account(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expID, err := count(request, "experiment_id")
	if err != nil || expID == 0 {
		return mcp.NewToolResultError("experiment_id must be a positive integer"), nil
	}

	now := time.Now()
	var r schema.DateRange
	if s := request.GetString("start_date", ""); s != "" {
		if r.Start, err = contract.ParseTimeInput(s, now); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid start_date: %v", err)), nil
		}
	}
	if s := request.GetString("end_date", ""); s != "" {
		if r.End, err = contract.ParseTimeInput(s, now); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid end_date: %v", err)), nil
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return mcp.NewToolResultError("start_date must not be after end_date"), nil
	}

	results, err := h.engine.GetResults(ctx, accountID, expID, r)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("results failed: %v", err)), nil
	}
	return jsonResult(results), nil
}

func (h *toolHandler) handleListRunningExperiments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID, err := h.account(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	running, err := h.engine.ListRunning(ctx, accountID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	return jsonResult(running), nil
}
