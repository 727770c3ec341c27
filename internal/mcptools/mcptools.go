// Package mcptools exposes the menu pipeline as MCP tools over stdio.
//
// Each tool is a struct holding its dependencies with a Definition that
// returns the mcp.Tool schema and a Handle that serves calls. Tool failures
// are reported as error results, never as protocol errors.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/score"
)

// Pipeline is the part of the app the tools call. *app.App implements it.
type Pipeline interface {
	Rank(cands []menu.Candidate, p score.Preferences) (app.Analysis, error)
	AnalyzeURL(ctx context.Context, rawURL string, p score.Preferences) (app.Analysis, error)
	Nearby(ctx context.Context, req app.NearbyRequest) (app.NearbyResult, error)
	FoodFacts(ctx context.Context, query string, pageSize int) (app.FoodFactsResult, error)
}

var _ Pipeline = (*app.App)(nil)

// NewServer registers every tool on a new MCP server.
func NewServer(p Pipeline, defaults score.Preferences) *server.MCPServer {
	s := server.NewMCPServer(
		"dinecoach",
		app.BuildVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	rankTool := NewRankTool(p, defaults)
	s.AddTool(rankTool.Definition(), rankTool.Handle)

	analyzeTool := NewAnalyzeURLTool(p, defaults)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	nearbyTool := NewNearbyTool(p, defaults)
	s.AddTool(nearbyTool.Definition(), nearbyTool.Handle)

	foodTool := NewFoodFactsTool(p)
	s.AddTool(foodTool.Definition(), foodTool.Handle)
	return s
}

const instructions = `dinecoach ranks restaurant menu items for a calorie target.
Use analyze_menu_url when you have a menu link, rank_menu_items when you already
have the item names, find_nearby_picks for a US ZIP code and lookup_packaged_food
for grocery products. Every estimate is approximate; show the server script and
modifiers to the user as written.`

// preferenceOptions are the shared calorie_target, prioritize_protein and
// flags parameters.
func preferenceOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("calorie_target",
			mcp.Description("Target calories for the meal (default 600)"),
		),
		mcp.WithBoolean("prioritize_protein",
			mcp.Description("Weight protein above calorie closeness (default true)"),
		),
		mcp.WithArray("flags",
			mcp.Description("Dietary flags: low_carb, gluten_mindful, dairy_mindful, no_fried"),
			mcp.WithStringItems(),
		),
	}
}

// preferences overlays the request arguments on defaults. Flags may be an
// array or a comma separated string.
func preferences(req mcp.CallToolRequest, defaults score.Preferences) score.Preferences {
	p := defaults
	args := req.GetArguments()
	if v, ok := args["calorie_target"].(float64); ok {
		p.CalorieTarget = int(v)
	}
	if v, ok := args["prioritize_protein"].(bool); ok {
		p.PrioritizeProtein = v
	}
	switch v := args["flags"].(type) {
	case []any:
		tokens := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				tokens = append(tokens, s)
			}
		}
		p.Flags = score.ParseFlags(tokens)
	case string:
		p.Flags = score.SplitFlags(v)
	}
	return p
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringArg(req mcp.CallToolRequest, key string) string {
	return strings.TrimSpace(req.GetString(key, ""))
}
