package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/fetch"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/score"
)

type fakePipeline struct {
	items     []menu.Candidate
	prefs     score.Preferences
	urlErr    error
	nearby    app.NearbyRequest
	foodQuery string
	foodLimit int
}

func (f *fakePipeline) Rank(cands []menu.Candidate, p score.Preferences) (app.Analysis, error) {
	f.items, f.prefs = cands, p
	if err := p.Validate(); err != nil {
		return app.Analysis{}, err
	}
	return app.Analysis{Context: app.Context{Source: app.SourceRank, CalorieTarget: p.CalorieTarget}, Candidates: len(cands)}, nil
}

func (f *fakePipeline) AnalyzeURL(_ context.Context, rawURL string, p score.Preferences) (app.Analysis, error) {
	f.prefs = p
	if f.urlErr != nil {
		return app.Analysis{}, f.urlErr
	}
	return app.Analysis{Context: app.Context{Source: app.SourceURL, URL: rawURL}}, nil
}

func (f *fakePipeline) Nearby(_ context.Context, req app.NearbyRequest) (app.NearbyResult, error) {
	f.nearby = req
	return app.NearbyResult{Context: app.Context{Source: app.SourceZIP, ZIP: req.ZIP}}, nil
}

func (f *fakePipeline) FoodFacts(_ context.Context, query string, pageSize int) (app.FoodFactsResult, error) {
	f.foodQuery, f.foodLimit = query, pageSize
	return app.FoodFactsResult{}, nil
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestRankTool_Definition(t *testing.T) {
	def := NewRankTool(&fakePipeline{}, score.DefaultPreferences()).Definition()
	if def.Name != "rank_menu_items" {
		t.Fatalf("name = %q", def.Name)
	}
	for _, p := range []string{"items", "calorie_target", "prioritize_protein", "flags"} {
		if _, ok := def.InputSchema.Properties[p]; !ok {
			t.Errorf("missing %q parameter", p)
		}
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "items" {
		t.Errorf("required = %v", def.InputSchema.Required)
	}
}

func TestRankTool_Handle(t *testing.T) {
	f := &fakePipeline{}
	tool := NewRankTool(f, score.DefaultPreferences())
	res, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"items": []any{
			map[string]any{"section": "Mains", "item_name": "Grilled chicken", "description": "rice"},
			"not an item",
		},
		"calorie_target":     float64(500),
		"prioritize_protein": false,
		"flags":              "low_carb, no_fried",
	}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v %s", err, resultText(res))
	}
	if len(f.items) != 1 || f.items[0].Name != "Grilled chicken" || f.items[0].Section != "Mains" {
		t.Fatalf("items = %+v", f.items)
	}
	if f.prefs.CalorieTarget != 500 || f.prefs.PrioritizeProtein || len(f.prefs.Flags) != 2 {
		t.Fatalf("prefs = %+v", f.prefs)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resultText(res)), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if out["candidates"] != float64(1) {
		t.Fatalf("candidates = %v", out["candidates"])
	}
}

func TestRankTool_Errors(t *testing.T) {
	tool := NewRankTool(&fakePipeline{}, score.DefaultPreferences())
	res, _ := tool.Handle(context.Background(), makeReq(map[string]any{"items": "x"}))
	if !res.IsError {
		t.Fatalf("expected error for non-array items")
	}
	res, _ = tool.Handle(context.Background(), makeReq(map[string]any{"items": []any{}, "calorie_target": float64(-5)}))
	if !res.IsError || !strings.Contains(resultText(res), "calorie_target") {
		t.Fatalf("expected validation error, got %q", resultText(res))
	}
}

func TestAnalyzeURLTool(t *testing.T) {
	f := &fakePipeline{}
	tool := NewAnalyzeURLTool(f, score.DefaultPreferences())
	if res, _ := tool.Handle(context.Background(), makeReq(map[string]any{})); !res.IsError {
		t.Fatalf("expected error without url")
	}
	res, _ := tool.Handle(context.Background(), makeReq(map[string]any{"url": " https://example.com/menu ", "flags": []any{"dairy_mindful"}}))
	if res.IsError || !strings.Contains(resultText(res), "https://example.com/menu") {
		t.Fatalf("unexpected result %q", resultText(res))
	}
	if !f.prefs.Has(score.DairyMindful) || f.prefs.CalorieTarget != score.DefaultCalorieTarget {
		t.Fatalf("prefs = %+v", f.prefs)
	}

	f.urlErr = &fetch.Error{URL: "u", Message: "refused", Cause: fetch.ErrBlockedByRobots}
	res, _ = tool.Handle(context.Background(), makeReq(map[string]any{"url": "https://example.com/menu"}))
	if !res.IsError || !strings.Contains(resultText(res), "robots.txt") {
		t.Fatalf("expected robots message, got %q", resultText(res))
	}
}

func TestNearbyAndFoodFactsTools(t *testing.T) {
	f := &fakePipeline{}
	nearby := NewNearbyTool(f, score.DefaultPreferences())
	res, _ := nearby.Handle(context.Background(), makeReq(map[string]any{"zip": "94107", "radius_miles": 1.5, "only_chains": true}))
	if res.IsError || f.nearby.ZIP != "94107" || f.nearby.RadiusMiles != 1.5 || !f.nearby.OnlyChains {
		t.Fatalf("nearby req = %+v (%s)", f.nearby, resultText(res))
	}

	food := NewFoodFactsTool(f)
	res, _ = food.Handle(context.Background(), makeReq(map[string]any{"query": "skyr"}))
	if res.IsError || f.foodQuery != "skyr" || f.foodLimit != 6 {
		t.Fatalf("food query %q limit %d", f.foodQuery, f.foodLimit)
	}
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(&fakePipeline{}, score.DefaultPreferences())
	tools := s.ListTools()
	for _, name := range []string{"rank_menu_items", "analyze_menu_url", "find_nearby_picks", "lookup_packaged_food"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}
