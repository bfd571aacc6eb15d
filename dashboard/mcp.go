package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/launchdash/kit"
	"github.com/hazyhaar/launchdash/launches"
)

// RegisterMCP registers the launch data tools on an MCP server.
func (d *Dashboard) RegisterMCP(srv *mcp.Server) {
	d.registerSites(srv)
	d.registerPieData(srv)
	d.registerScatterData(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decodeArgs[T any](r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p T
	if len(r.Params.Arguments) > 0 {
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}

func (d *Dashboard) registerSites(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "launch_sites",
		Description: "List launch sites with launch, success and failure counts and the payload mass bounds of the dataset",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		ds := d.Dataset()
		return map[string]any{
			"sites":  ds.Summaries(),
			"bounds": ds.PayloadBounds(),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[req])
}

func (d *Dashboard) registerPieData(srv *mcp.Server) {
	type req struct {
		Site string `json:"site"`
	}

	tool := &mcp.Tool{
		Name:        "launch_pie_data",
		Description: "Success rate per site for site ALL, otherwise Success and Failed launch counts for one site",
		InputSchema: inputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Launch site name or ALL (default ALL)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		site := p.Site
		if site == "" {
			site = launches.AllSites
		}
		return map[string]any{
			"site":   site,
			"title":  PieTitle(site),
			"slices": d.Dataset().PieData(site),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, d.wrap(PieChartID, endpoint), decodeArgs[req])
}

func (d *Dashboard) registerScatterData(srv *mcp.Server) {
	type req struct {
		Site string   `json:"site"`
		Min  *float64 `json:"min"`
		Max  *float64 `json:"max"`
	}

	tool := &mcp.Tool{
		Name:        "launch_scatter_data",
		Description: "Launches of a site (or ALL) whose payload mass lies in [min, max], as payload, outcome and booster category",
		InputSchema: inputSchema(map[string]any{
			"site": map[string]any{"type": "string", "description": "Launch site name or ALL (default ALL)"},
			"min":  map[string]any{"type": "number", "description": "Minimum payload mass in kg (default dataset minimum)"},
			"max":  map[string]any{"type": "number", "description": "Maximum payload mass in kg (default dataset maximum)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		ds := d.Dataset()
		sel := Selection{Site: p.Site, Payload: ds.PayloadBounds()}
		if p.Min != nil {
			sel.Payload.Min = *p.Min
		}
		if p.Max != nil {
			sel.Payload.Max = *p.Max
		}
		sel = normalize(ds, sel)
		points := ds.ScatterData(sel.Site, sel.Payload)
		return map[string]any{
			"site":   sel.Site,
			"range":  sel.Payload,
			"count":  len(points),
			"points": points,
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, d.wrap(ScatterChartID, endpoint), decodeArgs[req])
}

// wrap applies the configured callback middlewares to an MCP endpoint and
// tags the context with the chart it serves.
func (d *Dashboard) wrap(output string, ep kit.Endpoint) kit.Endpoint {
	if len(d.cfg.Middlewares) > 0 {
		ep = kit.Chain(d.cfg.Middlewares...)(ep)
	}
	return func(ctx context.Context, req any) (any, error) {
		if req == nil {
			return nil, fmt.Errorf("%s: missing arguments", output)
		}
		return ep(kit.WithCallback(ctx, output), req)
	}
}
