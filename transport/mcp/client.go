package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/service"
)

// Version is reported to MCP clients during initialization
const Version = "1.0.0"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Diesel Locomotive Simulator",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Diesel Locomotive Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

You are in the cab of a diesel locomotive. Start the engines, wait for main
power, set the reverser and open the throttle. Each step advances the
simulation by a number of fixed ticks and reports tractive force, speed,
fuel and any events (engine state changes, gear changes, alarms, stalls).

AVAILABLE TOOLS:
- create_session / get_session / list_sessions / delete_session
- cab_state: full locomotive readout
- set_controls: throttle (0..1), reverser (forward/neutral/reverse), traction cut-off
- step: advance N ticks, optionally overriding throttle or supplying train speed
- shift: request the next gear up or down (geared locomotives only)
- engine_command: start or stop one engine or all engines
- refuel / reset_locomotive
- telemetry: recent per-tick samples
- list_configs: available locomotive configurations
- driver_instructions: how the cab works`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new driving session with optional locomotive config selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"config_id": map[string]any{
					"type":        "string",
					"description": "ID of the locomotive config to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active driving sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get cab controls, train state and readout of a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Delete a session and its telemetry",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// Cab operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "cab_state",
		Description: "Get the full locomotive readout: engines, gearbox, force, fuel",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleCabState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_controls",
		Description: "Set cab controls. Only the given fields change.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"throttle": map[string]any{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Throttle position from 0 (closed) to 1 (full)",
				},
				"direction": map[string]any{
					"type":        "string",
					"enum":        []string{"forward", "neutral", "reverse"},
					"description": "Reverser position",
				},
				"traction_cut_off": map[string]any{
					"type":        "boolean",
					"description": "Open (true) or close (false) the traction cut-off relay",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleSetControls)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step",
		Description: "Advance the simulation by a number of fixed ticks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"ticks": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Number of ticks (default 1, max %d)", service.MaxStepTicks),
				},
				"dt": map[string]any{
					"type":        "number",
					"description": fmt.Sprintf("Tick length in seconds (default %.1f)", service.DefaultDt),
				},
				"throttle": map[string]any{
					"type":        "number",
					"description": "Set the throttle before stepping (optional)",
				},
				"speed_mps": map[string]any{
					"type":        "number",
					"description": "Hold the train at this speed instead of the built-in train model (optional)",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "Brief explanation of what this step is meant to achieve",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleStep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "shift",
		Description: "Request a gear change on a geared locomotive",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"direction": map[string]any{
					"type":        "string",
					"enum":        []string{"up", "down"},
					"description": "Shift direction",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleShift)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "engine_command",
		Description: "Start or stop a diesel engine",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"engine": map[string]any{
					"type":        "string",
					"description": `Zero-based engine index or "all" (default "all")`,
				},
				"command": map[string]any{
					"type":        "string",
					"enum":        []string{"start", "stop"},
					"description": "Command to send",
				},
			},
			Required: []string{"session_id", "command"},
		},
	}, c.handleEngineCommand)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "refuel",
		Description: "Add fuel to the tank, up to its capacity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"liters": map[string]any{
					"type":        "number",
					"description": "Litres to add",
				},
			},
			Required: []string{"session_id", "liters"},
		},
	}, c.handleRefuel)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_locomotive",
		Description: "Reset the locomotive and train to their initial state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "telemetry",
		Description: "Get recent per-tick telemetry samples",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionIDProperty(),
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of newest samples to return",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTelemetry)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available locomotive configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "driver_instructions",
		Description: "Get instructions for driving the locomotive",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleDriverInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// numberArg reads a JSON number argument; ok is false when it is absent
func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	body := map[string]string{}
	if configID := stringArg(args, "config_id"); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		session.ID, session.ConfigName, formatReadout(session.Readout))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Config: %s, Ticks: %d, Speed: %.1f km/h, Created: %s)\n",
			s.ID, s.ConfigName, s.Ticks, s.Train.SpeedMpS*3.6, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var response struct {
		Message string `json:"message"`
	}
	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, ""), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleCabState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var readout locomotive.Readout
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &readout); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatReadout(&readout)), nil
}

func (c *Client) handleSetControls(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	body := map[string]any{}
	if throttle, ok := numberArg(args, "throttle"); ok {
		body["throttle"] = throttle
	}
	if direction := stringArg(args, "direction"); direction != "" {
		body["direction"] = direction
	}
	if cutOff, ok := args["traction_cut_off"].(bool); ok {
		body["traction_cut_off"] = cutOff
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "PUT", sessionPath(sessionID, "/controls"), body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	// intent is only there to make the caller explain itself
	_ = stringArg(args, "intent")

	body := map[string]any{}
	if ticks, ok := numberArg(args, "ticks"); ok {
		body["ticks"] = int(ticks)
	}
	if dt, ok := numberArg(args, "dt"); ok {
		body["dt"] = dt
	}
	if throttle, ok := numberArg(args, "throttle"); ok {
		body["throttle"] = throttle
	}
	if speed, ok := numberArg(args, "speed_mps"); ok {
		body["speed_mps"] = speed
	}

	var result service.StepResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/step"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStepResult(&result)), nil
}

func (c *Client) handleShift(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	var session service.SessionInfo
	body := map[string]string{"direction": stringArg(args, "direction")}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/shift"), body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Shift requested\n\n" + formatReadout(session.Readout)), nil
}

func (c *Client) handleEngineCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	engine := stringArg(args, "engine")
	if n, ok := args["engine"].(float64); ok {
		engine = strconv.Itoa(int(n))
	}
	if engine == "" {
		engine = "all"
	}
	command := stringArg(args, "command")

	var result service.EngineCommandResult
	path := sessionPath(sessionID, "/engines/"+url.PathEscape(engine)+"/"+url.PathEscape(command))
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := "✓"
	if !result.Accepted {
		status = "✗"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s %s\n\n%s", status, result.Message, formatReadout(result.Readout))), nil
}

func (c *Client) handleRefuel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")
	liters, _ := numberArg(args, "liters")

	var result service.RefuelResult
	body := map[string]float64{"liters": liters}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/refuel"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Added %.1f L, tank now %.1f L", result.AddedL, result.LevelL)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := stringArg(request.GetArguments(), "session_id")

	var response struct {
		Message string               `json:"message"`
		Session *service.SessionInfo `json:"session"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSessionInfo(response.Session))), nil
}

func (c *Client) handleTelemetry(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := stringArg(args, "session_id")

	path := sessionPath(sessionID, "/telemetry")
	if limit, ok := numberArg(args, "limit"); ok {
		path += fmt.Sprintf("?limit=%d", int(limit))
	}

	var resp service.TelemetryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatTelemetry(&resp)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (config_id: %s)\n  %s\n  Engines: %d, Transmission: %s, Gears: %d, Power: %.0f kW\n\n",
			config.Name, config.ConfigID, config.Description,
			config.Engines, config.Transmission, config.Gears, config.MaxPowerW/1000)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleDriverInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Diesel Locomotive Simulator - Driver Instructions

STARTING UP:
1. engine_command with command "start" (engine "all" starts every engine).
2. Step until the engines report "running". Main power comes on once any
   engine runs and the traction cut-off relay is closed.
3. set_controls direction "forward" or "reverse". Neutral gives no force.

DRIVING:
• Throttle 0..1 sets the demanded engine power. RPM follows the throttle
  at a limited rate, so force builds up over several seconds.
• Tractive force is limited by adhesion at low speed and by rail power at
  higher speed. Above the unloading speed force fades to zero.
• Geared locomotives: shift up/down in manual mode. Automatic gearboxes
  choose gears on their own. Force is interrupted while a friction clutch
  is shifting.

FUEL:
• Engines burn fuel between the idle and full-load flow rates.
• An empty tank stalls every engine. Refuel, then start again.

ALARMS:
• Overheat: coolant above the maximum temperature.
• Low oil pressure: oil pressure below the minimum while running.

STEPPING:
• Each tick is dt seconds (default 0.1 s). Ten ticks is one second.
• Without speed_mps the built-in train model accelerates the train with
  the tractive force against rolling and air resistance.`
	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	if session == nil {
		return "No session available"
	}
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\nTicks: %d\nControls: throttle %.2f, reverser %s, cut-off %v\nTrain: %.1f km/h, %.0f m, %.0f t\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.Ticks,
		session.Controls.Throttle, session.Controls.Direction, session.Controls.TractionCutOff,
		session.Train.SpeedMpS*3.6, session.Train.DistanceM, session.Train.MassKg/1000,
		formatReadout(session.Readout))
}

func formatReadout(r *locomotive.Readout) string {
	if r == nil {
		return "No readout available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s | t=%.1fs\n", r.Name, r.Transmission, r.ElapsedS)
	fmt.Fprintf(&b, "Force: %.1f kN (avg %.1f kN, model %s) | Throttle: %.0f%% | Main power: %s\n",
		r.ForceN/1000, r.AverageForceN/1000, r.Model, r.ApparentThrottle*100, onOff(r.MainPowerOn))
	fmt.Fprintf(&b, "Fuel: %.1f/%.0f L (%.1f L/h)", r.FuelLevelL, r.FuelCapacityL, r.FuelFlowLph)
	if r.TractionCutOff {
		b.WriteString(" | TRACTION CUT-OFF")
	}
	b.WriteString("\n")

	if g := r.Gearbox; g != nil {
		fmt.Fprintf(&b, "Gearbox: %s, gear %s of %d", g.Mode, gearName(g.Current), g.Count)
		if g.Shifting {
			fmt.Fprintf(&b, " (shifting to %s)", gearName(g.Next))
		}
		b.WriteString("\n")
	}

	for _, e := range r.Engines {
		fmt.Fprintf(&b, "Engine %d: %-8s %4.0f rpm  load %3.0f%%  %6.0f kW  oil %3.0f kPa  %5.1f°C",
			e.Index+1, e.State, e.RPM, e.LoadPercent, e.OutputPowerW/1000, e.OilPressureKPa, e.TemperatureC)
		if e.Overheat {
			b.WriteString("  ⚠ OVERHEAT")
		}
		if e.LowOilPressure {
			b.WriteString("  ⚠ LOW OIL")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatStepResult(result *service.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d ticks of %.3fs\n", result.TicksExecuted, result.Dt)
	fmt.Fprintf(&b, "Train: %.1f km/h, %.0f m | Fuel used: %.2f L\n",
		result.Train.SpeedMpS*3.6, result.Train.DistanceM, result.FuelUsedL)
	if result.Stalled {
		b.WriteString("⚠ Fuel exhausted, engines stalled\n")
	}

	if len(result.Events) > 0 {
		b.WriteString("\nEvents:\n")
		for _, event := range result.Events {
			fmt.Fprintf(&b, "- [tick %d] %s: %s\n", event.Tick, event.Type, event.Message)
		}
	}

	b.WriteString("\n")
	b.WriteString(formatReadout(result.Readout))
	return b.String()
}

func formatTelemetry(resp *service.TelemetryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Telemetry for %s (%d samples)\n\n", resp.SessionID, resp.Count)
	b.WriteString("  tick     t(s)  thr   km/h   force kN    rpm  gear  fuel L\n")
	for _, s := range resp.Samples {
		fmt.Fprintf(&b, "%6d %8.1f %4.2f %6.1f %10.1f %6.0f %5s %7.1f\n",
			s.Tick, s.ElapsedS, s.Throttle, s.SpeedMpS*3.6, s.ForceN/1000, s.RPM, gearName(s.Gear), s.FuelLevelL)
	}
	return b.String()
}

func gearName(g int) string {
	if g < 0 {
		return "N"
	}
	return strconv.Itoa(g + 1)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
