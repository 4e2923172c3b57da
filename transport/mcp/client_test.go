package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/locosim/api"
	"github.com/wricardo/mcp-training/locosim/loco/config"
	"github.com/wricardo/mcp-training/locosim/loco/diesel"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/service"
	"github.com/wricardo/mcp-training/locosim/loco/session"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

// newBackedClient points a client at a real API server over the bundled configs
func newBackedClient(t *testing.T) *Client {
	t.Helper()
	configMgr, err := config.NewManager("../../configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	svc := service.NewDriveService(session.NewManager(), configMgr)
	ts := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(ts.Close)
	return NewClient(ts.URL)
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestToolsListed(t *testing.T) {
	client := NewClient("http://localhost:8080")

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	resp := client.GetMCPServer().HandleMessage(context.Background(), msg)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}

	for _, name := range []string{
		"create_session", "list_sessions", "get_session", "delete_session",
		"cab_state", "set_controls", "step", "shift", "engine_command",
		"refuel", "reset_locomotive", "telemetry", "list_configs", "driver_instructions",
	} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"json error", `{"error":"session not found","code":404}`, "session not found"},
		{"plain body", "oops", "API error: 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("Expected error %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClient_apiCall_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_stepSendsArguments(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions/ab12/step" {
			t.Errorf("Expected POST /api/sessions/ab12/step, got %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(service.StepResult{TicksExecuted: 20, Dt: 0.1})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleStep(context.Background(), callRequest("step", map[string]any{
		"session_id": "ab12",
		"ticks":      float64(20),
		"throttle":   0.5,
		"intent":     "notch up",
	}))
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if !strings.Contains(resultText(t, result), "Executed 20 ticks") {
		t.Errorf("unexpected result %s", resultText(t, result))
	}
	if got["ticks"] != float64(20) || got["throttle"] != 0.5 {
		t.Errorf("unexpected body %v", got)
	}
	if _, ok := got["intent"]; ok {
		t.Error("intent should not be forwarded")
	}
	if _, ok := got["speed_mps"]; ok {
		t.Error("speed_mps should be omitted when not given")
	}
}

func TestClient_DriveThroughAPI(t *testing.T) {
	client := newBackedClient(t)
	ctx := context.Background()

	result, err := client.handleCreateSession(ctx, callRequest("create_session", map[string]any{"config_id": "twin_engine"}))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("create_session failed: %s", text)
	}
	// "Created session: abcd"
	sessionID := strings.TrimSpace(strings.SplitN(strings.SplitN(text, "\n", 2)[0], ":", 2)[1])

	result, _ = client.handleEngineCommand(ctx, callRequest("engine_command", map[string]any{
		"session_id": sessionID,
		"command":    "start",
	}))
	if result.IsError || !strings.Contains(resultText(t, result), "✓") {
		t.Fatalf("engine start failed: %s", resultText(t, result))
	}

	result, _ = client.handleSetControls(ctx, callRequest("set_controls", map[string]any{
		"session_id": sessionID,
		"throttle":   0.8,
	}))
	if result.IsError || !strings.Contains(resultText(t, result), "throttle 0.80") {
		t.Fatalf("set_controls failed: %s", resultText(t, result))
	}

	result, _ = client.handleStep(ctx, callRequest("step", map[string]any{
		"session_id": sessionID,
		"ticks":      float64(200),
	}))
	text = resultText(t, result)
	if result.IsError {
		t.Fatalf("step failed: %s", text)
	}
	for _, want := range []string{"Executed 200 ticks", "engine_state", "Engine 1: running", "Engine 2: running"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in step result, got:\n%s", want, text)
		}
	}

	result, _ = client.handleShift(ctx, callRequest("shift", map[string]any{
		"session_id": sessionID,
		"direction":  "up",
	}))
	if !result.IsError {
		t.Error("Expected shift to fail on a locomotive without a gearbox")
	}

	result, _ = client.handleEngineCommand(ctx, callRequest("engine_command", map[string]any{
		"session_id": sessionID,
		"engine":     float64(5),
		"command":    "stop",
	}))
	if !result.IsError {
		t.Error("Expected an error for an unknown engine")
	}

	result, _ = client.handleListSessions(ctx, callRequest("list_sessions", nil))
	if !strings.Contains(resultText(t, result), sessionID) {
		t.Errorf("Expected session in list, got %s", resultText(t, result))
	}

	result, _ = client.handleTelemetry(ctx, callRequest("telemetry", map[string]any{"session_id": sessionID}))
	if !result.IsError {
		t.Error("Expected telemetry to be unavailable without a store")
	}

	result, _ = client.handleDeleteSession(ctx, callRequest("delete_session", map[string]any{"session_id": sessionID}))
	if result.IsError {
		t.Fatalf("delete failed: %s", resultText(t, result))
	}
	result, _ = client.handleCabState(ctx, callRequest("cab_state", map[string]any{"session_id": sessionID}))
	if !result.IsError {
		t.Error("Expected cab_state to fail after delete")
	}
}

func TestClient_listConfigs(t *testing.T) {
	client := newBackedClient(t)

	result, err := client.handleListConfigs(context.Background(), callRequest("list_configs", nil))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, result)
	for _, want := range []string{"config_id: class37", "config_id: shunter_hydraulic", "Transmission: mechanic"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in configs, got:\n%s", want, text)
		}
	}
}

func TestFormatReadout(t *testing.T) {
	r := &locomotive.Readout{
		Name:          "Yard Shunter",
		Transmission:  "hydraulic",
		ForceN:        85000,
		FuelLevelL:    900,
		FuelCapacityL: 1500,
		MainPowerOn:   true,
		Gearbox:       &locomotive.GearReadout{Mode: "manual", Current: -1, Next: 0, Count: 2, Shifting: true},
		Engines: []diesel.Readout{
			{Index: 0, State: diesel.Running, RPM: 1500, Overheat: true},
		},
	}

	text := formatReadout(r)
	for _, want := range []string{"Yard Shunter", "Force: 85.0 kN", "Main power: on", "gear N of 2 (shifting to 1)", "Engine 1: running", "OVERHEAT"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in readout, got:\n%s", want, text)
		}
	}

	if formatReadout(nil) != "No readout available" {
		t.Error("nil readout should be reported")
	}
}

func TestFormatStepResult_Stalled(t *testing.T) {
	text := formatStepResult(&service.StepResult{
		TicksExecuted: 3,
		Dt:            0.1,
		Stalled:       true,
		Events:        []service.DriveEvent{{Type: "fuel_exhausted", Message: "Fuel exhausted", Tick: 12}},
	})
	for _, want := range []string{"Fuel exhausted, engines stalled", "[tick 12] fuel_exhausted"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got:\n%s", want, text)
		}
	}
}

func TestGearName(t *testing.T) {
	tests := map[int]string{-1: "N", 0: "1", 5: "6"}
	for gear, want := range tests {
		if got := gearName(gear); got != want {
			t.Errorf("gearName(%d) = %s, want %s", gear, got, want)
		}
	}
}

func TestClient_handleDriverInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleDriverInstructions(context.Background(), callRequest("driver_instructions", nil))
	if err != nil {
		t.Fatal(err)
	}
	text := resultText(t, result)
	for _, want := range []string{"STARTING UP", "FUEL", "ALARMS"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected '%s' in instructions", want)
		}
	}
}
