// Package mcp exposes the locomotive REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one REST request and
// the JSON response is rendered as plain text for the agent.
//
// MCP Tools:
//   - create_session, get_session, list_sessions, delete_session
//   - cab_state: full locomotive readout
//   - set_controls: throttle, reverser and traction cut-off
//   - step: advance N ticks
//   - shift: gear up or down
//   - engine_command: start or stop one engine or all of them
//   - refuel, reset_locomotive
//   - telemetry: recent per-tick samples
//   - list_configs, driver_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
