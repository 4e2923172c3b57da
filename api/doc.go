// Package api provides the HTTP REST API for driving locomotive sessions.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"config_id": "class37"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Session info with controls, train and readout
//   - DELETE /api/sessions/{id} - Delete a session and its telemetry
//
// Cab Operations:
//   - GET /api/sessions/{id}/state - Full locomotive readout
//   - PUT /api/sessions/{id}/controls - Throttle, reverser, player flag, traction cut-off
//   - POST /api/sessions/{id}/step - Advance N ticks ({"ticks": 50, "dt": 0.1})
//   - POST /api/sessions/{id}/shift - Request a gear change ({"direction": "up"})
//   - POST /api/sessions/{id}/engines/{index|all}/{start|stop} - Engine commands
//   - POST /api/sessions/{id}/refuel - Add fuel ({"liters": 500})
//   - POST /api/sessions/{id}/reset - Back to the initial state
//   - GET /api/sessions/{id}/telemetry - Recorded samples (?limit=N)
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - GET /api/configs/{name} - A configuration document
//   - POST /api/configs - Save a configuration (?id= overrides the derived id)
//
// Every state change is pushed to websocket clients attached with
// /ws?session={id}.
//
// Errors are returned as JSON with the HTTP status code:
//
//	{
//	  "error": "error message",
//	  "code": 400
//	}
package api
