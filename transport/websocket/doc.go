// Package websocket pushes live locomotive readouts to cab displays.
//
// A central Hub owns every connection. Clients attach to one session with
// the ?session= query parameter and receive a JSON Message after each
// change to that session: a state_update frame carrying the full readout,
// or an event frame carrying the discrete events raised during a step.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithLogger(log))
//	go hub.Run(ctx)
//
//	hub.ServeWS(w, r, sessionID)
//	hub.BroadcastToSession(sessionID, &readout)
//
// The hub stops when its context is cancelled and closes every client.
// Broadcasts after that are dropped.
package websocket
