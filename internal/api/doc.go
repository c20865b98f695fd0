// Package api provides the HTTP REST API and WebSocket session gateway
// for SmartLight.
//
// It exposes account, home, room, device and schedule operations, routes
// device commands through the bridge dispatcher, and pushes live status
// updates to connected clients over WebSocket sessions grouped by user.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
