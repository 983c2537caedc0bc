// Package api provides the HTTP/JSON facade and the WebSocket live status
// stream.
//
// It is a thin adapter: handlers translate requests into calls on the bridge
// manager, the per-device pollers and the history store, and translate domain
// errors back into status codes. No handler talks to a transport directly;
// everything that touches a device goes through the poller's command FIFO.
//
// The server follows the shared lifecycle pattern:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// When security.web_password is set, every mutating request (anything other
// than GET) outside /api/auth requires the session cookie issued by
// /api/auth/login. Reads and /api/health are never gated.
package api
