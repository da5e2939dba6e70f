// Package control serves the HTTP status surface of a running stream.
//
// Endpoints:
//
//	GET /healthz     liveness and lifecycle state
//	GET /stream.sdp  session description for receivers (application/sdp)
//	GET /stats       JSON snapshot of writer, source and receiver counters
//	GET /stats/ws    the same snapshot pushed over a websocket
package control
