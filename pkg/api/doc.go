// Package api implements the HTTP surface of the contact relay: the Gin engine
// with logging, recovery, request IDs and CORS, the liveness endpoints and the
// POST /send-mail controller.
package api
