// Package api implements the HTTP surface: account registration and login,
// job submission and inspection, live status streaming over SSE and
// websocket, and artifact downloads. Every JSON response uses the
// {success, message?, data?} envelope.
package api
