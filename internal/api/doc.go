// Package api implements the HTTP surface: task lifecycle endpoints, the
// websocket upgrade handler, and the mapping from internal errors to safe
// client responses.
package api
