// Package events defines the immutable notifications that describe task and
// system state changes, and the closed set of event kinds observers can
// subscribe to.
//
// An Event is an envelope of kind, payload, and timestamp; on the wire each
// event is one JSON object per message. Payloads are constructed through the
// typed payload structs in payloads.go so that every kind has a known shape.
//
// The Sink interface lets tasks publish events without depending on the
// distribution layer, keeping the task core decoupled from the websocket hub.
package events
