// Package ws implements real-time event distribution to websocket observers.
//
// The Hub is the subscription registry and fan-out core: it tracks connected
// observers, their per-kind interest sets, and their liveness, and it
// implements events.Sink so tasks can publish without knowing who is
// listening. Delivery is strictly non-blocking; an observer whose send buffer
// is full is presumed stalled and is disconnected rather than allowed to
// backpressure publishers.
//
// Client binds a Hub session to a gorilla/websocket connection, running the
// standard read/write pump pair and translating inbound control messages
// (subscribe, unsubscribe, heartbeat) into Hub calls.
package ws
