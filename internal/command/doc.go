// Package command dispatches operator commands to devices over MQTT.
//
// A Dispatcher serialises each command to JSON and publishes it once, at
// QoS 1, to {base}/devices/{id}/commands. Delivery to the device and the
// device's reaction are not tracked; the device reports its new state as
// telemetry.
//
// The broker connection is owned by a ConnectionManager. Publishers call
// Acquire to get the shared connection and ReleaseOnError when a publish
// fails, which discards the connection so the next Acquire redials with
// exponential backoff. When the attempt budget is spent the dispatch fails
// with ErrBusUnavailable.
package command
