// Package bridge feeds device telemetry published over MQTT into the
// ingestion gateway.
//
// Devices publish JSON to {base}/devices/{id}/telemetry. The bridge
// subscribes to the wildcard topic, normalises each message into an
// ingest.Submission and hands it to the gateway in-process, so MQTT and
// HTTP submissions follow identical authentication and reconciliation.
//
// Accepted message fields:
//
//	device_id              optional; falls back to the topic segment
//	credential | api_key   required
//	metric_kind | metric_type
//	value, payload         passed through unchanged
//
// Malformed or rejected messages are logged and dropped.
package bridge
