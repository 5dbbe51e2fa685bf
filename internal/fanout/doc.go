// Package fanout streams newly ingested telemetry to live subscribers.
//
// Each subscription owns a private cursor into the telemetry store. It
// starts at the device's newest record, so nothing already stored is
// replayed, and then polls for records strictly after the cursor,
// emitting them in ascending (timestamp, seq) order. Callers that must
// announce a stream before polling take Head first and pass it to
// SubscribeFrom.
//
// The transport owns cancellation: SSE passes the request context, the
// websocket handler cancels when its read pump fails.
package fanout
