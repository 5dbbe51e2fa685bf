package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/roomwatch-core/internal/telemetry"
)

// MeasurementTelemetry is the measurement every mirrored record lands in.
const MeasurementTelemetry = "telemetry"

// WriteTelemetry mirrors a committed telemetry record. Records with
// nothing numeric or boolean to plot are skipped.
//
// The point is tagged with device_id and metric_kind and stamped with the
// record's server timestamp, so the mirror orders exactly like the store.
func (c *Client) WriteTelemetry(rec telemetry.Record) {
	if !c.IsConnected() {
		return
	}
	if point := TelemetryPoint(rec); point != nil {
		c.writeAPI.WritePoint(point)
	}
}

// TelemetryPoint converts a record to a line-protocol point, or nil when
// the record carries no plottable field.
//
// Fields: value (float) from the record, plus top-level payload entries
// that are numbers or booleans, prefixed "payload_".
func TelemetryPoint(rec telemetry.Record) *write.Point {
	fields := map[string]any{}
	if rec.Value != nil {
		fields["value"] = *rec.Value
	}
	for k, v := range rec.Payload {
		switch v := v.(type) {
		case float64, bool:
			fields["payload_"+k] = v
		case int:
			fields["payload_"+k] = float64(v)
		case int64:
			fields["payload_"+k] = float64(v)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(
		MeasurementTelemetry,
		map[string]string{
			"device_id":   rec.DeviceID,
			"metric_kind": rec.MetricKind,
		},
		fields,
		rec.Timestamp,
	)
}
