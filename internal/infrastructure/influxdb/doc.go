// Package influxdb mirrors committed telemetry into InfluxDB v2.
//
// The mirror is optional and secondary: the SQLite telemetry store stays
// the system of record, and a mirror outage never affects ingestion.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without a mirror
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(rec)
//
// Each record becomes one point in the "telemetry" measurement, tagged with
// device_id and metric_kind. Writes are batched according to batch_size and
// flush_interval; write errors arrive through SetOnError.
package influxdb
