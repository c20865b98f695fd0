// Package influxdb provides optional status telemetry for SmartLight.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring. The
// bridge records every reconciled state transition (on/off, connect/
// disconnect) as a point, giving a queryable history of lamp activity
// that the relational registry does not keep.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // telemetry is optional; log and continue
//	}
//	defer client.Close()
//
//	client.RecordStatus("a81f3c...", true)
//
// Telemetry is disabled by default; enable it with influxdb.enabled in
// the configuration.
package influxdb
