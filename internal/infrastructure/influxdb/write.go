package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names for device telemetry points.
const (
	measurementStatus     = "device_status"
	measurementConnection = "device_connection"
)

// RecordStatus writes a device power state change.
//
// Non-blocking: the point is queued in the batch buffer and flushed
// asynchronously. Dropped silently when the client is not connected.
func (c *Client) RecordStatus(token string, status bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementStatus,
		map[string]string{"token": token},
		map[string]interface{}{"value": boolToInt(status)},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordConnection writes a device reachability change.
func (c *Client) RecordConnection(token string, connected bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementConnection,
		map[string]string{"token": token},
		map[string]interface{}{"value": boolToInt(connected)},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
