// Package bridge synchronizes lamp state between the MQTT device side
// and the websocket session side.
//
// The listener subscribes to device status topics and feeds decoded
// events to the reconciler, which writes them into the registry only
// when the value actually changed and fans changed state out to every
// authorized user's live sessions. The dispatcher runs the opposite
// direction: it validates a user's command, publishes it to the device
// topic, optimistically applies the desired state, and can wait a
// bounded window for the device to confirm.
//
// Writes for a single device token are serialized through a per-token
// mutex shared by the reconciler's authoritative path and the
// dispatcher's optimistic path. Between two racing writes the most
// recent wins; the device's next report settles any disagreement.
package bridge
