// Package registry is the durable record of homes, rooms, devices and the
// sharing relationships between them. It is the single source of truth the
// bridge reconciles device events into and the API reads from.
//
// Device status and connection writes go through the conditional update
// operations, which report whether the stored value actually changed so
// callers can suppress redundant fan-out. Authorization is resolved here
// too: the set of users allowed to see a device is the home owner plus
// everyone the device or its home has been shared with.
package registry
