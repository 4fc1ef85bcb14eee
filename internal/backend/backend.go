package backend

import (
	"github.com/brocaar/lorawan"
)

// DownlinkFrame holds an application payload sent to a device.
type DownlinkFrame struct {
	DevEUI lorawan.EUI64
	FPort  uint8
	Data   []byte
}

// Backend is the interface of a downlink frame source.
type Backend interface {
	DownlinkFrameChan() chan DownlinkFrame                                // channel containing the received downlink frames
	PublishEvent(devEUI lorawan.EUI64, event string, v interface{}) error // publish a session event
	Close() error                                                         // close the backend
}
