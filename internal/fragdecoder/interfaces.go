package fragdecoder

// FragmentStorage is the byte addressable medium holding the fragment rows.
// Offsets are relative to the start of the file, row r starts at
// r * fragmentSize. Calls must complete before returning.
type FragmentStorage interface {
	// Erase erases length bytes starting at offset.
	Erase(offset, length uint32) error

	// Write writes data at offset.
	Write(offset uint32, data []byte) error

	// Read fills data with the bytes stored at offset.
	Read(offset uint32, data []byte) error
}

// SessionObserver receives the session notifications.
type SessionObserver interface {
	// OnProgress is called for every processed uncoded fragment.
	OnProgress(received, total uint16, fragmentSize uint8, lost uint16)

	// OnDone is called once, when the session reaches a terminal status.
	OnDone(status Status, size uint32)
}

// Observers fans out the notifications to all its observers, in order.
type Observers []SessionObserver

// OnProgress implements SessionObserver.
func (o Observers) OnProgress(received, total uint16, fragmentSize uint8, lost uint16) {
	for _, obs := range o {
		obs.OnProgress(received, total, fragmentSize, lost)
	}
}

// OnDone implements SessionObserver.
func (o Observers) OnDone(status Status, size uint32) {
	for _, obs := range o {
		obs.OnDone(status, size)
	}
}

// NopObserver ignores all notifications.
type NopObserver struct{}

// OnProgress implements SessionObserver.
func (NopObserver) OnProgress(received, total uint16, fragmentSize uint8, lost uint16) {}

// OnDone implements SessionObserver.
func (NopObserver) OnDone(status Status, size uint32) {}
