package fragdecoder

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status is the result of processing a fragment. A value >= 0 means the
// session finished and holds the number of fragments recovered by the
// decoding.
type Status int32

// Non-terminal and failure statuses.
const (
	StatusOngoing Status = -1
	StatusError   Status = -2
)

// Finished returns the terminal success status for the given number of
// recovered fragments.
func Finished(lost uint16) Status {
	return Status(lost)
}

// IsFinished returns true for a successful terminal status.
func (s Status) IsFinished() bool {
	return s >= 0
}

// IsTerminal returns true when no further fragment changes the outcome.
func (s Status) IsTerminal() bool {
	return s != StatusOngoing
}

// Lost returns the number of recovered fragments of a finished status.
func (s Status) Lost() uint16 {
	if s < 0 {
		return 0
	}
	return uint16(s)
}

func (s Status) String() string {
	switch s {
	case StatusOngoing:
		return "ONGOING"
	case StatusError:
		return "SESSION_FINISHED_ERROR"
	default:
		return fmt.Sprintf("FINISHED(%d)", int32(s))
	}
}

// SessionStatus holds the state of a session as exposed to callers.
type SessionStatus struct {
	FragmentCount  uint16
	FragmentSize   uint8
	ReceivedCount  uint16
	LastCounter    uint16
	LastContiguous uint16
	LostCount      uint16
	RowsSolved     uint16
	MatrixError    bool
	StorageError   bool
	Result         Status
}

// Limits replaces the compile-time capacity of the decoder.
type Limits struct {
	MaxFragments    uint16
	MaxFragmentSize uint8
	MaxRedundancy   uint16
}

// DefaultLimits holds the default decoder capacity.
var DefaultLimits = Limits{
	MaxFragments:    5000,
	MaxFragmentSize: 242,
	MaxRedundancy:   500,
}

// Validate returns ErrInvalidParameters when a session with the given
// parameters does not fit the limits.
func (l Limits) Validate(fragmentCount uint16, fragmentSize uint8) error {
	if fragmentCount == 0 || fragmentCount > l.MaxFragments {
		return errors.Wrapf(ErrInvalidParameters, "fragment count %d not in [1, %d]", fragmentCount, l.MaxFragments)
	}
	if fragmentSize == 0 || fragmentSize > l.MaxFragmentSize {
		return errors.Wrapf(ErrInvalidParameters, "fragment size %d not in [1, %d]", fragmentSize, l.MaxFragmentSize)
	}
	return nil
}

// MaxFileSize returns the largest file a session can hold.
func (l Limits) MaxFileSize() uint32 {
	return uint32(l.MaxFragments) * uint32(l.MaxFragmentSize)
}

// MaxFileSize returns the largest file a session can hold with the default
// limits.
func MaxFileSize() uint32 {
	return DefaultLimits.MaxFileSize()
}
