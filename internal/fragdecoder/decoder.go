// Package fragdecoder implements the decoder of the LoRaWAN fragmented data
// block transport. It rebuilds a file sent as uncoded fragments followed by
// coded (redundancy) fragments, using GF(2) elimination to recover lost
// uncoded fragments.
package fragdecoder

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Session holds the decoding state of a single fragmentation session.
//
// Fragment bytes only live in the FragmentStorage, the session itself keeps
// the bookkeeping and the reduction matrix. Methods must not be called
// concurrently.
type Session struct {
	storage  FragmentStorage
	observer SessionObserver
	limits   Limits

	fragmentCount uint16
	fragmentSize  uint8

	receivedCount    uint16
	lastCounter      uint16
	lastContiguousRx uint16
	lostCount        uint16

	// missingIndex holds for every uncoded fragment 0 when it was received
	// (or is not yet known to be lost), else its 1-based lost rank.
	missingIndex []uint16

	// lostSlots maps a 0-based lost rank back to its fragment index.
	lostSlots []uint16

	// matrix is allocated with the first coded fragment, the number of lost
	// fragments is final at that point.
	matrix     *TriangularBitMatrix
	rowsSolved uint16

	matrixError  bool
	storageError bool
	done         bool
	result       Status
}

// New returns a new session for fragmentCount fragments of fragmentSize
// bytes. The storage range holding the file is erased.
func New(fragmentCount uint16, fragmentSize uint8, storage FragmentStorage, observer SessionObserver, limits Limits) (*Session, error) {
	if storage == nil {
		return nil, errors.Wrap(ErrInvalidParameters, "storage must not be nil")
	}
	if observer == nil {
		observer = NopObserver{}
	}

	s := Session{
		storage:  storage,
		observer: observer,
		limits:   limits,
	}
	if err := s.Reset(fragmentCount, fragmentSize); err != nil {
		return nil, err
	}
	return &s, nil
}

// Reset discards all state and starts over with the given parameters. The
// storage range holding the new file is erased.
func (s *Session) Reset(fragmentCount uint16, fragmentSize uint8) error {
	if err := s.limits.Validate(fragmentCount, fragmentSize); err != nil {
		return err
	}

	*s = Session{
		storage:       s.storage,
		observer:      s.observer,
		limits:        s.limits,
		fragmentCount: fragmentCount,
		fragmentSize:  fragmentSize,
		missingIndex:  make([]uint16, fragmentCount),
		result:        StatusOngoing,
	}

	if err := s.storage.Erase(0, s.FileSize()); err != nil {
		return errors.Wrapf(ErrStorage, "erase %d bytes: %s", s.FileSize(), err)
	}

	return nil
}

// FileSize returns the size in bytes of the file being reconstructed.
func (s *Session) FileSize() uint32 {
	return uint32(s.fragmentCount) * uint32(s.fragmentSize)
}

// Status returns the current state of the session.
func (s *Session) Status() SessionStatus {
	return SessionStatus{
		FragmentCount:  s.fragmentCount,
		FragmentSize:   s.fragmentSize,
		ReceivedCount:  s.receivedCount,
		LastCounter:    s.lastCounter,
		LastContiguous: s.lastContiguousRx,
		LostCount:      s.lostCount,
		RowsSolved:     s.rowsSolved,
		MatrixError:    s.matrixError,
		StorageError:   s.storageError,
		Result:         s.result,
	}
}

// Process handles the fragment with the given 1-based counter. Counters up
// to the fragment count are uncoded fragments, higher counters are coded
// fragments.
//
// Once a terminal status has been returned, Process keeps returning it
// without touching the storage. A storage failure aborts the session with
// StatusError and the returned error.
func (s *Session) Process(counter uint16, payload []byte) (Status, error) {
	if s.done {
		return s.result, nil
	}
	if counter == 0 {
		return StatusOngoing, errors.Wrap(ErrInvalidFragment, "counter must be >= 1")
	}
	if len(payload) != int(s.fragmentSize) {
		return StatusOngoing, errors.Wrapf(ErrInvalidFragment, "payload is %d bytes, expected %d", len(payload), s.fragmentSize)
	}

	// out of order or duplicate
	if counter < s.lastContiguousRx {
		return StatusOngoing, nil
	}

	s.receivedCount++
	s.lastCounter = counter

	if counter <= s.fragmentCount {
		return s.processUncoded(counter, payload)
	}
	return s.processCoded(counter, payload)
}

func (s *Session) processUncoded(counter uint16, payload []byte) (Status, error) {
	idx := counter - 1
	if err := s.writeRow(idx, payload); err != nil {
		return s.abort(err)
	}
	s.missingIndex[idx] = 0
	s.findMissing(counter)

	s.observer.OnProgress(counter, s.fragmentCount, s.fragmentSize, s.lostCount)

	if s.lostCount == 0 && counter == s.fragmentCount {
		return s.finish(Finished(0))
	}
	return StatusOngoing, nil
}

func (s *Session) processCoded(counter uint16, payload []byte) (Status, error) {
	// a coded fragment confirms all unseen uncoded fragments as lost
	s.findMissing(counter)

	if s.lostCount > s.limits.MaxRedundancy {
		s.matrixError = true
		log.WithFields(log.Fields{
			"lost":           s.lostCount,
			"max_redundancy": s.limits.MaxRedundancy,
		}).Warning("fragdecoder: too many lost fragments")
		return s.finish(StatusError)
	}

	if s.lostCount == 0 {
		return s.finish(Finished(0))
	}

	lost := int(s.lostCount)
	if s.matrix == nil {
		s.matrix = NewTriangularBitMatrix(lost)
	}

	data := make([]byte, s.fragmentSize)
	copy(data, payload)
	buf := make([]byte, s.fragmentSize)

	// fold the known fragments out of the equation
	v := NewBitVector(lost)
	coeffs := ParityRow(int(counter-s.fragmentCount), int(s.fragmentCount))
	for _, i := range coeffs.Ones() {
		if rank := s.missingIndex[i]; rank != 0 {
			v.Set(int(rank-1), true)
			continue
		}

		if err := s.readRow(uint16(i), buf); err != nil {
			return s.abort(err)
		}
		xorBytes(data, buf)
	}

	p := v.FirstOne()
	if p == -1 {
		return StatusOngoing, nil
	}

	stored := NewBitVector(lost)
	for s.matrix.IsSolved(p) {
		s.matrix.Row(p, stored)
		v.Xor(stored)

		if err := s.readRow(s.lostSlots[p], buf); err != nil {
			return s.abort(err)
		}
		xorBytes(data, buf)

		p = v.FirstOne()
		if p == -1 {
			log.WithField("counter", counter).Debug("fragdecoder: coded fragment carries no new information")
			return StatusOngoing, nil
		}
	}

	s.matrix.SetRow(p, v)
	if err := s.writeRow(s.lostSlots[p], data); err != nil {
		return s.abort(err)
	}
	s.rowsSolved++

	if s.rowsSolved < s.lostCount {
		return StatusOngoing, nil
	}

	if err := s.backSubstitute(); err != nil {
		return s.abort(err)
	}
	return s.finish(Finished(s.lostCount))
}

// backSubstitute resolves the diagonalized rows from the highest rank down,
// every rank folding in the final bytes of the higher ranks it references.
func (s *Session) backSubstitute() error {
	lost := int(s.lostCount)
	row := NewBitVector(lost)
	acc := make([]byte, s.fragmentSize)
	buf := make([]byte, s.fragmentSize)

	for i := lost - 2; i >= 0; i-- {
		if err := s.readRow(s.lostSlots[i], acc); err != nil {
			return err
		}

		s.matrix.Row(i, row)
		for j := lost - 1; j > i; j-- {
			if !row.Get(j) {
				continue
			}
			if err := s.readRow(s.lostSlots[j], buf); err != nil {
				return err
			}
			xorBytes(acc, buf)
		}

		if err := s.writeRow(s.lostSlots[i], acc); err != nil {
			return err
		}
	}

	return nil
}

// findMissing marks every uncoded fragment between the last contiguous
// counter and the given counter as lost and moves the watermark.
func (s *Session) findMissing(counter uint16) {
	i := int(s.lastContiguousRx)
	for ; i < int(counter)-1; i++ {
		if i < int(s.fragmentCount) {
			s.lostCount++
			s.missingIndex[i] = s.lostCount
			s.lostSlots = append(s.lostSlots, uint16(i))
		}
	}

	if i < int(s.fragmentCount) {
		s.lastContiguousRx = counter
	} else {
		s.lastContiguousRx = s.fragmentCount + 1
	}
}

func (s *Session) finish(status Status) (Status, error) {
	if s.done {
		return s.result, nil
	}

	s.done = true
	s.result = status

	var size uint32
	if status.IsFinished() {
		size = s.FileSize()
	}
	s.observer.OnDone(status, size)

	return status, nil
}

func (s *Session) abort(err error) (Status, error) {
	s.storageError = true
	log.WithError(err).WithFields(log.Fields{
		"counter": s.lastCounter,
		"lost":    s.lostCount,
	}).Error("fragdecoder: storage error, aborting session")

	status, _ := s.finish(StatusError)
	return status, err
}

func (s *Session) rowOffset(idx uint16) uint32 {
	return uint32(idx) * uint32(s.fragmentSize)
}

func (s *Session) writeRow(idx uint16, data []byte) error {
	off := s.rowOffset(idx)
	if err := s.storage.Write(off, data); err != nil {
		return errors.Wrapf(ErrStorage, "write row %d at offset %d: %s", idx, off, err)
	}
	return nil
}

func (s *Session) readRow(idx uint16, data []byte) error {
	off := s.rowOffset(idx)
	if err := s.storage.Read(off, data); err != nil {
		return errors.Wrapf(ErrStorage, "read row %d at offset %d: %s", idx, off, err)
	}
	return nil
}

func xorBytes(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
