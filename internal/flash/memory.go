package flash

// Memory is a RAM backed storage region.
type Memory struct {
	data []byte
}

// NewMemory returns an erased memory region of size bytes.
func NewMemory(size uint32) *Memory {
	m := Memory{
		data: make([]byte, size),
	}
	for i := range m.data {
		m.data[i] = erasedByte
	}
	return &m
}

// Size returns the region size.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Erase implements fragdecoder.FragmentStorage.
func (m *Memory) Erase(offset, length uint32) error {
	if err := checkRange(offset, length, m.Size()); err != nil {
		return err
	}
	for i := offset; i < offset+length; i++ {
		m.data[i] = erasedByte
	}
	return nil
}

// Write implements fragdecoder.FragmentStorage.
func (m *Memory) Write(offset uint32, data []byte) error {
	if err := checkRange(offset, uint32(len(data)), m.Size()); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

// Read implements fragdecoder.FragmentStorage.
func (m *Memory) Read(offset uint32, data []byte) error {
	if err := checkRange(offset, uint32(len(data)), m.Size()); err != nil {
		return err
	}
	copy(data, m.data[offset:])
	return nil
}

// Bytes returns the region content.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Close implements Storage.
func (m *Memory) Close() error {
	return nil
}
