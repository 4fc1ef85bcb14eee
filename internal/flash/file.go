package flash

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// eraseChunk is the largest erase write issued at once.
const eraseChunk = 4096

// File is a storage region backed by a file, standing in for a directly
// mapped flash partition.
type File struct {
	f    *os.File
	size uint32
}

// OpenFile opens (or creates) the file at path and sizes it to size bytes.
// Existing content is kept.
func OpenFile(path string, size uint32) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "flash: create directory error")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "flash: open file error")
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "flash: truncate file error")
	}

	return &File{
		f:    f,
		size: size,
	}, nil
}

// Size returns the region size.
func (f *File) Size() uint32 {
	return f.size
}

// Name returns the path of the backing file.
func (f *File) Name() string {
	return f.f.Name()
}

// Erase implements fragdecoder.FragmentStorage.
func (f *File) Erase(offset, length uint32) error {
	if err := checkRange(offset, length, f.size); err != nil {
		return err
	}

	chunk := bytes.Repeat([]byte{erasedByte}, eraseChunk)
	for length > 0 {
		n := length
		if n > eraseChunk {
			n = eraseChunk
		}
		if _, err := f.f.WriteAt(chunk[:n], int64(offset)); err != nil {
			return errors.Wrap(err, "flash: erase error")
		}
		offset += n
		length -= n
	}
	return nil
}

// Write implements fragdecoder.FragmentStorage.
func (f *File) Write(offset uint32, data []byte) error {
	if err := checkRange(offset, uint32(len(data)), f.size); err != nil {
		return err
	}
	if _, err := f.f.WriteAt(data, int64(offset)); err != nil {
		return errors.Wrap(err, "flash: write error")
	}
	return nil
}

// Read implements fragdecoder.FragmentStorage.
func (f *File) Read(offset uint32, data []byte) error {
	if err := checkRange(offset, uint32(len(data)), f.size); err != nil {
		return err
	}
	if _, err := f.f.ReadAt(data, int64(offset)); err != nil {
		return errors.Wrap(err, "flash: read error")
	}
	return nil
}

// Close syncs and closes the backing file.
func (f *File) Close() error {
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		return errors.Wrap(err, "flash: sync error")
	}
	return f.f.Close()
}
