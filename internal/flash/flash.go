// Package flash implements the byte addressable storage used by the fragment
// decoder. Erased bytes read back as 0xff, as on NOR flash.
package flash

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/fragdecoder"
)

// Storage types.
const (
	TypeMemory = "memory"
	TypeFile   = "file"
)

const erasedByte = 0xff

// errors
var (
	ErrOutOfRange = errors.New("flash: access out of range")
)

// Config holds the storage configuration.
type Config struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// Storage is a fragment storage of a fixed size.
type Storage interface {
	fragdecoder.FragmentStorage

	// Size returns the size of the storage region in bytes.
	Size() uint32

	// Close releases the storage.
	Close() error
}

// New returns a storage region of size bytes for the given name, as
// configured.
func New(c Config, name string, size uint32) (Storage, error) {
	switch c.Type {
	case TypeMemory, "":
		return NewMemory(size), nil
	case TypeFile:
		path := filepath.Join(c.Path, fmt.Sprintf("%s.part", name))
		log.WithFields(log.Fields{
			"path": path,
			"size": size,
		}).Debug("flash: opening file storage")
		return OpenFile(path, size)
	default:
		return nil, fmt.Errorf("flash: unknown storage type: %s", c.Type)
	}
}

func checkRange(offset, length, size uint32) error {
	if uint64(offset)+uint64(length) > uint64(size) {
		return errors.Wrapf(ErrOutOfRange, "offset %d length %d size %d", offset, length, size)
	}
	return nil
}
