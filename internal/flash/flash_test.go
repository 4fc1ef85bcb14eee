package flash

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-fuota-node/internal/fragdecoder"
)

type StorageTestSuite struct {
	suite.Suite

	newStorage func(size uint32) Storage
	storage    Storage
}

func (ts *StorageTestSuite) SetupTest() {
	ts.storage = ts.newStorage(10)
}

func (ts *StorageTestSuite) TearDownTest() {
	ts.NoError(ts.storage.Close())
}

func (ts *StorageTestSuite) TestErased() {
	assert := require.New(ts.T())

	b := make([]byte, 10)
	assert.NoError(ts.storage.Erase(0, 10))
	assert.NoError(ts.storage.Read(0, b))
	assert.Equal([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, b)
	assert.EqualValues(10, ts.storage.Size())
}

func (ts *StorageTestSuite) TestWriteRead() {
	assert := require.New(ts.T())

	assert.NoError(ts.storage.Erase(0, 10))
	assert.NoError(ts.storage.Write(2, []byte{1, 2, 3}))
	assert.NoError(ts.storage.Write(8, []byte{9, 10}))

	b := make([]byte, 10)
	assert.NoError(ts.storage.Read(0, b))
	assert.Equal([]byte{0xff, 0xff, 1, 2, 3, 0xff, 0xff, 0xff, 9, 10}, b)

	assert.NoError(ts.storage.Erase(3, 6))
	assert.NoError(ts.storage.Read(0, b))
	assert.Equal([]byte{0xff, 0xff, 1, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 10}, b)

	b = make([]byte, 2)
	assert.NoError(ts.storage.Read(1, b))
	assert.Equal([]byte{0xff, 1}, b)
}

func (ts *StorageTestSuite) TestOutOfRange() {
	assert := require.New(ts.T())

	assert.Equal(ErrOutOfRange, errors.Cause(ts.storage.Write(9, []byte{1, 2})))
	assert.Equal(ErrOutOfRange, errors.Cause(ts.storage.Read(11, make([]byte, 1))))
	assert.Equal(ErrOutOfRange, errors.Cause(ts.storage.Erase(5, 6)))
	assert.Equal(ErrOutOfRange, errors.Cause(ts.storage.Erase(0xffffffff, 2)))
}

func (ts *StorageTestSuite) TestDecoderSession() {
	assert := require.New(ts.T())

	s, err := fragdecoder.New(5, 2, ts.storage, nil, fragdecoder.DefaultLimits)
	assert.NoError(err)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var status fragdecoder.Status
	for i := 0; i < 5; i++ {
		status, err = s.Process(uint16(i+1), data[i*2:i*2+2])
		assert.NoError(err)
	}
	assert.Equal(fragdecoder.Finished(0), status)

	b := make([]byte, 10)
	assert.NoError(ts.storage.Read(0, b))
	assert.Equal(data, b)
}

func TestMemory(t *testing.T) {
	suite.Run(t, &StorageTestSuite{
		newStorage: func(size uint32) Storage {
			return NewMemory(size)
		},
	})
}

func TestFile(t *testing.T) {
	dir := t.TempDir()

	suite.Run(t, &StorageTestSuite{
		newStorage: func(size uint32) Storage {
			f, err := OpenFile(filepath.Join(dir, "sub", "region.part"), size)
			if err != nil {
				t.Fatal(err)
			}
			return f
		},
	})
}

func TestNew(t *testing.T) {
	assert := require.New(t)
	dir := t.TempDir()

	s, err := New(Config{Type: TypeMemory}, "0102030405060708", 4)
	assert.NoError(err)
	assert.IsType(&Memory{}, s)
	assert.Equal([]byte{0xff, 0xff, 0xff, 0xff}, s.(*Memory).Bytes())

	s, err = New(Config{Type: TypeFile, Path: dir}, "0102030405060708", 4)
	assert.NoError(err)
	assert.Equal(filepath.Join(dir, "0102030405060708.part"), s.(*File).Name())
	assert.EqualValues(4, s.Size())
	assert.NoError(s.Close())

	_, err = New(Config{Type: "eeprom"}, "x", 4)
	assert.Error(err)
}
