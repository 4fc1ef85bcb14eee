package storage

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/test"
	"github.com/brocaar/lorawan"
)

type FragmentSessionTestSuite struct {
	suite.Suite
}

func (ts *FragmentSessionTestSuite) SetupSuite() {
	assert := require.New(ts.T())
	assert.NoError(Setup(test.GetConfig()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Ping(ctx); err != nil {
		ts.T().Skipf("redis not available: %s", err)
	}
}

func (ts *FragmentSessionTestSuite) SetupTest() {
	RedisClient().FlushAll(context.Background())
}

func (ts *FragmentSessionTestSuite) TestFragmentSession() {
	assert := require.New(ts.T())
	ctx := context.Background()

	fs := FragmentSession{
		ID:            uuid.Must(uuid.NewV4()),
		DevEUI:        lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
		FragIndex:     1,
		FragmentCount: 100,
		FragmentSize:  50,
		Padding:       3,
		Descriptor:    [4]byte{1, 2, 3, 4},
		ReceivedCount: 10,
		LastCounter:   12,
		LostCount:     2,
		Status:        "ONGOING",
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}

	ts.T().Run("Get does not exist", func(t *testing.T) {
		assert := require.New(t)
		_, err := GetFragmentSession(ctx, fs.DevEUI)
		assert.Equal(ErrDoesNotExist, err)
	})

	ts.T().Run("Save and get", func(t *testing.T) {
		assert := require.New(t)
		assert.NoError(SaveFragmentSession(ctx, fs))

		fsGet, err := GetFragmentSession(ctx, fs.DevEUI)
		assert.NoError(err)
		assert.Equal(fs, fsGet)
	})

	ts.T().Run("Update", func(t *testing.T) {
		assert := require.New(t)
		fs.Status = "FINISHED(2)"
		fs.CRC = 0xdeadbeef
		assert.NoError(SaveFragmentSession(ctx, fs))

		fsGet, err := GetFragmentSession(ctx, fs.DevEUI)
		assert.NoError(err)
		assert.Equal("FINISHED(2)", fsGet.Status)
		assert.EqualValues(0xdeadbeef, fsGet.CRC)
	})

	ts.T().Run("Delete", func(t *testing.T) {
		assert := require.New(t)
		assert.NoError(DeleteFragmentSession(ctx, fs.DevEUI))
		assert.Equal(ErrDoesNotExist, DeleteFragmentSession(ctx, fs.DevEUI))

		_, err := GetFragmentSession(ctx, fs.DevEUI)
		assert.Equal(ErrDoesNotExist, err)
	})

	assert.NotNil(RedisClient())
}

func TestFragmentSession(t *testing.T) {
	suite.Run(t, new(FragmentSessionTestSuite))
}

func TestNotConfigured(t *testing.T) {
	assert := require.New(t)
	assert.NoError(Setup(config.Config{}))
	assert.Nil(RedisClient())
	assert.NoError(Ping(context.Background()))

	_, err := GetFragmentSession(context.Background(), lorawan.EUI64{})
	assert.Equal(ErrNotConfigured, err)
	assert.Equal(ErrNotConfigured, SaveFragmentSession(context.Background(), FragmentSession{}))
}
