package framelog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
	"github.com/brocaar/chirpstack-fuota-node/internal/test"
	"github.com/brocaar/lorawan"
)

type FrameLogTestSuite struct {
	suite.Suite
}

func (ts *FrameLogTestSuite) SetupSuite() {
	assert := require.New(ts.T())
	assert.NoError(storage.Setup(test.GetConfig()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := storage.Ping(ctx); err != nil {
		ts.T().Skipf("redis not available: %s", err)
	}
}

func (ts *FrameLogTestSuite) TestFrameLogForDevice() {
	assert := require.New(ts.T())

	devEUI := lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}
	logChannel := make(chan FrameLog, 1)
	errChannel := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		errChannel <- GetFrameLogForDevice(ctx, devEUI, logChannel)
	}()

	// some time to subscribe
	time.Sleep(time.Millisecond * 100)

	fl := FrameLog{
		DevEUI:     devEUI,
		FPort:      201,
		Command:    "DataFragment",
		Data:       []byte{8, 1, 0, 1, 2},
		ReceivedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	assert.NoError(LogFrameForDevice(context.Background(), fl))

	// other devices are not received
	assert.NoError(LogFrameForDevice(context.Background(), FrameLog{DevEUI: lorawan.EUI64{8, 7, 6, 5, 4, 3, 2, 1}}))

	select {
	case got := <-logChannel:
		assert.Equal(fl, got)
	case <-time.After(time.Second):
		ts.T().Fatal("frame log not received")
	}

	cancel()
	assert.NoError(<-errChannel)
	assert.Len(logChannel, 0)
}

func TestFrameLog(t *testing.T) {
	suite.Run(t, new(FrameLogTestSuite))
}

func TestNotConfigured(t *testing.T) {
	assert := require.New(t)
	assert.NoError(storage.Setup(config.Config{}))

	assert.NoError(LogFrameForDevice(context.Background(), FrameLog{}))
	assert.Equal(storage.ErrNotConfigured, GetFrameLogForDevice(context.Background(), lorawan.EUI64{}, make(chan FrameLog)))
}
