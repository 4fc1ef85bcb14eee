// Package framelog publishes the fragmentation commands received for a device
// to a Redis pub-sub channel, for live inspection.
package framelog

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/pkg/errors"

	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
	"github.com/brocaar/lorawan"
)

const (
	deviceFrameLogPubSubKeyTempl = "fuota:node:device:%s:pubsub:frame"
)

// FrameLog contains a fragmentation command received for a device.
type FrameLog struct {
	DevEUI     lorawan.EUI64 `json:"devEUI"`
	FPort      uint8         `json:"fPort"`
	Command    string        `json:"command"`
	Data       []byte        `json:"data"`
	Error      string        `json:"error,omitempty"`
	ReceivedAt time.Time     `json:"receivedAt"`
}

// LogFrameForDevice publishes the given frame log to the pub-sub channel of
// its device. Without Redis configured this is a no-op.
func LogFrameForDevice(ctx context.Context, fl FrameLog) error {
	c := storage.RedisClient()
	if c == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fl); err != nil {
		return errors.Wrap(err, "gob encode error")
	}

	key := storage.GetRedisKey(deviceFrameLogPubSubKeyTempl, fl.DevEUI)
	if err := c.Publish(ctx, key, buf.Bytes()).Err(); err != nil {
		return errors.Wrap(err, "publish frame to device channel error")
	}
	return nil
}

// GetFrameLogForDevice subscribes to the frame logs of the given device and
// sends them to the given channel, until the context is cancelled.
func GetFrameLogForDevice(ctx context.Context, devEUI lorawan.EUI64, frameLogChan chan FrameLog) error {
	c := storage.RedisClient()
	if c == nil {
		return storage.ErrNotConfigured
	}

	sub := c.Subscribe(ctx, storage.GetRedisKey(deviceFrameLogPubSubKeyTempl, devEUI))
	defer sub.Close()

	// wait for the subscription confirmation
	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "subscribe error")
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var fl FrameLog
			if err := gob.NewDecoder(bytes.NewReader([]byte(msg.Payload))).Decode(&fl); err != nil {
				return errors.Wrap(err, "gob decode error")
			}

			select {
			case frameLogChan <- fl:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
