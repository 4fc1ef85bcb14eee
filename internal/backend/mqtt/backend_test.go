package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-fuota-node/internal/backend"
	"github.com/brocaar/lorawan"
)

func TestDecodeDownlink(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		payload  string
		expected backend.DownlinkFrame
		err      bool
	}{
		{
			name:    "devEUI in payload",
			topic:   "application/1/device/0807060504030201/command/down",
			payload: `{"devEUI":"0102030405060708","fPort":201,"data":"CAEAqrs="}`,
			expected: backend.DownlinkFrame{
				DevEUI: lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
				FPort:  201,
				Data:   []byte{0x08, 0x01, 0x00, 0xaa, 0xbb},
			},
		},
		{
			name:    "devEUI in topic",
			topic:   "application/1/device/0807060504030201/command/down",
			payload: `{"confirmed":false,"fPort":201,"data":"AQI="}`,
			expected: backend.DownlinkFrame{
				DevEUI: lorawan.EUI64{8, 7, 6, 5, 4, 3, 2, 1},
				FPort:  201,
				Data:   []byte{1, 2},
			},
		},
		{
			name:    "devEUI missing",
			topic:   "application/1/command/down",
			payload: `{"fPort":201,"data":"AQI="}`,
			err:     true,
		},
		{
			name:    "invalid json",
			topic:   "application/1/device/0807060504030201/command/down",
			payload: `{"fPort":`,
			err:     true,
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			assert := require.New(t)

			frame, err := decodeDownlink(tst.topic, []byte(tst.payload))
			if tst.err {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tst.expected, frame)
		})
	}
}

func TestEventTopic(t *testing.T) {
	assert := require.New(t)

	b, err := newBackend(Config{
		EventTopicTemplate: "fuota/{{ .DevEUI }}/event/{{ .EventType }}",
	})
	assert.NoError(err)

	topic, err := b.eventTopic(lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8}, "done")
	assert.NoError(err)
	assert.Equal("fuota/0102030405060708/event/done", topic)

	_, err = newBackend(Config{EventTopicTemplate: "{{ .DevEUI"})
	assert.Error(err)
}
