package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/logging"
	"github.com/brocaar/lorawan"
)

const (
	fragmentSessionKeyTempl = "fuota:node:fs:%s" // fragmentation-session record (DevEUI)
)

// FragmentSession holds the persisted state of a fragmentation session.
type FragmentSession struct {
	ID            uuid.UUID
	DevEUI        lorawan.EUI64
	FragIndex     uint8
	FragmentCount uint16
	FragmentSize  uint8
	Padding       uint8
	Descriptor    [4]byte

	ReceivedCount uint16
	LastCounter   uint16
	LostCount     uint16
	Status        string
	Size          uint32
	CRC           uint32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveFragmentSession stores the given fragmentation-session record.
func SaveFragmentSession(ctx context.Context, fs FragmentSession) error {
	if redisClient == nil {
		return ErrNotConfigured
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fs); err != nil {
		return errors.Wrap(err, "gob encode fragmentation-session error")
	}

	key := GetRedisKey(fragmentSessionKeyTempl, fs.DevEUI)
	if err := redisClient.Set(ctx, key, buf.Bytes(), sessionTTL).Err(); err != nil {
		return errors.Wrap(err, "set error")
	}

	log.WithFields(log.Fields{
		"dev_eui":    fs.DevEUI,
		"session_id": fs.ID,
		"status":     fs.Status,
		"ctx_id":     ctx.Value(logging.ContextIDKey),
	}).Debug("storage: fragmentation-session saved")

	return nil
}

// GetFragmentSession returns the fragmentation-session record for the given
// DevEUI.
func GetFragmentSession(ctx context.Context, devEUI lorawan.EUI64) (FragmentSession, error) {
	var fs FragmentSession
	if redisClient == nil {
		return fs, ErrNotConfigured
	}

	val, err := redisClient.Get(ctx, GetRedisKey(fragmentSessionKeyTempl, devEUI)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return fs, ErrDoesNotExist
		}
		return fs, errors.Wrap(err, "get error")
	}

	if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&fs); err != nil {
		return fs, errors.Wrap(err, "gob decode error")
	}

	return fs, nil
}

// DeleteFragmentSession deletes the fragmentation-session record for the
// given DevEUI.
func DeleteFragmentSession(ctx context.Context, devEUI lorawan.EUI64) error {
	if redisClient == nil {
		return ErrNotConfigured
	}

	n, err := redisClient.Del(ctx, GetRedisKey(fragmentSessionKeyTempl, devEUI)).Result()
	if err != nil {
		return errors.Wrap(err, "delete error")
	}
	if n == 0 {
		return ErrDoesNotExist
	}

	log.WithFields(log.Fields{
		"dev_eui": devEUI,
		"ctx_id":  ctx.Value(logging.ContextIDKey),
	}).Info("storage: fragmentation-session deleted")

	return nil
}
