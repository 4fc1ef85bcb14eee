package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
)

// sessionTTL holds the fragmentation-session record TTL.
var sessionTTL time.Duration

var redisClient redis.UniversalClient

// Setup configures the storage backend. Without Redis servers configured,
// session records are not persisted and RedisClient returns nil.
func Setup(c config.Config) error {
	log.Info("storage: setting up storage module")

	sessionTTL = c.FUOTA.SessionTTL

	if len(c.Redis.Servers) == 0 {
		log.Warning("storage: no redis servers configured, session records will not be persisted")
		redisClient = nil
		return nil
	}

	log.Info("storage: setting up Redis client")

	var tlsConfig *tls.Config
	if c.Redis.TLSEnabled {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.Redis.Cluster {
		redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:     c.Redis.Servers,
			PoolSize:  c.Redis.PoolSize,
			Password:  c.Redis.Password,
			TLSConfig: tlsConfig,
		})
	} else if c.Redis.MasterName != "" {
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       c.Redis.MasterName,
			SentinelAddrs:    c.Redis.Servers,
			SentinelPassword: c.Redis.Password,
			DB:               c.Redis.Database,
			PoolSize:         c.Redis.PoolSize,
			TLSConfig:        tlsConfig,
		})
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:      c.Redis.Servers[0],
			DB:        c.Redis.Database,
			Password:  c.Redis.Password,
			PoolSize:  c.Redis.PoolSize,
			TLSConfig: tlsConfig,
		})
	}

	return nil
}

// RedisClient returns the Redis client, nil when Redis is not configured.
func RedisClient() redis.UniversalClient {
	return redisClient
}

// Ping checks the Redis connection.
func Ping(ctx context.Context) error {
	if redisClient == nil {
		return nil
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "storage: redis ping error")
	}
	return nil
}

// GetRedisKey returns the Redis key given a template and parameters.
func GetRedisKey(tmpl string, params ...interface{}) string {
	return fmt.Sprintf(tmpl, params...)
}
