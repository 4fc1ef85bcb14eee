package test

import (
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

// GetConfig returns the test configuration.
func GetConfig() config.Config {
	var c config.Config

	c.Redis.Servers = []string{"localhost:6379"}
	if v := os.Getenv("TEST_REDIS_URL"); v != "" {
		opt, err := redis.ParseURL(v)
		if err != nil {
			panic(err)
		}
		c.Redis.Servers = []string{opt.Addr}
		c.Redis.Database = opt.DB
		c.Redis.Password = opt.Password
	}

	c.FUOTA.FPort = 201
	c.FUOTA.SessionTTL = time.Hour

	return c
}
