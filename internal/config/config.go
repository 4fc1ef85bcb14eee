package config

import (
	"time"

	"github.com/brocaar/chirpstack-fuota-node/internal/backend/mqtt"
	"github.com/brocaar/chirpstack-fuota-node/internal/flash"
	"github.com/brocaar/chirpstack-fuota-node/internal/fragdecoder"
)

// Version defines the ChirpStack FUOTA Node version.
var Version string

// Config defines the configuration structure.
type Config struct {
	General struct {
		LogLevel    int  `mapstructure:"log_level"`
		LogToSyslog bool `mapstructure:"log_to_syslog"`
	} `mapstructure:"general"`

	Redis struct {
		URL        string   `mapstructure:"url"` // deprecated
		Servers    []string `mapstructure:"servers"`
		Cluster    bool     `mapstructure:"cluster"`
		MasterName string   `mapstructure:"master_name"`
		PoolSize   int      `mapstructure:"pool_size"`
		Password   string   `mapstructure:"password"`
		Database   int      `mapstructure:"database"`
		TLSEnabled bool     `mapstructure:"tls_enabled"`
	} `mapstructure:"redis"`

	FUOTA struct {
		FPort           uint8         `mapstructure:"fport"`
		SessionTTL      time.Duration `mapstructure:"session_ttl"`
		OutputDir       string        `mapstructure:"output_dir"`
		MaxFragments    uint16        `mapstructure:"max_fragments"`
		MaxFragmentSize uint8         `mapstructure:"max_fragment_size"`
		MaxRedundancy   uint16        `mapstructure:"max_redundancy"`

		Storage flash.Config `mapstructure:"storage"`
	} `mapstructure:"fuota"`

	Backend struct {
		MQTT mqtt.Config `mapstructure:"mqtt"`
	} `mapstructure:"backend"`

	Monitoring struct {
		Bind                string `mapstructure:"bind"`
		PrometheusEndpoint  bool   `mapstructure:"prometheus_endpoint"`
		HealthcheckEndpoint bool   `mapstructure:"healthcheck_endpoint"`
	} `mapstructure:"monitoring"`
}

// DecoderLimits returns the fragment decoder capacity. Zero values fall back
// to the decoder defaults.
func (c Config) DecoderLimits() fragdecoder.Limits {
	l := fragdecoder.DefaultLimits
	if c.FUOTA.MaxFragments != 0 {
		l.MaxFragments = c.FUOTA.MaxFragments
	}
	if c.FUOTA.MaxFragmentSize != 0 {
		l.MaxFragmentSize = c.FUOTA.MaxFragmentSize
	}
	if c.FUOTA.MaxRedundancy != 0 {
		l.MaxRedundancy = c.FUOTA.MaxRedundancy
	}
	if l.MaxRedundancy > l.MaxFragments {
		l.MaxRedundancy = l.MaxFragments
	}
	return l
}

// C holds the global configuration.
var C Config
