package cmd

import (
	"bytes"
	"io/ioutil"
	"reflect"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/flash"
	"github.com/brocaar/chirpstack-fuota-node/internal/fragdecoder"
)

var (
	cfgFile string
	version string
)

var rootCmd = &cobra.Command{
	Use:   "chirpstack-fuota-node",
	Short: "ChirpStack FUOTA Node",
	Long: `ChirpStack FUOTA Node receives LoRaWAN fragmented data block transport sessions and reassembles the transferred files
	> source & copyright information: https://github.com/brocaar/chirpstack-fuota-node/`,
	RunE: run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.PersistentFlags().Int("log-level", 4, "debug=5, info=4, error=2, fatal=1, panic=0")

	viper.BindPFlag("general.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// default values
	viper.SetDefault("redis.servers", []string{"localhost:6379"})

	viper.SetDefault("fuota.fport", 201)
	viper.SetDefault("fuota.session_ttl", time.Hour*24)
	viper.SetDefault("fuota.max_fragments", fragdecoder.DefaultLimits.MaxFragments)
	viper.SetDefault("fuota.max_fragment_size", fragdecoder.DefaultLimits.MaxFragmentSize)
	viper.SetDefault("fuota.max_redundancy", fragdecoder.DefaultLimits.MaxRedundancy)
	viper.SetDefault("fuota.storage.type", flash.TypeMemory)

	viper.SetDefault("backend.mqtt.server", "tcp://localhost:1883")
	viper.SetDefault("backend.mqtt.clean_session", true)
	viper.SetDefault("backend.mqtt.max_reconnect_interval", time.Minute)
	viper.SetDefault("backend.mqtt.downlink_topic", "application/+/device/+/command/down")
	viper.SetDefault("backend.mqtt.event_topic_template", "fuota/{{ .DevEUI }}/event/{{ .EventType }}")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(printFSCmd)
	rootCmd.AddCommand(frameLogCmd)
}

// Execute executes the root command.
func Execute(v string) {
	version = v

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initConfig() {
	config.Version = version

	if cfgFile != "" {
		b, err := ioutil.ReadFile(cfgFile)
		if err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
		viper.SetConfigType("toml")
		if err := viper.ReadConfig(bytes.NewBuffer(b)); err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
	} else {
		viper.SetConfigName("chirpstack-fuota-node")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/chirpstack-fuota-node")
		viper.AddConfigPath("/etc/chirpstack-fuota-node")
		if err := viper.ReadInConfig(); err != nil {
			switch err.(type) {
			case viper.ConfigFileNotFoundError:
				log.Warning("No configuration file found, using defaults.")
			default:
				log.WithError(err).Fatal("read configuration file error")
			}
		}
	}

	viperBindEnvs(config.C)

	viperHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := viper.Unmarshal(&config.C, viper.DecodeHook(viperHooks)); err != nil {
		log.WithError(err).Fatal("unmarshal config error")
	}

	if config.C.Redis.URL != "" {
		opt, err := redis.ParseURL(config.C.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("redis url error")
		}

		config.C.Redis.Servers = []string{opt.Addr}
		config.C.Redis.Database = opt.DB
		config.C.Redis.Password = opt.Password
	}
}

func viperBindEnvs(iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)
	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)
		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			tv = strings.ToLower(t.Name)
		}
		if tv == "-" {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			viperBindEnvs(v.Interface(), append(parts, tv)...)
		default:
			// Bash doesn't allow env variable names with a dot so
			// bind the double underscore version.
			keyDot := strings.Join(append(parts, tv), ".")
			keyUnderscore := strings.Join(append(parts, tv), "__")
			viper.BindEnv(keyDot, strings.ToUpper(keyUnderscore))
		}
	}
}
