package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-fuota-node/internal/backend"
	"github.com/brocaar/chirpstack-fuota-node/internal/backend/mqtt"
	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/fuota"
	"github.com/brocaar/chirpstack-fuota-node/internal/monitoring"
	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
)

var (
	downlinkBackend backend.Backend
	fuotaHandler    *fuota.Handler
)

func run(cmd *cobra.Command, args []string) error {
	tasks := []func() error{
		setLogLevel,
		setSyslog,
		printStartMessage,
		setupMonitoring,
		setupStorage,
		setupBackend,
		setupFUOTA,
	}

	for _, t := range tasks {
		if err := t(); err != nil {
			log.Fatal(err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	exitChan := make(chan struct{})
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	log.WithField("signal", <-sigChan).Info("signal received")
	go func() {
		log.Warning("stopping chirpstack-fuota-node")
		if err := downlinkBackend.Close(); err != nil {
			log.Fatal(err)
		}
		if err := fuotaHandler.Stop(); err != nil {
			log.Fatal(err)
		}
		exitChan <- struct{}{}
	}()
	select {
	case <-exitChan:
	case s := <-sigChan:
		log.WithField("signal", s).Info("signal received, stopping immediately")
	}

	return nil
}

func setLogLevel() error {
	log.SetLevel(log.Level(uint8(config.C.General.LogLevel)))
	return nil
}

func printStartMessage() error {
	log.WithFields(log.Fields{
		"version":      version,
		"fport":        config.C.FUOTA.FPort,
		"storage_type": config.C.FUOTA.Storage.Type,
	}).Info("starting ChirpStack FUOTA Node")
	return nil
}

func setupMonitoring() error {
	if err := monitoring.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup monitoring error")
	}
	return nil
}

func setupStorage() error {
	if err := storage.Setup(config.C); err != nil {
		return errors.Wrap(err, "setup storage error")
	}
	return nil
}

func setupBackend() error {
	b, err := mqtt.NewBackend(config.C.Backend.MQTT)
	if err != nil {
		return errors.Wrap(err, "setup mqtt backend error")
	}
	downlinkBackend = b
	return nil
}

func setupFUOTA() error {
	fuotaHandler = fuota.NewHandler(config.C, downlinkBackend)
	fuotaHandler.Start(downlinkBackend)
	return nil
}
