package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/framelog"
	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
)

var frameLogCmd = &cobra.Command{
	Use:     "framelog",
	Short:   "Stream the fragmentation commands received for a device as JSON",
	Example: `chirpstack-fuota-node framelog 0102030405060708`,
	Run: func(cmd *cobra.Command, args []string) {
		devEUI := mustParseDevEUI(args)

		if err := storage.Setup(config.C); err != nil {
			log.Fatal(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		frameLogChan := make(chan framelog.FrameLog)
		go func() {
			for fl := range frameLogChan {
				b, err := json.Marshal(fl)
				if err != nil {
					log.WithError(err).Error("json marshal error")
					continue
				}
				fmt.Println(string(b))
			}
		}()

		if err := framelog.GetFrameLogForDevice(ctx, devEUI, frameLogChan); err != nil {
			log.WithError(err).Fatal("get frame log error")
		}
	},
}
