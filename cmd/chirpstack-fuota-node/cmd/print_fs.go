package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
	"github.com/brocaar/chirpstack-fuota-node/internal/storage"
	"github.com/brocaar/lorawan"
)

var printFSCmd = &cobra.Command{
	Use:     "print-fs",
	Short:   "Print the fragmentation-session status as JSON (for debugging)",
	Example: `chirpstack-fuota-node print-fs 0102030405060708`,
	Run: func(cmd *cobra.Command, args []string) {
		devEUI := mustParseDevEUI(args)

		if err := storage.Setup(config.C); err != nil {
			log.Fatal(err)
		}

		fs, err := storage.GetFragmentSession(context.Background(), devEUI)
		if err != nil {
			log.WithError(err).Fatal("get fragmentation-session error")
		}

		b, err := json.MarshalIndent(fs, "", "    ")
		if err != nil {
			log.WithError(err).Fatal("json marshal error")
		}

		fmt.Println(string(b))
	},
}

func mustParseDevEUI(args []string) lorawan.EUI64 {
	if len(args) != 1 {
		log.Fatalf("hex encoded DevEUI must be given as an argument")
	}

	var devEUI lorawan.EUI64
	if err := devEUI.UnmarshalText([]byte(args[0])); err != nil {
		log.WithError(err).Fatal("decode DevEUI error")
	}
	return devEUI
}
