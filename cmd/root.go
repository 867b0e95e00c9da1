package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-kiosk",
	Short: "Face identity matching backend for self-checkout kiosks",
	Long: `Face Kiosk receives camera captures from self-checkout kiosks, analyzes
them through an external face extraction service, and matches the resulting
embeddings against registered customers of the kiosk's point of sale.
Match outcomes stream back to kiosk frontends over server-sent events.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
