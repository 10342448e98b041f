package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "gateway",
	Short:         "Provider-agnostic SMS and voice gateway",
	Long:          "Receives Twilio, Telnyx and Plivo webhooks as normalized events and sends segmented SMS, MMS and calls through the configured provider.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
